/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package server implements socket.Server over a net.Listener, parametrized
// by network protocol. A Unix-domain listener additionally unlinks a stale
// socket file before bind and applies the configured permission/group after.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	libptc "github/sabouaram/someip-local/network/protocol"
	libsck "github/sabouaram/someip-local/socket"
	sckcfg "github/sabouaram/someip-local/socket/config"
)

type server struct {
	cfg sckcfg.Server

	mu  sync.Mutex
	lst net.Listener

	running atomic.Bool
	gone    atomic.Bool
	opened  atomic.Int64

	fctErr  libsck.FuncError
	fctInfo libsck.FuncInfo
	fctSrv  libsck.FuncInfoServer

	handler    libsck.HandlerFunc
	updateConn func(net.Conn)
}

// New creates a Server for cfg. handler processes each accepted connection;
// updateConn, if non-nil, customizes each accepted net.Conn (deadlines,
// buffer sizes, keep-alive) before the handler runs.
func New(updateConn func(net.Conn), handler libsck.HandlerFunc, cfg sckcfg.Server) (libsck.Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("socket server: nil handler")
	}
	return &server{cfg: cfg, handler: handler, updateConn: updateConn}, nil
}

func (s *server) RegisterFuncError(f libsck.FuncError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fctErr = f
}

func (s *server) RegisterFuncInfo(f libsck.FuncInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fctInfo = f
}

func (s *server) RegisterFuncInfoServer(f libsck.FuncInfoServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fctSrv = f
}

func (s *server) raiseErr(err error) {
	if err = libsck.ErrorFilter(err); err == nil {
		return
	}
	s.mu.Lock()
	f := s.fctErr
	s.mu.Unlock()
	if f != nil {
		f(err)
	}
}

func (s *server) raiseInfo(local, remote net.Addr, st libsck.ConnState) {
	s.mu.Lock()
	f := s.fctInfo
	s.mu.Unlock()
	if f != nil {
		f(local, remote, st)
	}
}

func (s *server) raiseSrv(st libsck.ConnState, msg string) {
	s.mu.Lock()
	f := s.fctSrv
	s.mu.Unlock()
	if f != nil {
		f(st, msg)
	}
}

// Listen binds and accepts connections until ctx is canceled or Shutdown is
// called. It blocks for the lifetime of the server, as socket.Server's
// contract requires.
func (s *server) Listen(ctx context.Context) error {
	if s.cfg.Network.IsUnix() {
		if _, err := os.Stat(s.cfg.Address); err == nil {
			_ = os.Remove(s.cfg.Address)
		}
	}

	lst, err := net.Listen(s.cfg.Network.Network(), s.cfg.Address)
	if err != nil {
		return fmt.Errorf("socket server: listen %s %s: %w", s.cfg.Network.Network(), s.cfg.Address, err)
	}

	if s.cfg.Network.IsUnix() && s.cfg.Network != libptc.NetworkUnixGram {
		if s.cfg.PermFile != 0 {
			_ = os.Chmod(s.cfg.Address, s.cfg.PermFile.FileMode())
		}
		if s.cfg.GroupPerm > 0 {
			_ = os.Chown(s.cfg.Address, -1, int(s.cfg.GroupPerm))
		}
	}

	if s.cfg.TLS.Enable && s.cfg.TLS.Config != nil {
		lst = tls.NewListener(lst, s.cfg.TLS.Config)
	}

	s.mu.Lock()
	s.lst = lst
	s.mu.Unlock()

	s.running.Store(true)
	s.gone.Store(false)
	s.raiseSrv(libsck.ConnectionNew, "listening on "+lst.Addr().String())

	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()

	defer func() {
		s.running.Store(false)
		s.gone.Store(true)
	}()

	for {
		cnx, err := lst.Accept()
		if err != nil {
			if err = libsck.ErrorFilter(err); err == nil {
				return nil
			}
			s.raiseErr(err)
			return err
		}
		s.opened.Add(1)
		go s.handleConn(cnx)
	}
}

func (s *server) handleConn(cnx net.Conn) {
	defer s.opened.Add(-1)
	defer func() { _ = cnx.Close() }()

	if s.updateConn != nil {
		s.updateConn(cnx)
	}

	local, remote := cnx.LocalAddr(), cnx.RemoteAddr()
	s.raiseInfo(local, remote, libsck.ConnectionNew)

	ctx := newConnContext(cnx)
	s.raiseInfo(local, remote, libsck.ConnectionHandler)
	s.handler(ctx)
	s.raiseInfo(local, remote, libsck.ConnectionClose)
}

func (s *server) Shutdown(_ context.Context) error {
	s.mu.Lock()
	lst := s.lst
	s.lst = nil
	s.mu.Unlock()

	if lst == nil {
		return nil
	}
	s.raiseSrv(libsck.ConnectionClose, "shutting down")
	return libsck.ErrorFilter(lst.Close())
}

func (s *server) IsRunning() bool {
	return s.running.Load()
}

func (s *server) IsGone() bool {
	return s.gone.Load()
}

func (s *server) OpenConnections() int64 {
	return s.opened.Load()
}
