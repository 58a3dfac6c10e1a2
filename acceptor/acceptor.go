/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package acceptor implements the TCP and Unix-domain listening side of the
// local transport: bind/listen with the platform socket options the local
// router relies on, and an accept loop with the backoff table a transient
// accept failure needs (as opposed to a fatal one).
package acceptor

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	liberr "github/sabouaram/someip-local/errors"
	"github/sabouaram/someip-local/logger"
	libptc "github/sabouaram/someip-local/network/protocol"
	sckcfg "github/sabouaram/someip-local/socket/config"
)

// badDescriptorLogInterval bounds how often a repeating EBADF is logged,
// per spec.md's Accept backoff table: every 200ms, not once per spin.
const badDescriptorLogInterval = 200 * time.Millisecond

// CounterFunc returns the owner's current lifecycle counter, sampled once
// per accepted connection so a stale restart can be told apart from a live
// one without the acceptor knowing anything about server state.
type CounterFunc func() uint32

// Handler receives one accepted connection together with the lifecycle
// counter sampled at accept time.
type Handler func(conn net.Conn, lifecycleCounter uint32)

// Acceptor is a uniform TCP/UDS accept loop: init, close, cancel,
// async accept, local port.
type Acceptor struct {
	cfg sckcfg.Server

	// Log receives a warning at most once per badDescriptorLogInterval
	// while the accept loop is spinning on a bad file descriptor.
	// Defaults to logger.Discard.
	Log logger.Logger

	mu          sync.Mutex
	lst         net.Listener
	closed      bool
	lastBadFDAt time.Time
}

func (a *Acceptor) log() logger.Logger {
	if a.Log == nil {
		return logger.Discard
	}
	return a.Log
}

// Init binds and listens per cfg. For TCP it sets SO_REUSEADDR and, on
// Linux, IP_FREEBIND. Bind and listen happen in a single call: a failure
// of either is reported as ErrorBind, and no socket from the failed
// attempt is kept open. For UDS it unlinks a stale socket file first and
// chmods/chowns the path once bound.
func (a *Acceptor) Init(cfg sckcfg.Server) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg = cfg

	if cfg.Network.IsUnix() {
		if _, err := os.Stat(cfg.Address); err == nil {
			_ = os.Remove(cfg.Address)
		}
	}

	var lst net.Listener
	var err error

	if cfg.Network.IsUnix() {
		lst, err = net.Listen(cfg.Network.Network(), cfg.Address)
	} else {
		lc := net.ListenConfig{Control: tcpControl}
		lst, err = lc.Listen(context.Background(), cfg.Network.Network(), cfg.Address)
	}
	if err != nil {
		return liberr.New(ErrorBind.Uint16(), getMessage(ErrorBind), err)
	}

	if cfg.Network.IsUnix() && cfg.Network != libptc.NetworkUnixGram {
		if cfg.PermFile != 0 {
			_ = os.Chmod(cfg.Address, cfg.PermFile.FileMode())
		}
		if cfg.GroupPerm > 0 {
			_ = os.Chown(cfg.Address, -1, int(cfg.GroupPerm))
		}
	}

	a.lst = lst
	a.closed = false
	return nil
}

// Close shuts the listener down permanently.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	lst := a.lst
	a.lst = nil
	a.closed = true
	a.mu.Unlock()

	if lst == nil {
		return nil
	}
	return lst.Close()
}

// Cancel aborts any accept loop currently in AsyncAccept without
// permanently closing the acceptor's configuration (the caller may Init
// again on a restart).
func (a *Acceptor) Cancel() {
	a.mu.Lock()
	lst := a.lst
	a.mu.Unlock()
	if lst != nil {
		_ = lst.Close()
	}
}

// GetLocalPort returns the bound TCP port, or 0 for a Unix-domain listener.
func (a *Acceptor) GetLocalPort() int {
	a.mu.Lock()
	lst := a.lst
	a.mu.Unlock()
	if lst == nil {
		return 0
	}
	if tcp, ok := lst.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// AsyncAccept runs the accept loop until Close/Cancel stops it or ctx is
// done, dispatching every accepted connection to handler with the owner's
// current lifecycle counter. It applies the backoff table a transient
// accept error needs: operation_aborted is silent (we closed it), a
// resource-exhaustion error debounces 1s before retrying, and anything
// else retries immediately while preserving the counter.
func (a *Acceptor) AsyncAccept(ctx context.Context, counter CounterFunc, handler Handler) error {
	a.mu.Lock()
	lst := a.lst
	a.mu.Unlock()
	if lst == nil {
		return liberr.New(ErrorClosed.Uint16(), getMessage(ErrorClosed))
	}

	go func() {
		<-ctx.Done()
		a.Cancel()
	}()

	for {
		cnx, err := lst.Accept()
		if err != nil {
			a.mu.Lock()
			closed := a.closed
			a.mu.Unlock()
			if closed || ctx.Err() != nil {
				return nil
			}
			if isBadDescriptor(err) {
				a.logBadDescriptor(err)
				time.Sleep(badDescriptorLogInterval)
				return liberr.New(ErrorBadDescriptor.Uint16(), getMessage(ErrorBadDescriptor), err)
			}
			if isTooManyFiles(err) {
				time.Sleep(time.Second)
			}
			continue
		}

		var lc uint32
		if counter != nil {
			lc = counter()
		}
		handler(cnx, lc)
	}
}

func isTooManyFiles(err error) bool {
	type temporary interface {
		Temporary() bool
	}
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}
	return false
}

// isBadDescriptor reports whether err wraps EBADF: the listening socket's
// file descriptor itself has gone bad, a fatal condition no amount of
// retrying an Accept call will recover from.
func isBadDescriptor(err error) bool {
	return stderrors.Is(err, syscall.EBADF)
}

// logBadDescriptor logs at most once per badDescriptorLogInterval, so a
// caller that keeps re-entering AsyncAccept against the same dead
// descriptor doesn't flood the log.
func (a *Acceptor) logBadDescriptor(err error) {
	a.mu.Lock()
	now := time.Now()
	fire := now.Sub(a.lastBadFDAt) >= badDescriptorLogInterval
	if fire {
		a.lastBadFDAt = now
	}
	a.mu.Unlock()

	if fire {
		a.log().WithFields(logger.Fields{"error": err.Error()}).Warn("very bad state")
	}
}
