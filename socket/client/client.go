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

// Package client implements socket.Client over a net.Conn, parametrized by
// network protocol rather than duplicated per-protocol package, since every
// family (tcp/tcp4/tcp6/udp/udp4/udp6/unix/unixgram) needs exactly the same
// dial/read/write/close capability set.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	libsck "github/sabouaram/someip-local/socket"
	sckcfg "github/sabouaram/someip-local/socket/config"
)

type client struct {
	mu  sync.Mutex
	cfg sckcfg.Client
	cnx net.Conn

	fctErr     libsck.FuncError
	updateConn func(net.Conn)
}

// New creates a Client for cfg. The second argument is an optional
// connection customization hook (socket options, deadlines) applied right
// after dial; nil skips it.
func New(cfg sckcfg.Client, updateConn func(net.Conn)) (libsck.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &client{cfg: cfg, updateConn: updateConn}, nil
}

func (c *client) RegisterFuncError(f libsck.FuncError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fctErr = f
}

func (c *client) raise(err error) {
	if err = libsck.ErrorFilter(err); err == nil {
		return
	}
	c.mu.Lock()
	f := c.fctErr
	c.mu.Unlock()
	if f != nil {
		f(err)
	}
}

func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cnx != nil {
		c.mu.Unlock()
		return nil
	}
	cfg := c.cfg
	c.mu.Unlock()

	dialer := &net.Dialer{Timeout: cfg.Timeout}

	var (
		cnx net.Conn
		err error
	)

	if cfg.TLS.Enabled && cfg.TLS.Config != nil {
		cnx, err = tls.DialWithDialer(dialer, cfg.Network.Network(), cfg.Address, cfg.TLS.Config)
	} else {
		cnx, err = dialer.DialContext(ctx, cfg.Network.Network(), cfg.Address)
	}
	if err != nil {
		err = fmt.Errorf("socket client: dial %s %s: %w", cfg.Network.Network(), cfg.Address, err)
		c.raise(err)
		return err
	}

	if c.updateConn != nil {
		c.updateConn(cnx)
	}

	c.mu.Lock()
	c.cnx = cnx
	c.mu.Unlock()
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	cnx := c.cnx
	c.cnx = nil
	c.mu.Unlock()

	if cnx == nil {
		return nil
	}
	return libsck.ErrorFilter(cnx.Close())
}

// CloseForced sets SO_LINGER(0) on a TCP connection before closing it, so
// the kernel tears it down with RST rather than the graceful FIN sequence
// (and skips TIME_WAIT on this side). Any other connection type closes as
// usual.
func (c *client) CloseForced() error {
	c.mu.Lock()
	cnx := c.cnx
	c.cnx = nil
	c.mu.Unlock()

	if cnx == nil {
		return nil
	}
	if tcp, ok := cnx.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	return libsck.ErrorFilter(cnx.Close())
}

func (c *client) Read(p []byte) (int, error) {
	c.mu.Lock()
	cnx := c.cnx
	c.mu.Unlock()

	if cnx == nil {
		return 0, fmt.Errorf("socket client: not connected")
	}
	n, err := cnx.Read(p)
	if err = libsck.ErrorFilter(err); err != nil {
		c.raise(err)
	}
	return n, err
}

func (c *client) Write(p []byte) (int, error) {
	c.mu.Lock()
	cnx := c.cnx
	c.mu.Unlock()

	if cnx == nil {
		return 0, fmt.Errorf("socket client: not connected")
	}
	n, err := cnx.Write(p)
	if err = libsck.ErrorFilter(err); err != nil {
		c.raise(err)
	}
	return n, err
}

func (c *client) Once(ctx context.Context, request net.Buffers, fct func(response []byte)) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	if len(request) > 0 {
		c.mu.Lock()
		cnx := c.cnx
		c.mu.Unlock()
		if _, err := request.WriteTo(cnx); err != nil {
			err = libsck.ErrorFilter(err)
			if err != nil {
				c.raise(err)
				return err
			}
		}
	}

	if fct == nil {
		return nil
	}

	buf := make([]byte, libsck.DefaultBufferSize)
	n, err := c.Read(buf)
	if err != nil {
		return err
	}
	fct(buf[:n])
	return nil
}

func (c *client) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cnx == nil {
		return nil
	}
	return c.cnx.LocalAddr()
}

func (c *client) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cnx == nil {
		return nil
	}
	return c.cnx.RemoteAddr()
}

// UnixConn returns the underlying *net.UnixConn and true when the dialed
// connection is a Unix-domain socket, for SO_PEERCRED extraction.
func (c *client) UnixConn() (*net.UnixConn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	uc, ok := c.cnx.(*net.UnixConn)
	return uc, ok
}
