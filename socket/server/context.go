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

package server

import (
	"context"
	"net"
	"sync/atomic"

	libsck "github/sabouaram/someip-local/socket"
)

// connContext adapts one accepted net.Conn to socket.Context for the
// duration of a HandlerFunc invocation.
type connContext struct {
	context.Context
	cancel context.CancelFunc

	cnx    net.Conn
	closed atomic.Bool
}

func newConnContext(cnx net.Conn) *connContext {
	ctx, cancel := context.WithCancel(context.Background())
	return &connContext{Context: ctx, cancel: cancel, cnx: cnx}
}

func (c *connContext) IsConnected() bool {
	return !c.closed.Load()
}

func (c *connContext) LocalHost() string {
	if c.cnx == nil {
		return ""
	}
	return c.cnx.LocalAddr().String()
}

func (c *connContext) RemoteHost() string {
	if c.cnx == nil {
		return ""
	}
	return c.cnx.RemoteAddr().String()
}

func (c *connContext) Read(p []byte) (int, error) {
	n, err := c.cnx.Read(p)
	if err = libsck.ErrorFilter(err); err != nil {
		c.closed.Store(true)
		c.cancel()
	}
	return n, err
}

func (c *connContext) Write(p []byte) (int, error) {
	n, err := c.cnx.Write(p)
	if err = libsck.ErrorFilter(err); err != nil {
		c.closed.Store(true)
		c.cancel()
	}
	return n, err
}

// Close closes the underlying connection and cancels the context, so a
// caller outside the HandlerFunc (an endpoint forced-stopping its
// transport) can tear down the accepted connection directly.
func (c *connContext) Close() error {
	c.closed.Store(true)
	c.cancel()
	return libsck.ErrorFilter(c.cnx.Close())
}

// RemotePort returns the numeric TCP port of the peer, or 0 for a
// Unix-domain connection (which has no port).
func (c *connContext) RemotePort() int {
	if tcp, ok := c.cnx.RemoteAddr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// UnixConn returns the underlying *net.UnixConn and true when this
// connection is a Unix-domain socket, for SO_PEERCRED extraction.
func (c *connContext) UnixConn() (*net.UnixConn, bool) {
	uc, ok := c.cnx.(*net.UnixConn)
	return uc, ok
}
