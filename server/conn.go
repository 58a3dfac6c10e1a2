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

package server

import "net"

// connAdapter wraps a raw accepted net.Conn with the capability methods
// endpoint's optional interfaces look for (UnixConn, RemotePort, Close),
// the same shape socket/server's connContext exposes, but built directly
// over the acceptor's net.Conn since this server bypasses socket/server's
// close-on-handler-return lifecycle.
type connAdapter struct {
	cnx net.Conn
}

func newConnAdapter(cnx net.Conn) *connAdapter {
	return &connAdapter{cnx: cnx}
}

func (c *connAdapter) Read(p []byte) (int, error)  { return c.cnx.Read(p) }
func (c *connAdapter) Write(p []byte) (int, error) { return c.cnx.Write(p) }

func (c *connAdapter) Close() error {
	return c.cnx.Close()
}

// CloseForced sets SO_LINGER(0) on a TCP peer before closing, so the
// kernel sends RST and skips TIME_WAIT on this side, matching endpoint's
// forced-close path on a FAILED (as opposed to graceful) shutdown.
func (c *connAdapter) CloseForced() error {
	if tcp, ok := c.cnx.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	return c.cnx.Close()
}

func (c *connAdapter) UnixConn() (*net.UnixConn, bool) {
	uc, ok := c.cnx.(*net.UnixConn)
	return uc, ok
}

func (c *connAdapter) RemotePort() int {
	if tcp, ok := c.cnx.RemoteAddr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
