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

// Package socket defines the minimal capability set a local endpoint needs
// over a bidirectional stream: open/bind/connect, read/write, peer
// credentials, and graceful or forced shutdown. TCP and Unix-domain
// variants satisfy the same contract; the endpoint layer never type
// switches on which one it holds.
package socket

import (
	"context"
	"net"
	"strings"
)

// DefaultBufferSize is the size of the buffer a Client's Once reads the
// response into. A Context reads into the slice its caller passes.
const DefaultBufferSize = 32 * 1024

// EOL is the newline byte, exported for line-oriented callers; Once does
// not look for it.
const EOL = '\n'

// ConnState names a step in a connection's lifecycle, reported to a
// FuncInfo callback for logging and monitoring.
type ConnState uint8

const (
	ConnectionDial ConnState = iota
	ConnectionNew
	ConnectionRead
	ConnectionCloseRead
	ConnectionHandler
	ConnectionWrite
	ConnectionCloseWrite
	ConnectionClose
)

var connStateNames = map[ConnState]string{
	ConnectionDial:       "Dial Connection",
	ConnectionNew:        "New Connection",
	ConnectionRead:       "Read Incoming Stream",
	ConnectionCloseRead:  "Close Incoming Stream",
	ConnectionHandler:    "Run HandlerFunc",
	ConnectionWrite:      "Write Outgoing Steam",
	ConnectionCloseWrite: "Close Outgoing Stream",
	ConnectionClose:      "Close Connection",
}

// String returns the human-readable name of the state, or "unknown
// connection state" for any value outside the enumeration.
func (c ConnState) String() string {
	if n, ok := connStateNames[c]; ok {
		return n
	}
	return "unknown connection state"
}

// errClosedConn is the exact message the standard library net package uses
// for reads/writes against an already-closed connection. ErrorFilter only
// matches this exact string: a wrapped or annotated occurrence ("read tcp
// ...: use of closed network connection") is treated as a real error by
// design, since it may carry diagnostic context a caller still wants.
const errClosedConn = "use of closed network connection"

// ErrorFilter drops the benign "use of closed network connection" error
// that surfaces when a pending read/write observes a shutdown the caller
// itself initiated. Any other error, including one that merely contains
// that phrase as part of a longer message, passes through unchanged.
func ErrorFilter(err error) error {
	if err == nil {
		return nil
	}
	if err.Error() == errClosedConn {
		return nil
	}
	return err
}

// isClosedConnPrefixed reports whether a message is exactly the closed
// connection sentinel, ignoring surrounding whitespace. Kept separate from
// ErrorFilter so callers needing the raw predicate (without an error type)
// can reuse it.
func isClosedConnPrefixed(msg string) bool {
	return strings.TrimSpace(msg) == errClosedConn
}

// FuncError receives the errors observed by a client or server; it may be
// called with more than one error at once.
type FuncError func(errs ...error)

// FuncInfo receives a connection-lifecycle notification.
type FuncInfo func(local, remote net.Addr, state ConnState)

// FuncInfoServer receives a server-lifecycle notification (listening,
// shutdown) not tied to any single connection.
type FuncInfoServer func(state ConnState, msg string)

// Context is handed to a HandlerFunc for the duration of one accepted
// connection. It exposes the minimal read/write surface plus the
// cancellation signal the handler must respect.
type Context interface {
	context.Context

	// IsConnected reports whether the underlying connection is still open.
	IsConnected() bool

	// LocalHost returns the local side address as a string.
	LocalHost() string

	// RemoteHost returns the remote side address as a string.
	RemoteHost() string

	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// HandlerFunc processes one accepted connection.
type HandlerFunc func(ctx Context)

// Handler is the stateful counterpart of HandlerFunc for handlers that
// carry their own dependencies.
type Handler[T any] func(h T, ctx Context)

// Client is the capability set a sender endpoint drives: connect, write
// requests, read responses, close.
type Client interface {
	RegisterFuncError(f FuncError)

	Connect(ctx context.Context) error
	Close() error

	// CloseForced closes the connection the way a FAILED endpoint must:
	// SO_LINGER(0) on a TCP connection so the kernel sends RST instead of
	// going through the FIN/TIME_WAIT sequence, and a plain Close for any
	// transport that has no linger setting to give.
	CloseForced() error

	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	// Once writes request to the peer and, once a response is available,
	// invokes fct with the bytes returned by a single Read of at most
	// DefaultBufferSize bytes. Used for simple request/response
	// exchanges such as the handshake.
	Once(ctx context.Context, request net.Buffers, fct func(response []byte)) error

	// LocalAddr and RemoteAddr are nil until Connect has succeeded.
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Server is the capability set a local acceptor drives: listen, accept
// into HandlerFunc, report lifecycle, shut down.
type Server interface {
	RegisterFuncError(f FuncError)
	RegisterFuncInfo(f FuncInfo)
	RegisterFuncInfoServer(f FuncInfoServer)

	Listen(ctx context.Context) error
	Shutdown(ctx context.Context) error

	IsRunning() bool
	IsGone() bool

	// OpenConnections returns the number of connections currently accepted
	// and handled by this server.
	OpenConnections() int64
}
