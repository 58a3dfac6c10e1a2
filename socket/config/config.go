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

// Package config describes how to reach or expose a local socket endpoint:
// the transport family and address, Unix-domain file permissions and group
// ownership, and the TLS toggle a caller may layer on top.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	libptc "github/sabouaram/someip-local/network/protocol"
)

// MaxGID is the highest group id accepted for GroupPerm; POSIX systems
// reserve 16-bit gids and this mirrors the historic BSD/Linux ceiling used
// for non-system groups.
const MaxGID = 32767

// ErrInvalidGroup is returned by Server.Validate when GroupPerm is below -1
// or exceeds MaxGID.
var ErrInvalidGroup = errors.New("invalid unix group id")

// Perm is a small, marshal-free stand-in for a symbolic/octal file mode,
// used only for the permission bits applied to a freshly bound
// Unix-domain socket file.
type Perm os.FileMode

// ParsePerm parses an octal permission string ("0660", "660"...).
func ParsePerm(s string) (Perm, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file permission %q: %w", s, err)
	}
	return Perm(v), nil
}

// FileMode returns the os.FileMode equivalent.
func (p Perm) FileMode() os.FileMode {
	return os.FileMode(p)
}

// String renders the permission as a zero-padded octal string.
func (p Perm) String() string {
	return fmt.Sprintf("0%o", uint32(p)&0777)
}

// TLS is the subset of TLS configuration a local socket may layer on top
// of its transport. It is a thin adapter over crypto/tls: the core never
// needs certificate management beyond handing a ready *tls.Config to the
// listener/dialer.
type TLS struct {
	// Enable toggles TLS for a Server.
	Enable bool
	// Enabled toggles TLS for a Client. Kept as a distinct field (rather
	// than reusing Enable) because client and server configs are
	// validated and constructed independently.
	Enabled bool
	Config  *tls.Config
}

// Client describes how to reach a peer endpoint.
type Client struct {
	Network libptc.NetworkProtocol
	Address string
	Timeout time.Duration
	TLS     TLS
}

// Validate reports whether the client config is well-formed: a recognized
// network family and a non-empty address.
func (c Client) Validate() error {
	if c.Network == libptc.NetworkEmpty || c.Network.String() == "" {
		return fmt.Errorf("socket client: unrecognized network protocol")
	}
	if c.Address == "" {
		return fmt.Errorf("socket client: empty address")
	}
	return nil
}

// Server describes how to expose a local acceptor.
type Server struct {
	Network libptc.NetworkProtocol
	Address string

	// PermFile is applied via chmod after binding a Unix-domain socket
	// file; ignored for IP transports.
	PermFile Perm
	// GroupPerm, when > 0, chowns the bound Unix-domain socket file to
	// this group id; 0 and -1 leave the file's group unchanged.
	GroupPerm int32

	// ConIdleTimeout is an idle limit for accepted connections carried in
	// the config. socket/server does not read it, so no accepted
	// connection is closed for being idle.
	ConIdleTimeout time.Duration

	TLS TLS
}

// Validate reports whether the server config is well-formed.
func (s Server) Validate() error {
	if s.Network == libptc.NetworkEmpty || s.Network.String() == "" {
		return fmt.Errorf("socket server: unrecognized network protocol")
	}
	if s.Address == "" {
		return fmt.Errorf("socket server: empty address")
	}
	if s.GroupPerm < -1 || s.GroupPerm > MaxGID {
		return ErrInvalidGroup
	}
	return nil
}
