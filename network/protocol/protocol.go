/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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
 */

// Package protocol names the transport families that a local socket
// endpoint can be bound to: loopback/cross-host IP sockets and
// filesystem-path Unix-domain sockets (stream and datagram).
package protocol

import (
	"math"
	"strconv"
	"strings"
)

// NetworkProtocol identifies the transport family of an endpoint address.
type NetworkProtocol uint8

const (
	NetworkEmpty NetworkProtocol = iota
	NetworkUnix
	NetworkTCP
	NetworkTCP4
	NetworkTCP6
	NetworkUDP
	NetworkUDP4
	NetworkUDP6
	NetworkIP
	NetworkIP4
	NetworkIP6
	NetworkUnixGram
)

var names = map[NetworkProtocol]string{
	NetworkUnix:     "unix",
	NetworkTCP:      "tcp",
	NetworkTCP4:     "tcp4",
	NetworkTCP6:     "tcp6",
	NetworkUDP:      "udp",
	NetworkUDP4:     "udp4",
	NetworkUDP6:     "udp6",
	NetworkIP:       "ip",
	NetworkIP4:      "ip4",
	NetworkIP6:      "ip6",
	NetworkUnixGram: "unixgram",
}

// String returns the canonical lowercase name of the protocol, or an
// empty string for NetworkEmpty or any unregistered value.
func (p NetworkProtocol) String() string {
	return names[p]
}

// Code is an alias for String, used when the protocol is exposed as a
// classification code rather than a network family name.
func (p NetworkProtocol) Code() string {
	return p.String()
}

// Int returns the protocol as a plain int, matching its declaration order.
func (p NetworkProtocol) Int() int {
	return int(p)
}

// Int64 returns the protocol as an int64. Unregistered values (including
// NetworkEmpty) yield 0.
func (p NetworkProtocol) Int64() int64 {
	if _, ok := names[p]; !ok {
		return 0
	}
	return int64(p)
}

// Uint8 returns the protocol as a uint8.
func (p NetworkProtocol) Uint8() uint8 {
	return uint8(p)
}

// IsIP reports whether the protocol addresses a network socket (IP, TCP or
// UDP family) as opposed to a filesystem Unix-domain socket.
func (p NetworkProtocol) IsIP() bool {
	switch p {
	case NetworkTCP, NetworkTCP4, NetworkTCP6, NetworkUDP, NetworkUDP4, NetworkUDP6, NetworkIP, NetworkIP4, NetworkIP6:
		return true
	default:
		return false
	}
}

// IsUnix reports whether the protocol addresses a filesystem Unix-domain
// socket, stream (NetworkUnix) or datagram (NetworkUnixGram).
func (p NetworkProtocol) IsUnix() bool {
	return p == NetworkUnix || p == NetworkUnixGram
}

// Network returns the name to hand to net.Dial / net.Listen for this
// protocol, identical to String for every registered value.
func (p NetworkProtocol) Network() string {
	return p.String()
}

// Parse resolves a protocol name to its NetworkProtocol value. Matching is
// case-insensitive and tolerant of surrounding whitespace and of a single
// layer of quoting (as produced by %q or a shell-quoted config value).
// Unknown input returns NetworkEmpty.
func Parse(s string) NetworkProtocol {
	s = strings.TrimSpace(s)
	s = unquote(s)
	s = strings.ToLower(strings.TrimSpace(s))

	for p, n := range names {
		if n == s {
			return p
		}
	}
	return NetworkEmpty
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ParseBytes is a convenience wrapper around Parse for byte-slice input.
func ParseBytes(b []byte) NetworkProtocol {
	if len(b) == 0 {
		return NetworkEmpty
	}
	return Parse(string(b))
}

// ParseInt64 resolves a numeric protocol value, rejecting anything outside
// the registered [NetworkUnix, NetworkUnixGram] range (including negative
// values and values beyond math.MaxUint8).
func ParseInt64(i int64) NetworkProtocol {
	if i <= 0 || i > math.MaxUint8 {
		return NetworkEmpty
	}

	p := NetworkProtocol(uint8(i))
	if _, ok := names[p]; !ok {
		return NetworkEmpty
	}
	return p
}

// MarshalJSON implements json.Marshaler, encoding the protocol as its
// quoted string name ("" for NetworkEmpty or an unregistered value).
func (p NetworkProtocol) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *NetworkProtocol) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		s = string(b)
	}
	*p = Parse(s)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p NetworkProtocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *NetworkProtocol) UnmarshalText(b []byte) error {
	*p = Parse(string(b))
	return nil
}
