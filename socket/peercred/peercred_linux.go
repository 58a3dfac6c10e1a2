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

//go:build linux

// Package peercred reads the kernel-verified credentials of the process on
// the other end of a Unix-domain socket.
package peercred

import (
	"net"

	"golang.org/x/sys/unix"
)

// Credentials is the kernel-verified identity of a Unix-domain peer.
type Credentials struct {
	UID uint32
	GID uint32
	PID int32
}

// Of returns the SO_PEERCRED credentials of conn's peer. ok is false when
// conn is not a Unix-domain socket or the kernel lookup fails.
func Of(conn *net.UnixConn) (creds Credentials, ok bool) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Credentials{}, false
	}

	var cred *unix.Ucred
	var gerr error
	cerr := raw.Control(func(fd uintptr) {
		cred, gerr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if cerr != nil || gerr != nil || cred == nil {
		return Credentials{}, false
	}

	return Credentials{UID: cred.Uid, GID: cred.Gid, PID: cred.Pid}, true
}
