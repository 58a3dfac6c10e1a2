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

// Package policy declares the collaborator interfaces this core calls out
// to and never implements itself: the routing host, the endpoint host, the
// security policy manager, and the configuration/client-id-allocator
// surface. Wiring real routing, offer/subscribe bookkeeping, or a policy
// store behind these interfaces is explicitly out of scope.
package policy

import "net"

// SecClient is the peer-credential snapshot validated before an endpoint
// is allowed into CONNECTED: UID/GID for a Unix-domain peer (via
// SO_PEERCRED), or just the chosen local port for a TCP peer.
type SecClient struct {
	UID     *uint32
	GID     *uint32
	Port    uint16
	HasUnix bool
}

// RoutingHost receives parsed commands and join/leave notifications from
// every endpoint bound to this host.
type RoutingHost interface {
	// OnMessage delivers one fully-framed command payload received over
	// endpointRef. isReliable is always false for the local transports
	// this core models (TCP/UDS are both ordered-reliable by construction;
	// the flag exists so a future unreliable transport can reuse the
	// same call shape).
	OnMessage(data []byte, endpointRef any, isReliable bool, peerClient uint16, sec SecClient, peerAddr net.Addr)

	AddKnownClient(clientID uint16, env string)
	AddGuest(clientID uint16, addr net.Addr, port uint16)
	RemoveKnownClient(clientID uint16)
}

// EndpointHost is notified of an endpoint's connect/disconnect transitions,
// independent of the per-command RoutingHost callback.
type EndpointHost interface {
	OnConnect(endpointRef any)
	OnDisconnect(endpointRef any)
}

// PolicyManager authorizes and tracks client-to-credential bindings.
type PolicyManager interface {
	CheckCredentials(clientID uint16, sec SecClient) bool
	StoreClientToSecClientMapping(clientID uint16, sec SecClient)
	RemoveClientToSecClientMapping(clientID uint16)
}

// ClientAllocator hands out client ids during the handshake.
type ClientAllocator interface {
	// RequestClientID returns an id for name, honoring desired when
	// non-zero and available, or allocating a fresh one otherwise.
	RequestClientID(name string, desired uint16) (uint16, error)
}

// Configuration supplies every tunable this core needs from its host
// application, per the external-interfaces section: sizing limits, UDS
// permissions, TCP timing knobs, routing credentials, and the policy/
// allocator handles.
type Configuration interface {
	ClientAllocator

	MaxMessageSizeLocal() uint32
	BufferShrinkThreshold() uint32
	EndpointQueueLimitLocal() uint32

	PermissionsUDS() uint32

	TCPKeepaliveIdle() uint32
	TCPKeepaliveInterval() uint32
	TCPKeepaliveCount() uint32
	TCPUserTimeout() uint32

	SecurityEnabled() bool
	RoutingCredentials() SecClient

	PolicyManager() PolicyManager
}
