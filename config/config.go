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

// Package config provides a concrete, hot-swappable policy.Configuration:
// a Settings value loaded at startup (or reloaded on SIGHUP by a caller),
// an atomic snapshot swap so readers never observe a half-updated value,
// and a sequential client-id Allocator.
package config

import (
	"fmt"
	"sync"

	libatm "github/sabouaram/someip-local/atomic"
	"github/sabouaram/someip-local/policy"
)

// Settings is the plain-data tunable set a Config wraps. Zero values are
// not valid; use Defaults as a starting point.
type Settings struct {
	MaxMessageSize  uint32
	ShrinkThreshold uint32
	QueueLimit      uint32

	UDSPermissions uint32

	TCPKeepaliveIdle     uint32
	TCPKeepaliveInterval uint32
	TCPKeepaliveCount    uint32
	TCPUserTimeout       uint32

	Security bool
	Routing  policy.SecClient
}

// Defaults mirrors endpoint's own fallbacks, so a Config built from
// Defaults behaves the same as omitting Config entirely from endpoint.Options.
func Defaults() Settings {
	return Settings{
		MaxMessageSize:       1 << 20,
		ShrinkThreshold:      8,
		QueueLimit:           1 << 20,
		UDSPermissions:       0660,
		TCPKeepaliveIdle:     30,
		TCPKeepaliveInterval: 5,
		TCPKeepaliveCount:    3,
		TCPUserTimeout:       30,
	}
}

// Config is a policy.Configuration backed by an atomically swapped
// Settings snapshot plus a client-id Allocator and an optional policy
// manager handle.
type Config struct {
	settings libatm.Value[Settings]

	allocator *Allocator
	manager   policy.PolicyManager
}

// New constructs a Config from an initial Settings value, a client-id
// Allocator (NewAllocator if nil), and an optional PolicyManager.
func New(s Settings, allocator *Allocator, manager policy.PolicyManager) *Config {
	if allocator == nil {
		allocator = NewAllocator()
	}
	c := &Config{
		settings:  libatm.NewValue[Settings](),
		allocator: allocator,
		manager:   manager,
	}
	c.settings.Store(s)
	return c
}

// Reload atomically swaps in a new Settings snapshot. Readers mid-flight
// see either the old or the new value in full, never a mix of the two.
func (c *Config) Reload(s Settings) {
	c.settings.Store(s)
}

func (c *Config) current() Settings {
	return c.settings.Load()
}

func (c *Config) MaxMessageSizeLocal() uint32     { return c.current().MaxMessageSize }
func (c *Config) BufferShrinkThreshold() uint32   { return c.current().ShrinkThreshold }
func (c *Config) EndpointQueueLimitLocal() uint32 { return c.current().QueueLimit }

func (c *Config) PermissionsUDS() uint32 { return c.current().UDSPermissions }

func (c *Config) TCPKeepaliveIdle() uint32     { return c.current().TCPKeepaliveIdle }
func (c *Config) TCPKeepaliveInterval() uint32 { return c.current().TCPKeepaliveInterval }
func (c *Config) TCPKeepaliveCount() uint32    { return c.current().TCPKeepaliveCount }
func (c *Config) TCPUserTimeout() uint32       { return c.current().TCPUserTimeout }

func (c *Config) SecurityEnabled() bool                { return c.current().Security }
func (c *Config) RoutingCredentials() policy.SecClient { return c.current().Routing }

func (c *Config) PolicyManager() policy.PolicyManager { return c.manager }

func (c *Config) RequestClientID(name string, desired uint16) (uint16, error) {
	return c.allocator.RequestClientID(name, desired)
}

// Allocator hands out 16-bit client ids sequentially, honoring a caller's
// desired id when it is free, and rejects 0 (reserved for the router
// itself) and reuse of an id still in use.
type Allocator struct {
	// mu serializes the find-next-free-slot scan below; used itself is
	// already safe for concurrent Load/Store but the scan is a
	// check-then-act sequence that still needs exclusion.
	mu   sync.Mutex
	used libatm.MapTyped[uint16, string]
	next uint16
}

// NewAllocator returns an Allocator starting its sequential search at 1.
func NewAllocator() *Allocator {
	return &Allocator{used: libatm.NewMapTyped[uint16, string](), next: 1}
}

// RequestClientID returns desired if it is non-zero and free, or the next
// free id otherwise. Release must be called when the client disconnects
// so its id becomes available again.
func (a *Allocator) RequestClientID(name string, desired uint16) (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if desired != 0 {
		if _, taken := a.used.Load(desired); taken {
			return 0, fmt.Errorf("config: client id %d already in use", desired)
		}
		a.used.Store(desired, name)
		return desired, nil
	}

	for {
		if a.next == 0 {
			a.next++
		}
		if _, taken := a.used.Load(a.next); !taken {
			id := a.next
			a.used.Store(id, name)
			a.next++
			return id, nil
		}
		a.next++
	}
}

// Release frees id for reuse by a future client.
func (a *Allocator) Release(id uint16) {
	a.used.Delete(id)
}
