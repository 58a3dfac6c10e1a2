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

// Package endpoint drives one peer connection end to end: connecting (for
// a sender) or serving an already-accepted socket (for a receiver), a
// bounded send queue, a framing receive loop, a peer-credential check
// before the connection is trusted, and single-fire escalation to an
// owner-supplied error handler on failure.
package endpoint

import (
	"context"
	"net"
	"sync"
	"time"

	"github/sabouaram/someip-local/framing"
	"github/sabouaram/someip-local/policy"
	libsck "github/sabouaram/someip-local/socket"
	"github/sabouaram/someip-local/socket/peercred"
	"github/sabouaram/someip-local/timer"
)

// State is one of the five states of the endpoint's connection machine.
type State uint8

const (
	Init State = iota
	Connecting
	Connected
	Stopped
	Failed
)

var stateNames = map[State]string{
	Init:       "INIT",
	Connecting: "CONNECTING",
	Connected:  "CONNECTED",
	Stopped:    "STOPPED",
	Failed:     "FAILED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Role distinguishes an endpoint that dials out (Sender) from one created
// around an already-accepted socket (Receiver).
type Role uint8

const (
	Sender Role = iota
	Receiver
)

// Defaults mirror the timing and sizing constants the local transport
// assumes absent an explicit Configuration override.
const (
	DefaultConnectDebounce   = 250 * time.Millisecond
	DefaultConnectingTimebox = 3 * time.Second
	DefaultMaxReconnects     = 16
	DefaultQueueLimit        = 1 << 20
	DefaultMaxMessageSize    = 1 << 20
	DefaultShrinkThreshold   = 8
)

// ErrorHandler is invoked at most once per endpoint, without the endpoint
// mutex held, the first time the endpoint transitions to FAILED.
type ErrorHandler func(ep *Endpoint)

// transport is the read/write capability both a dialed socket.Client and
// an accepted socket.Context satisfy.
type transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

type unixPeerSource interface {
	UnixConn() (*net.UnixConn, bool)
}

type remotePorter interface {
	RemotePort() int
}

// Options configures one Endpoint at construction.
type Options struct {
	Role                  Role
	IsRoutingEndpoint     bool
	PeerClient            uint16
	MaxConnectionAttempts uint32
	QueueLimit            uint32
	MaxMessageSize        uint32
	ShrinkThreshold       uint32
	ConnectDebounce       time.Duration
	ConnectingTimebox     time.Duration

	Config       policy.Configuration
	RoutingHost  policy.RoutingHost
	EndpointHost policy.EndpointHost

	// Dialer is required for Role == Sender: it produces the socket.Client
	// used for every (re)connect attempt.
	Dialer func(ctx context.Context) (libsck.Client, error)

	// Accepted is required for Role == Receiver: the already-connected
	// transport handed off by the acceptor/server layer, plus any bytes
	// already read past the handshake that belong to the next message.
	Accepted  transport
	Remainder []byte
}

// Endpoint is one peer connection's lifecycle, send queue, and receive
// loop. All mutations hold mu; every external callback (routing host,
// endpoint host, error handler) is invoked with mu released.
type Endpoint struct {
	mu sync.Mutex

	state      State
	role       Role
	peerClient uint16
	secClient  policy.SecClient

	isRoutingEndpoint bool

	sendQueue []byte
	isSending bool

	recvBuf *framing.Buffer

	reconnectCounter      uint32
	maxConnectionAttempts uint32
	queueLimit            uint32
	maxMessageSize        uint32

	// connectGen is bumped each time a new connect attempt starts, each
	// time the connecting timebox fires on a still-outstanding attempt,
	// and on Stop. beginConnect captures it before dialing and checks it
	// again before touching client/transport or reporting an outcome, so
	// a superseded attempt's late result is discarded instead of
	// clobbering the state a newer attempt (or Stop) already set.
	connectGen uint64

	connectDebounce   timer.Timer
	connectingTimebox timer.Timer

	errorHandler ErrorHandler
	errorFired   bool

	cfg          policy.Configuration
	routingHost  policy.RoutingHost
	endpointHost policy.EndpointHost

	dialer func(ctx context.Context) (libsck.Client, error)
	client libsck.Client

	transport transport

	ownerCtx    context.Context
	ownerCancel context.CancelFunc
}

// New constructs an Endpoint in INIT (Role == Sender) or CONNECTED
// (Role == Receiver), per the sender/receiver construction invariant.
func New(opts Options) *Endpoint {
	ctx, cancel := context.WithCancel(context.Background())

	maxAttempts := opts.MaxConnectionAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxReconnects
	}
	queueLimit := opts.QueueLimit
	if queueLimit == 0 {
		queueLimit = DefaultQueueLimit
	}
	maxMsg := opts.MaxMessageSize
	if maxMsg == 0 {
		maxMsg = DefaultMaxMessageSize
	}
	shrinkThreshold := opts.ShrinkThreshold
	if shrinkThreshold == 0 {
		shrinkThreshold = DefaultShrinkThreshold
	}
	debounce := opts.ConnectDebounce
	if debounce == 0 {
		debounce = DefaultConnectDebounce
	}
	timebox := opts.ConnectingTimebox
	if timebox == 0 {
		timebox = DefaultConnectingTimebox
	}

	e := &Endpoint{
		role:                  opts.Role,
		peerClient:            opts.PeerClient,
		isRoutingEndpoint:     opts.IsRoutingEndpoint,
		maxConnectionAttempts: maxAttempts,
		queueLimit:            queueLimit,
		maxMessageSize:        maxMsg,
		recvBuf:               framing.New(maxMsg, shrinkThreshold),
		cfg:                   opts.Config,
		routingHost:           opts.RoutingHost,
		endpointHost:          opts.EndpointHost,
		dialer:                opts.Dialer,
		ownerCtx:              ctx,
		ownerCancel:           cancel,
	}

	e.connectDebounce = timer.Create(ctx, debounce, e.onDebounceFire)
	e.connectingTimebox = timer.Create(ctx, timebox, e.onTimeboxFire)

	if opts.Role == Receiver {
		e.state = Connected
		e.transport = opts.Accepted
		if len(opts.Remainder) > 0 {
			copy(e.recvBuf.Tail(), opts.Remainder)
			_ = e.recvBuf.BumpEnd(len(opts.Remainder))
		}
	} else {
		e.state = Init
	}

	return e
}

// State returns the endpoint's current state.
func (e *Endpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// GetQueueSize returns the current byte length of the pending send queue.
func (e *Endpoint) GetQueueSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sendQueue)
}

// Metrics is a read-only snapshot for operators.
type Metrics struct {
	State            State
	QueueSize        int
	ReconnectCounter uint32
}

func (e *Endpoint) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Metrics{State: e.state, QueueSize: len(e.sendQueue), ReconnectCounter: e.reconnectCounter}
}

// RegisterErrorHandler stores fn, invoked without the mutex exactly once
// on transition to FAILED.
func (e *Endpoint) RegisterErrorHandler(fn ErrorHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errorHandler = fn
}

// Start begins connecting (Sender, from INIT) or begins the receive loop
// (Receiver, already CONNECTED). It is idempotent once CONNECTED.
func (e *Endpoint) Start() {
	e.mu.Lock()
	switch e.state {
	case Init:
		e.state = Connecting
		e.mu.Unlock()
		go e.beginConnect()
		return
	case Connected:
		e.mu.Unlock()
		go e.startReceiver()
		return
	default:
		e.mu.Unlock()
	}
}

// Stop releases timers, shuts down the transport (forced if dueToError or
// already FAILED), and transitions to STOPPED. After Stop, no further
// callback to the routing host, endpoint host, or error handler occurs.
func (e *Endpoint) Stop(dueToError bool) {
	e.mu.Lock()
	if e.state == Stopped {
		e.mu.Unlock()
		return
	}
	prev := e.state
	e.state = Stopped
	e.connectGen++
	e.ownerCancel()
	e.mu.Unlock()

	e.connectDebounce.Stop()
	e.connectingTimebox.Stop()

	forced := dueToError || prev == Failed

	if e.client != nil {
		if forced {
			_ = e.client.CloseForced()
		} else {
			_ = e.client.Close()
		}
	}
	if fc, ok := e.transport.(forceCloser); ok && forced {
		_ = fc.CloseForced()
	} else if c, ok := e.transport.(closer); ok {
		_ = c.Close()
	}

	if prev == Connected && e.endpointHost != nil {
		e.endpointHost.OnDisconnect(e)
	}
}

type closer interface {
	Close() error
}

// forceCloser is the accepted-side counterpart of socket.Client's
// CloseForced: a transport that can drop straight to RST instead of a
// graceful FIN close.
type forceCloser interface {
	CloseForced() error
}

// Send appends data to the send queue and initiates a write if idle. It
// rejects messages larger than maxMessageSize or that would overflow the
// queue limit.
func (e *Endpoint) Send(data []byte) bool {
	e.mu.Lock()
	if uint32(len(data)) > e.maxMessageSize {
		e.mu.Unlock()
		return false
	}
	if uint32(len(e.sendQueue)+len(data)) > e.queueLimit {
		e.mu.Unlock()
		return false
	}
	if e.state != Connected {
		e.mu.Unlock()
		return false
	}
	e.sendQueue = append(e.sendQueue, data...)
	shouldSend := !e.isSending
	e.mu.Unlock()

	if shouldSend {
		go e.drainSendQueue()
	}
	return true
}

func (e *Endpoint) drainSendQueue() {
	for {
		e.mu.Lock()
		if e.state != Connected || len(e.sendQueue) == 0 {
			e.isSending = false
			e.mu.Unlock()
			return
		}
		out := e.sendQueue
		e.sendQueue = nil
		e.isSending = true
		tr := e.transport
		e.mu.Unlock()

		if tr == nil {
			return
		}
		if _, err := tr.Write(out); err != nil {
			e.escalate()
			return
		}
	}
}

func (e *Endpoint) beginConnect() {
	if e.dialer == nil {
		e.escalate()
		return
	}

	e.mu.Lock()
	e.connectGen++
	gen := e.connectGen
	e.mu.Unlock()

	e.connectingTimebox.Start()

	cli, err := e.dialer(e.ownerCtx)
	if err != nil {
		if e.currentConnectGen(gen) {
			e.onConnectFailed()
		}
		return
	}

	e.mu.Lock()
	if e.connectGen != gen {
		e.mu.Unlock()
		_ = cli.Close()
		return
	}
	e.client = cli
	e.transport = cli
	e.mu.Unlock()

	if err := cli.Connect(e.ownerCtx); err != nil {
		if e.currentConnectGen(gen) {
			e.onConnectFailed()
		}
		return
	}

	e.mu.Lock()
	if e.connectGen != gen {
		e.mu.Unlock()
		_ = cli.CloseForced()
		return
	}
	e.mu.Unlock()

	e.connectingTimebox.Stop()
	e.onConnectSucceeded()
}

// currentConnectGen reports whether gen is still the endpoint's live
// connect generation, i.e. no newer attempt, timebox fire, or Stop has
// superseded the attempt that captured it.
func (e *Endpoint) currentConnectGen(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connectGen == gen
}

func (e *Endpoint) onConnectFailed() {
	e.connectingTimebox.Stop()

	e.mu.Lock()
	if e.state != Connecting {
		e.mu.Unlock()
		return
	}
	e.reconnectCounter++
	exceeded := e.reconnectCounter > e.maxConnectionAttempts
	if exceeded {
		e.mu.Unlock()
		e.escalate()
		return
	}
	e.state = Init
	e.mu.Unlock()

	e.connectDebounce.Start()
}

func (e *Endpoint) onDebounceFire(ctx context.Context) bool {
	e.mu.Lock()
	if e.state != Init {
		e.mu.Unlock()
		return false
	}
	e.state = Connecting
	e.mu.Unlock()

	e.beginConnect()
	return false
}

// onTimeboxFire gives up on the current connect attempt from the endpoint's
// point of view. It bumps connectGen so that if the stuck dial or Connect
// call this attempt is blocked on eventually returns, beginConnect notices
// it is no longer current and discards the result instead of reporting it.
func (e *Endpoint) onTimeboxFire(ctx context.Context) bool {
	e.mu.Lock()
	if e.state != Connecting {
		e.mu.Unlock()
		return false
	}
	e.connectGen++
	e.mu.Unlock()

	e.onConnectFailed()
	return false
}

func (e *Endpoint) onConnectSucceeded() {
	if !e.isAllowed() {
		if e.client != nil {
			_ = e.client.CloseForced()
		}
		e.escalate()
		return
	}

	e.mu.Lock()
	e.state = Connected
	e.reconnectCounter = 0
	e.mu.Unlock()

	if e.endpointHost != nil {
		e.endpointHost.OnConnect(e)
	}

	if e.GetQueueSize() > 0 {
		go e.drainSendQueue()
	}

	go e.runReceiveLoop()
}

// isAllowed validates the peer's credentials before the endpoint is
// trusted: UID/GID for a Unix-domain peer, port for TCP. With security
// disabled it instead registers the two-way client<->credential mapping.
func (e *Endpoint) isAllowed() bool {
	e.mu.Lock()
	tr := e.transport
	cfg := e.cfg
	isRouting := e.isRoutingEndpoint
	peerClient := e.peerClient
	e.mu.Unlock()

	sec := policy.SecClient{}
	if up, ok := tr.(unixPeerSource); ok {
		if uc, isUnix := up.UnixConn(); isUnix {
			if creds, ok := peercred.Of(uc); ok {
				uid, gid := creds.UID, creds.GID
				sec = policy.SecClient{UID: &uid, GID: &gid, HasUnix: true}
			}
		}
	}
	if !sec.HasUnix {
		if rp, ok := tr.(remotePorter); ok {
			sec.Port = uint16(rp.RemotePort())
		}
	}

	e.mu.Lock()
	e.secClient = sec
	e.mu.Unlock()

	if cfg == nil || !cfg.SecurityEnabled() {
		if cfg != nil && cfg.PolicyManager() != nil {
			cfg.PolicyManager().StoreClientToSecClientMapping(peerClient, sec)
		}
		return true
	}

	if isRouting {
		want := cfg.RoutingCredentials()
		return sameCredentials(want, sec)
	}

	if pm := cfg.PolicyManager(); pm != nil {
		return pm.CheckCredentials(peerClient, sec)
	}
	return false
}

func sameCredentials(want, got policy.SecClient) bool {
	if want.HasUnix != got.HasUnix {
		return false
	}
	if want.HasUnix {
		if want.UID == nil || got.UID == nil || *want.UID != *got.UID {
			return false
		}
		if want.GID == nil || got.GID == nil || *want.GID != *got.GID {
			return false
		}
		return true
	}
	return want.Port == got.Port
}

// startReceiver validates the accepted peer's credentials before the
// receive loop begins, mirroring the sender's post-connect check.
func (e *Endpoint) startReceiver() {
	if !e.isAllowed() {
		e.mu.Lock()
		tr := e.transport
		e.mu.Unlock()
		if fc, ok := tr.(forceCloser); ok {
			_ = fc.CloseForced()
		} else if c, ok := tr.(closer); ok {
			_ = c.Close()
		}
		e.escalate()
		return
	}

	if e.endpointHost != nil {
		e.endpointHost.OnConnect(e)
	}

	e.runReceiveLoop()
}

func (e *Endpoint) runReceiveLoop() {
	for {
		e.mu.Lock()
		if e.state != Connected {
			e.mu.Unlock()
			return
		}
		tr := e.transport
		buf := e.recvBuf
		e.mu.Unlock()

		if tr == nil {
			return
		}

		n, err := tr.Read(buf.Tail())
		if err != nil {
			e.escalate()
			return
		}
		if n == 0 {
			continue
		}
		if bumpErr := buf.BumpEnd(n); bumpErr != nil {
			e.escalate()
			return
		}

		if !e.process() {
			return
		}
	}
}

// process drains every complete framed command currently buffered,
// dispatching each to the routing host without the endpoint mutex held.
func (e *Endpoint) process() bool {
	for {
		e.mu.Lock()
		buf := e.recvBuf
		peerClient := e.peerClient
		sec := e.secClient
		host := e.routingHost
		e.mu.Unlock()

		msg, err, ok := buf.NextMessage()
		if err != nil {
			e.escalate()
			return false
		}
		if !ok {
			return true
		}

		if host != nil {
			host.OnMessage(msg, e, false, peerClient, sec, nil)
		}
	}
}

// escalate is the single entry point to FAILED. It sets state under the
// mutex, copies the handler out, releases the mutex, then invokes it at
// most once.
func (e *Endpoint) escalate() {
	e.mu.Lock()
	if e.state == Stopped || e.state == Failed {
		e.mu.Unlock()
		return
	}
	e.state = Failed
	already := e.errorFired
	e.errorFired = true
	handler := e.errorHandler
	e.mu.Unlock()

	if already {
		return
	}
	if handler != nil {
		handler(e)
	}
}
