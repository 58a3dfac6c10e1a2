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

// Package server implements the local acceptor's handshake: a freshly
// accepted connection must present ASSIGN_CLIENT_ID (router role) or
// CONFIG_ID (non-router role) before it is promoted to a long-lived
// endpoint.Endpoint and handed to the routing host. A monotonic lifecycle
// counter, sampled at accept time and compared again at promotion time,
// tells a connection accepted before the last Halt apart from a live one.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github/sabouaram/someip-local/acceptor"
	"github/sabouaram/someip-local/command"
	"github/sabouaram/someip-local/endpoint"
	liberr "github/sabouaram/someip-local/errors"
	"github/sabouaram/someip-local/framing"
	"github/sabouaram/someip-local/logger"
	"github/sabouaram/someip-local/policy"
	sckcfg "github/sabouaram/someip-local/socket/config"
)

// DefaultHandshakeMaxSize bounds the single framed command a handshake may
// carry; it is deliberately far smaller than a data-plane message limit.
const DefaultHandshakeMaxSize = 4096

// DefaultHandshakeTimeout is how long a freshly accepted connection has to
// present its handshake command before it is dropped.
const DefaultHandshakeTimeout = 3 * time.Second

// Server accepts connections for one local listening address, performs the
// two-command handshake, and owns the registry of promoted endpoints.
type Server struct {
	acceptor acceptor.Acceptor

	cfg          policy.Configuration
	routingHost  policy.RoutingHost
	endpointHost policy.EndpointHost

	// IsRouter selects the handshake this server expects: true accepts
	// ASSIGN_CLIENT_ID from application clients and allocates a client id;
	// false accepts CONFIG_ID, trusting the client id the peer already
	// carries in its envelope from an earlier router-assigned session.
	IsRouter bool

	HandshakeTimeout time.Duration
	HandshakeMaxSize uint32

	// OnHandshakeError, if set, is called without any internal lock held
	// whenever a freshly accepted connection fails its handshake.
	OnHandshakeError func(err error)

	// Log receives one structured entry per handshake failure and per
	// client promotion/removal. Defaults to logger.Discard.
	Log logger.Logger

	mu      sync.Mutex
	counter uint32
	clients map[uint16]*endpoint.Endpoint

	cancel context.CancelFunc
}

func (s *Server) raiseHandshakeErr(code liberr.CodeError, cause error) {
	err := liberr.New(code.Uint16(), getMessage(code), cause)
	s.Log.WithFields(logger.Fields{"code": code.Uint16()}).Warn(getMessage(code))
	if s.OnHandshakeError != nil {
		s.OnHandshakeError(err)
	}
}

// New constructs a Server bound to cfg's policy.Configuration and routing
// collaborators.
func New(cfg policy.Configuration, routingHost policy.RoutingHost, endpointHost policy.EndpointHost, isRouter bool) *Server {
	s := &Server{
		cfg:              cfg,
		routingHost:      routingHost,
		endpointHost:     endpointHost,
		IsRouter:         isRouter,
		HandshakeTimeout: DefaultHandshakeTimeout,
		HandshakeMaxSize: DefaultHandshakeMaxSize,
		Log:              logger.Discard,
		clients:          make(map[uint16]*endpoint.Endpoint),
	}
	s.acceptor.Log = s.Log
	return s
}

// Init binds the listening address without yet accepting connections.
func (s *Server) Init(cfg sckcfg.Server) error {
	return s.acceptor.Init(cfg)
}

// Start runs the accept loop until ctx is canceled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	return s.acceptor.AsyncAccept(ctx, s.currentCounter, s.onAccept)
}

// Halt bumps the lifecycle counter without closing the listener, so a
// connection already mid-handshake is rejected at promotion time while the
// listener itself stays bound for a restart. The accept loop keeps running;
// connections accepted after Halt carry the new counter value.
func (s *Server) Halt() {
	s.mu.Lock()
	s.counter++
	s.mu.Unlock()
}

// Stop bumps the lifecycle counter, force-stops every registered endpoint,
// and closes the listener permanently.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.counter++
	clients := make([]*endpoint.Endpoint, 0, len(s.clients))
	for _, ep := range s.clients {
		clients = append(clients, ep)
	}
	s.clients = make(map[uint16]*endpoint.Endpoint)
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, ep := range clients {
		ep.Stop(false)
	}
	return s.acceptor.Close()
}

// GetLocalPort returns the bound TCP port, or 0 for a Unix-domain listener.
func (s *Server) GetLocalPort() int {
	return s.acceptor.GetLocalPort()
}

// ClientCount returns the number of currently registered endpoints.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) currentCounter() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

func (s *Server) onAccept(cnx net.Conn, lifecycleCounter uint32) {
	go s.handshake(cnx, lifecycleCounter)
}

func (s *Server) handshake(cnx net.Conn, lc uint32) {
	timeout := s.HandshakeTimeout
	if timeout == 0 {
		timeout = DefaultHandshakeTimeout
	}
	maxSize := s.HandshakeMaxSize
	if maxSize == 0 {
		maxSize = DefaultHandshakeMaxSize
	}

	_ = cnx.SetReadDeadline(time.Now().Add(timeout))

	buf := framing.New(maxSize, 0)
	var msg []byte
	for {
		n, err := cnx.Read(buf.Tail())
		if err != nil {
			_ = cnx.Close()
			s.raiseHandshakeErr(ErrorHandshakeTimeout, err)
			return
		}
		if n == 0 {
			continue
		}
		if err = buf.BumpEnd(n); err != nil {
			_ = cnx.Close()
			s.raiseHandshakeErr(ErrorHandshakeMalformed, err)
			return
		}

		m, err, ok := buf.NextMessage()
		if err != nil {
			_ = cnx.Close()
			s.raiseHandshakeErr(ErrorHandshakeMalformed, err)
			return
		}
		if ok {
			msg = m
			break
		}
	}

	_ = cnx.SetReadDeadline(time.Time{})

	header, err := command.DecodeHeader(msg)
	if err != nil {
		_ = cnx.Close()
		s.raiseHandshakeErr(ErrorHandshakeMalformed, err)
		return
	}
	payload := command.Payload(msg)

	if s.IsRouter {
		s.handshakeRouter(cnx, lc, header, payload)
	} else {
		s.handshakeNonRouter(cnx, lc, header, payload)
	}
}

func (s *Server) handshakeRouter(cnx net.Conn, lc uint32, header command.Header, payload []byte) {
	if header.ID != command.AssignClientID {
		_ = cnx.Close()
		s.raiseHandshakeErr(ErrorHandshakeUnexpectedCommand, nil)
		return
	}
	req, err := command.DeserializeAssignClientID(payload)
	if err != nil {
		_ = cnx.Close()
		s.raiseHandshakeErr(ErrorHandshakeMalformed, err)
		return
	}

	clientID, err := s.cfg.RequestClientID(req.Name, header.ClientID)
	if err != nil {
		_ = cnx.Close()
		s.raiseHandshakeErr(ErrorHandshakeMalformed, err)
		return
	}

	ack := command.AssignClientACKIDCmd{AssignedClientID: clientID}.Serialize(clientID)
	if _, err = cnx.Write(ack); err != nil {
		_ = cnx.Close()
		s.raiseHandshakeErr(ErrorHandshakeTimeout, err)
		return
	}

	s.promote(cnx, clientID, lc, req.Name)
}

func (s *Server) handshakeNonRouter(cnx net.Conn, lc uint32, header command.Header, payload []byte) {
	if header.ID != command.ConfigID {
		_ = cnx.Close()
		s.raiseHandshakeErr(ErrorHandshakeUnexpectedCommand, nil)
		return
	}
	cfgCmd, err := command.DeserializeConfigID(payload)
	if err != nil {
		_ = cnx.Close()
		s.raiseHandshakeErr(ErrorHandshakeMalformed, err)
		return
	}

	s.promote(cnx, header.ClientID, lc, cfgCmd.Hostname())
}

// promote registers cnx as the transport for clientID's endpoint, replacing
// any prior endpoint under that id, unless lc belongs to a lifecycle
// generation Halt has already superseded.
func (s *Server) promote(cnx net.Conn, clientID uint16, lc uint32, env string) {
	s.mu.Lock()
	if lc < s.counter {
		s.mu.Unlock()
		_ = cnx.Close()
		s.raiseHandshakeErr(ErrorStaleAccept, nil)
		return
	}

	prev, hadPrev := s.clients[clientID]

	adapter := newConnAdapter(cnx)
	ep := endpoint.New(endpoint.Options{
		Role:         endpoint.Receiver,
		PeerClient:   clientID,
		Config:       s.cfg,
		RoutingHost:  s.routingHost,
		EndpointHost: s.endpointHost,
		Accepted:     adapter,
	})
	ep.RegisterErrorHandler(func(*endpoint.Endpoint) {
		s.removeClient(clientID, ep)
	})
	s.clients[clientID] = ep
	s.mu.Unlock()

	if hadPrev {
		s.Log.WithFields(logger.Fields{"client": clientID}).Warn("replacing existing endpoint for this client id")
		prev.Stop(false)
	}

	s.Log.WithFields(logger.Fields{"client": clientID, "env": env}).Info("client promoted")
	s.routingHost.AddKnownClient(clientID, env)
	if tcp, ok := cnx.RemoteAddr().(*net.TCPAddr); ok {
		// -1 taken over from the legacy base-port convention: the guest's
		// advertised port is always the peer's ephemeral port minus one.
		s.routingHost.AddGuest(clientID, tcp, uint16(tcp.Port-1))
	}

	ep.Start()
}

func (s *Server) removeClient(clientID uint16, ep *endpoint.Endpoint) {
	s.mu.Lock()
	if s.clients[clientID] != ep {
		s.mu.Unlock()
		return
	}
	delete(s.clients, clientID)
	s.mu.Unlock()

	s.Log.WithFields(logger.Fields{"client": clientID}).Info("client removed")
	s.routingHost.RemoveKnownClient(clientID)
	ep.Stop(true)
}
