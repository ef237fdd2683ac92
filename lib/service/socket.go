// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/depot-foundation/depot/lib/codec"
	"github.com/depot-foundation/depot/lib/netutil"
)

// ActionFunc processes one socket request. The raw parameter is the
// full CBOR request (including the "action" field); the handler
// decodes its own fields from it.
//
// Return a value to include in the success response, or an error for
// a failure response. A nil value produces {ok: true}; a non-nil
// value is marshaled into the response's "data" field.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire envelope for all socket protocol responses.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// readTimeout is how long the server waits for a connected client to
// send its request. A well-behaved client sends immediately.
const readTimeout = 30 * time.Second

// writeTimeout bounds writing the response.
const writeTimeout = 10 * time.Second

// SocketServer serves the CBOR request/response protocol on a unix or
// tcp listener. Each connection carries exactly one request/response
// cycle. Register actions with Handle before calling Serve; unknown
// actions receive an error envelope.
type SocketServer struct {
	network  string
	address  string
	handlers map[string]ActionFunc
	logger   *slog.Logger

	// ready is closed after the listener is bound.
	ready chan struct{}

	// addr is the resolved listen address, valid after ready closes.
	addr net.Addr

	// activeConnections tracks in-flight handlers so Serve can
	// drain them before returning.
	activeConnections sync.WaitGroup
}

// NewSocketServer creates a server for the given network ("unix" or
// "tcp") and address. Register actions with Handle before Serve.
func NewSocketServer(network, address string, logger *slog.Logger) *SocketServer {
	if network != "unix" && network != "tcp" {
		panic(fmt.Sprintf("service.SocketServer: unsupported network %q", network))
	}
	return &SocketServer{
		network:  network,
		address:  address,
		handlers: make(map[string]ActionFunc),
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Handle registers a handler for the given action name. Panics on a
// duplicate registration.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Ready returns a channel closed once the listener is bound.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready()
// is closed.
func (s *SocketServer) Addr() net.Addr {
	return s.addr
}

// Serve accepts connections and dispatches requests to registered
// handlers. Blocks until ctx is cancelled, then stops accepting and
// waits for active handlers.
//
// For unix sockets, a stale socket file at the address is removed
// before listening and the socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if s.network == "unix" {
		if err := os.Remove(s.address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale socket %s: %w", s.address, err)
		}
	}

	listener, err := net.Listen(s.network, s.address)
	if err != nil {
		return fmt.Errorf("listening on %s %s: %w", s.network, s.address, err)
	}
	defer func() {
		listener.Close()
		if s.network == "unix" {
			os.Remove(s.address)
		}
	}()
	s.addr = listener.Addr()
	close(s.ready)

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "network", s.network, "address", s.addr.String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection processes one request/response cycle.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting, so one Decode reads exactly one
	// request. LimitReader caps a hostile client.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, netutil.MaxEnvelopeSize)).Decode(&raw); err != nil {
		if netutil.IsExpectedCloseError(err) {
			// Client connected but sent nothing, or tore the
			// connection down mid-request.
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		s.writeError(conn, err.Error())
		return
	}

	s.writeSuccess(conn, result)
}

// writeError sends {ok: false, error: message}. Write failures are
// logged at debug level — the connection is closing regardless.
func (s *SocketServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{OK: false, Error: message}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends {ok: true} or {ok: true, data: <cbor>}.
func (s *SocketServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
