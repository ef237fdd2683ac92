// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/depot-foundation/depot/lib/codec"
	"github.com/depot-foundation/depot/lib/netutil"
)

// dialTimeout bounds the connect phase of a call, separate from the
// response timeout.
const dialTimeout = 5 * time.Second

// defaultResponseTimeout is how long Call waits for the server's
// response after writing the request, when the context carries no
// earlier deadline. Matched to the server's read + write timeouts.
const defaultResponseTimeout = 45 * time.Second


// CallError is returned by Call when the server responds with
// ok=false. Connection and decoding failures are plain errors, not
// CallErrors.
type CallError struct {
	Action  string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("remote error on %q: %s", e.Action, e.Message)
}

// Client issues CBOR requests against a socket server. Each Call
// opens a fresh connection, matching the server's one-request-per-
// connection model. The zero Client is not usable; construct with
// NewClient.
type Client struct {
	network string
	address string
}

// NewClient creates a client for the given network ("unix" or "tcp")
// and address.
func NewClient(network, address string) *Client {
	return &Client{network: network, address: address}
}

// Call sends a request for the named action and decodes the response.
//
// fields carries action-specific request fields; Call injects the
// "action" key. Pass nil for actions without parameters. On success,
// response data (if any) is CBOR-decoded into result when result is
// non-nil. On an ok=false response, returns a *CallError with the
// server's message.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.address, err)
	}

	if !response.OK {
		return &CallError{Action: action, Message: response.Error}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// send connects, writes the request, and reads the response.
func (c *Client) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, c.network, c.address)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// Half-close the write side where the transport supports it so
	// the server's read loop sees a clean EOF. CBOR is self-
	// delimiting, so this is a courtesy, not a requirement.
	type closeWriter interface{ CloseWrite() error }
	if cw, ok := conn.(closeWriter); ok {
		cw.CloseWrite()
	}

	deadline := time.Now().Add(defaultResponseTimeout)
	if contextDeadline, ok := ctx.Deadline(); ok && contextDeadline.Before(deadline) {
		deadline = contextDeadline
	}
	conn.SetReadDeadline(deadline)

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, netutil.MaxEnvelopeSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
