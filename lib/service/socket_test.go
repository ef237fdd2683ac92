// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/depot-foundation/depot/lib/codec"
	"github.com/depot-foundation/depot/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startSocketServer runs a SocketServer on an OS-assigned TCP port and
// returns a client for it. The server stops when the test ends.
func startSocketServer(t *testing.T, register func(*SocketServer)) *Client {
	t.Helper()

	server := NewSocketServer("tcp", "127.0.0.1:0", testLogger())
	register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "server shutdown")
	})

	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server ready")
	return NewClient("tcp", server.Addr().String())
}

func TestSocketCallRoundTrip(t *testing.T) {
	client := startSocketServer(t, func(s *SocketServer) {
		s.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				Value string `cbor:"value"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return map[string]any{"value": request.Value}, nil
		})
	})

	var result struct {
		Value string `cbor:"value"`
	}
	err := client.Call(context.Background(), "echo", map[string]any{"value": "refs/heads/main"}, &result)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Value != "refs/heads/main" {
		t.Errorf("echoed value = %q, want %q", result.Value, "refs/heads/main")
	}
}

func TestSocketCallNilResult(t *testing.T) {
	called := make(chan struct{}, 1)
	client := startSocketServer(t, func(s *SocketServer) {
		s.Handle("ping", func(ctx context.Context, raw []byte) (any, error) {
			called <- struct{}{}
			return nil, nil
		})
	})

	if err := client.Call(context.Background(), "ping", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	testutil.RequireReceive(t, called, time.Second, "handler invocation")
}

func TestSocketHandlerError(t *testing.T) {
	client := startSocketServer(t, func(s *SocketServer) {
		s.Handle("fail", func(ctx context.Context, raw []byte) (any, error) {
			return nil, fmt.Errorf("sideband not found")
		})
	})

	err := client.Call(context.Background(), "fail", nil, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("Call error = %v, want *CallError", err)
	}
	if callErr.Message != "sideband not found" {
		t.Errorf("Message = %q, want server's error text", callErr.Message)
	}
}

func TestSocketUnknownAction(t *testing.T) {
	client := startSocketServer(t, func(s *SocketServer) {})

	err := client.Call(context.Background(), "nope", nil, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("Call error = %v, want *CallError", err)
	}
	if !strings.Contains(callErr.Message, "unknown action") {
		t.Errorf("Message = %q, want unknown-action text", callErr.Message)
	}
}

func TestSocketDuplicateHandlerPanics(t *testing.T) {
	server := NewSocketServer("tcp", "127.0.0.1:0", testLogger())
	server.Handle("x", func(ctx context.Context, raw []byte) (any, error) { return nil, nil })

	defer func() {
		if recover() == nil {
			t.Fatal("duplicate Handle did not panic")
		}
	}()
	server.Handle("x", func(ctx context.Context, raw []byte) (any, error) { return nil, nil })
}
