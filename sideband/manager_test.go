// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package sideband

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/depot-foundation/depot/lib/clock"
	"github.com/depot-foundation/depot/lib/testutil"
)

const testHash = "2222222222222222222222222222222222222222"

// chanSink is a WriteCloser that exposes writes and closure as
// channels so tests can wait on the heartbeat goroutine.
type chanSink struct {
	writes    chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newChanSink() *chanSink {
	return &chanSink{
		writes: make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (s *chanSink) Write(p []byte) (int, error) {
	s.writes <- string(p)
	return len(p), nil
}

func (s *chanSink) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func newTestManager(fake *clock.FakeClock) *Manager {
	return NewManager(ManagerConfig{
		Clock:  fake,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestHeartbeatWhileOpen(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	manager := newTestManager(fake)
	sink := newChanSink()

	manager.Open(testHash, sink)
	defer manager.CloseAll()

	fake.Advance(DefaultHeartbeat)
	line := testutil.RequireReceive(t, sink.writes, 5*time.Second, "first heartbeat")
	if line != keepAliveLine {
		t.Errorf("heartbeat line = %q, want %q", line, keepAliveLine)
	}

	fake.Advance(DefaultHeartbeat)
	testutil.RequireReceive(t, sink.writes, 5*time.Second, "second heartbeat")
}

func TestExplicitClose(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	manager := newTestManager(fake)
	sink := newChanSink()

	manager.Open(testHash, sink)
	manager.Relay(testHash, []byte("build passed\n"))
	if got := testutil.RequireReceive(t, sink.writes, 5*time.Second, "relayed chunk"); got != "build passed\n" {
		t.Errorf("relayed chunk = %q", got)
	}

	manager.Close(testHash)
	testutil.RequireClosed(t, sink.closed, 5*time.Second, "sink closed")
	if manager.Live(testHash) {
		t.Error("session still live after Close")
	}

	// A cancelled session must not tick or expire.
	fake.Advance(2 * DefaultExpiry)
	select {
	case line := <-sink.writes:
		t.Errorf("write %q after explicit close", line)
	default:
	}
}

func TestExpiry(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	manager := newTestManager(fake)
	sink := newChanSink()

	manager.Open(testHash, sink)
	fake.Advance(DefaultExpiry)

	testutil.RequireClosed(t, sink.closed, 5*time.Second, "sink closed by expiry")
	if manager.Live(testHash) {
		t.Error("session still live after expiry")
	}

	// Drain everything the session wrote; the terminal line must be
	// present exactly once, as the final write.
	close(sink.writes)
	var all []string
	for line := range sink.writes {
		all = append(all, line)
	}
	terminalCount := 0
	for _, line := range all {
		if line == expiredLine {
			terminalCount++
		}
	}
	if terminalCount != 1 {
		t.Fatalf("terminal line written %d times in %q, want 1", terminalCount, all)
	}
	if all[len(all)-1] != expiredLine {
		t.Errorf("last write = %q, want terminal line", all[len(all)-1])
	}
}

func TestRelayAfterExpiryDropped(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	manager := newTestManager(fake)
	sink := newChanSink()

	manager.Open(testHash, sink)
	fake.Advance(DefaultExpiry)
	testutil.RequireClosed(t, sink.closed, 5*time.Second, "sink closed by expiry")

	// Dropped silently: no panic, no write, no error surface.
	manager.Relay(testHash, []byte("too late\n"))
	for {
		select {
		case line := <-sink.writes:
			if strings.Contains(line, "too late") {
				t.Fatal("relay write delivered after expiry")
			}
		default:
			return
		}
	}
}

func TestReplacementCancelsStaleSession(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	manager := newTestManager(fake)
	first := newChanSink()
	second := newChanSink()

	manager.Open(testHash, first)
	manager.Open(testHash, second)

	// The stale session's sink is ended on replacement.
	testutil.RequireClosed(t, first.closed, 5*time.Second, "stale sink closed")

	// Heartbeats go only to the replacement.
	fake.Advance(DefaultHeartbeat)
	testutil.RequireReceive(t, second.writes, 5*time.Second, "replacement heartbeat")
	select {
	case line := <-first.writes:
		t.Errorf("stale session wrote %q after replacement", line)
	default:
	}

	manager.Close(testHash)
}

func TestRelayUnknownHashDropped(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	manager := newTestManager(fake)

	// No session was ever opened for this hash.
	manager.Relay("0000000000000000000000000000000000000000", []byte("nobody listening\n"))
}

func TestCloseAll(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	manager := newTestManager(fake)
	one := newChanSink()
	two := newChanSink()

	manager.Open("1111111111111111111111111111111111111111", one)
	manager.Open(testHash, two)
	manager.CloseAll()

	testutil.RequireClosed(t, one.closed, 5*time.Second, "first sink closed")
	testutil.RequireClosed(t, two.closed, 5*time.Second, "second sink closed")
}
