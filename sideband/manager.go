// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package sideband

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/depot-foundation/depot/lib/clock"
)

// Defaults for the session timers, matching the service's historical
// behavior. The expiry must exceed the HTTP handler's patience for
// nothing — it is the effective bound on how long a pushing client
// waits for out-of-band status.
const (
	DefaultHeartbeat = time.Second
	DefaultExpiry    = 35 * time.Second
)

// Status lines written into the sink. The client shows these on
// stderr as remote progress.
const (
	keepAliveLine = "Still processing...\n"
	expiredLine   = "No further status, closing.\n"
)

// Manager owns the live post-push sessions, keyed by the pushed
// commit hash. It is the only cross-request mutable state in the git
// service; all transitions happen under one mutex so replace, relay,
// and close are atomic from the caller's view.
//
// A session is Open from Open() until exactly one of: an explicit
// Close for its hash, expiry of its timer, or replacement by a new
// Open for the same hash. All exits cancel both timers; writes
// relayed to a hash with no live session are dropped silently.
type Manager struct {
	clock     clock.Clock
	heartbeat time.Duration
	expiry    time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one live sideband channel and its timer pair.
type session struct {
	sink io.WriteCloser

	heartbeat *clock.Ticker
	expiry    *clock.Timer

	// heartbeatDone stops the tick-consuming goroutine.
	heartbeatDone chan struct{}
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Clock is the time source for both timers. Required.
	Clock clock.Clock

	// Heartbeat is the keep-alive interval. Defaults to
	// DefaultHeartbeat.
	Heartbeat time.Duration

	// Expiry is the open-session lifetime bound. Defaults to
	// DefaultExpiry.
	Expiry time.Duration

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewManager creates a Manager with no live sessions.
func NewManager(config ManagerConfig) *Manager {
	if config.Clock == nil {
		panic("sideband.Manager: Clock is required")
	}
	if config.Logger == nil {
		panic("sideband.Manager: Logger is required")
	}
	heartbeat := config.Heartbeat
	if heartbeat == 0 {
		heartbeat = DefaultHeartbeat
	}
	expiry := config.Expiry
	if expiry == 0 {
		expiry = DefaultExpiry
	}

	return &Manager{
		clock:     config.Clock,
		heartbeat: heartbeat,
		expiry:    expiry,
		logger:    config.Logger,
		sessions:  make(map[string]*session),
	}
}

// Open creates the session for hash, writing into sink. If a live
// session already exists for hash, its timers are cancelled and its
// sink is ended before the replacement is installed — a stale session
// must never tick again.
//
// The Manager owns sink from here: it is closed on every exit
// transition.
func (m *Manager) Open(hash string, sink io.WriteCloser) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stale, exists := m.sessions[hash]; exists {
		m.logger.Info("replacing live sideband session", "hash", hash)
		stale.cancelTimers()
		stale.sink.Close()
	}

	s := &session{
		sink:          sink,
		heartbeatDone: make(chan struct{}),
	}
	s.heartbeat = m.clock.NewTicker(m.heartbeat)
	s.expiry = m.clock.AfterFunc(m.expiry, func() { m.expire(hash, s) })
	m.sessions[hash] = s

	go m.runHeartbeat(hash, s)
}

// Relay forwards chunk into the session's sink if a session for hash
// is live, and silently drops it otherwise. Late relay writes after
// close or expiry are part of normal operation, not errors.
func (m *Manager) Relay(hash string, chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[hash]
	if !exists {
		return
	}
	if _, err := s.sink.Write(chunk); err != nil {
		m.logger.Debug("sideband relay write failed", "hash", hash, "error", err)
	}
}

// Close performs the explicit-close transition: end the sink cleanly,
// cancel the timers, and remove the session. Closing a hash with no
// live session is a no-op.
func (m *Manager) Close(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[hash]
	if !exists {
		return
	}
	s.cancelTimers()
	s.sink.Close()
	delete(m.sessions, hash)
	m.logger.Info("sideband session closed", "hash", hash)
}

// CloseAll ends every live session. Used at service shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, s := range m.sessions {
		s.cancelTimers()
		s.sink.Close()
		delete(m.sessions, hash)
	}
}

// Live reports whether a session for hash currently exists.
func (m *Manager) Live(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.sessions[hash]
	return exists
}

// expire is the timer-driven exit: one terminal line, end the sink,
// remove the session. The session identity check guards against the
// timer racing a replacement for the same hash.
func (m *Manager) expire(hash string, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.sessions[hash]
	if !exists || current != s {
		return
	}
	s.cancelTimers()
	if _, err := s.sink.Write([]byte(expiredLine)); err != nil {
		m.logger.Debug("sideband expiry write failed", "hash", hash, "error", err)
	}
	s.sink.Close()
	delete(m.sessions, hash)
	m.logger.Info("sideband session expired", "hash", hash)
}

// runHeartbeat writes the keep-alive line on every tick until the
// session's timers are cancelled. The session-identity check under
// the lock means a tick that races an exit transition writes nothing.
func (m *Manager) runHeartbeat(hash string, s *session) {
	for {
		select {
		case <-s.heartbeat.C:
			m.mu.Lock()
			if current, exists := m.sessions[hash]; exists && current == s {
				if _, err := s.sink.Write([]byte(keepAliveLine)); err != nil {
					m.logger.Debug("sideband heartbeat write failed", "hash", hash, "error", err)
				}
			}
			m.mu.Unlock()
		case <-s.heartbeatDone:
			return
		}
	}
}

// cancelTimers stops both timers and the heartbeat goroutine. Called
// under the Manager lock on every exit transition; safe to call more
// than once.
func (s *session) cancelTimers() {
	s.heartbeat.Stop()
	s.expiry.Stop()
	select {
	case <-s.heartbeatDone:
	default:
		close(s.heartbeatDone)
	}
}
