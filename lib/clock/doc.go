// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that
// timer-driven code (sideband heartbeats, session expiry) can be
// tested deterministically. Production code uses Real(); tests use
// Fake() and call Advance to move time.
package clock
