// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package sideband manages the bounded-lifetime status channel that
// stays open to a git client after its push has been accepted. The
// receive-pack response does not end with the subprocess: a session
// keyed by the pushed hash keeps writing keep-alive lines while the
// platform finishes asynchronous post-processing, until either an
// explicit close arrives over the control socket or the session
// expires.
package sideband
