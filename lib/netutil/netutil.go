// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network I/O helpers shared by the git
// service's RPC surfaces.
package netutil

// MaxEnvelopeSize bounds reads of RPC request and response
// envelopes: 1 MB. Socket protocol messages are small structured
// records; the limit exists only to cap pathological peers. Git pack
// traffic is streamed with io.Copy and never read whole.
const MaxEnvelopeSize int64 = 1 << 20
