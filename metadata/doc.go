// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package metadata defines the git service's view of the platform's
// durable state — repositories, the commit ledger, accounts, and
// tokens — and a CBOR RPC client for the service that owns it. The
// git service persists nothing itself; everything durable lives
// behind these interfaces.
package metadata
