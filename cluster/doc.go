// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package cluster replicates bare stores across service nodes.
//
// After a push is accepted, the Replicator fans a pull-bare-store
// instruction out to every peer in the node directory. Each peer runs
// an Agent that provisions the local bare store if needed and mirrors
// the pushing node's copy over git's smart HTTP transport, presenting
// the shared replication token as credentials. Replication is
// fire-and-forget: a peer that is down simply misses this round and
// converges on the next push.
package cluster
