// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Depot's standard CBOR encoding. All
// collaborator RPC — the metadata service client, the cluster
// replication protocol, and the control socket — uses this codec,
// so changing encoder options here is a wire-format change for the
// whole cluster.
package codec
