// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Command depot-git-service serves git repositories over smart HTTP.
//
// The service authenticates clients against the Depot metadata
// service, provisions bare stores lazily under the configured repos
// root, and bridges each exchange onto a git upload-pack or
// receive-pack subprocess. Accepted pushes are recorded in the
// commit ledger, fanned out to peer nodes for replication, and
// followed by a sideband status stream that other services feed
// through the local control socket.
//
// Configuration comes from a YAML file named by --config or the
// DEPOT_CONFIG environment variable.
package main
