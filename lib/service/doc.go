// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the lifecycle building blocks for the git
// service binary: an HTTP server with graceful shutdown, a CBOR
// request/response socket server for platform-facing actions, the
// matching client, and the standard logger.
//
// The socket protocol carries one request per connection: the client
// writes a single CBOR map containing an "action" field plus
// handler-specific fields, the server writes a single Response
// envelope, and the connection closes. The same protocol runs on the
// local control socket (unix) and the cluster replication agent (tcp).
package service
