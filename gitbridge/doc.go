// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitbridge serves git's smart HTTP protocol by bridging
// HTTP exchanges onto git upload-pack and receive-pack subprocesses.
//
// Every exchange flows through the same pipeline: the credential
// Gate verifies HTTP Basic credentials against the metadata service,
// the repository locator resolves the URL to a bare store
// (provisioning it lazily), and the Handler spawns the git
// subprocess with the request body as stdin and the response as
// stdout. Nothing buffers whole payloads; memory use is bounded by
// pipe buffers, not repository size.
//
// A push gets a tail: the ref-update fields captured from the
// request stream feed a commit ledger record and a replication
// fan-out, and the response is then held open as a sideband session
// that streams post-push status lines until an explicit close or
// expiry. The Control socket is how other services on the node reach
// those sessions.
package gitbridge
