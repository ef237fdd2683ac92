// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package gitwire implements the framing layer of the git smart-HTTP
// protocol: just enough of the wire format to route requests to the
// right subprocess and observe the exchange, without reimplementing
// the object model or ref negotiation (git itself does that).
//
// The package is organized around the exchange data flow:
//
//   - pktline.go: pkt-line framing (length-prefixed records, flush-pkt)
//   - request.go: URL/method recognition → subprocess command and
//     response content type
//   - refupdate.go: streaming capture of the client's ref-update
//     command from a receive-pack payload
//   - sideband.go: band-2 progress encoding for post-push status
package gitwire
