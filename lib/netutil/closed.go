// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err is a normal connection or
// pipe termination: EOF, closed connection, broken pipe, or connection
// reset. These occur during ordinary teardown of a git exchange — the
// client finishes its side, or disconnects mid-stream, and the
// surviving copy direction fails as a result. They should not be
// logged as errors.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
