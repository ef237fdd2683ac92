// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
)

func TestIsExpectedCloseError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped_eof", fmt.Errorf("copying stdout: %w", io.EOF), true},
		{"closed_pipe", io.ErrClosedPipe, true},
		{"net_closed", net.ErrClosed, true},
		{"epipe", &net.OpError{Op: "write", Err: syscall.EPIPE}, true},
		{"econnreset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"econnrefused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, false},
		{"other", errors.New("exit status 128"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsExpectedCloseError(tc.err); got != tc.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
