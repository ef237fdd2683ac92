// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint error helper for Depot
// service binaries. Errors from run() are reported here because the
// structured logger may not exist yet when startup fails.
package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. The
// standard Depot binary entrypoint error handler.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
