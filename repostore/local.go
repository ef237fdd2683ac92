// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package repostore

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// LocalStores implements Stores on the local filesystem, creating
// bare stores with the configured git binary.
type LocalStores struct {
	// GitBinary is the git executable; a bare name is resolved via
	// PATH.
	GitBinary string
}

// Exists implements Stores.
func (s *LocalStores) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Init implements Stores: mkdir -p then `git init --bare`. Running
// init on an already-initialized store reinitializes harmlessly, so
// concurrent first accesses cannot fail each other.
func (s *LocalStores) Init(ctx context.Context, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	cmd := exec.CommandContext(ctx, s.GitBinary, "init", "--bare", path)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git init --bare %s: %w: %s", path, err, output)
	}
	return nil
}

// Remove implements Stores.
func (s *LocalStores) Remove(_ context.Context, path string) error {
	return os.RemoveAll(path)
}
