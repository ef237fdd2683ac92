// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"context"
	"fmt"
	"os/exec"
)

// LocalPuller mirrors remote bare stores with the git binary.
type LocalPuller struct {
	// GitBinary is the git executable. Defaults to "git" when empty.
	GitBinary string
}

// Pull runs a prune-and-force fetch so the local store converges on
// the remote's refs exactly, including deletions.
func (p *LocalPuller) Pull(ctx context.Context, path, url string) error {
	binary := p.GitBinary
	if binary == "" {
		binary = "git"
	}
	cmd := exec.CommandContext(ctx, binary, "--git-dir", path, "fetch", "--prune", url, "+refs/*:refs/*")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git fetch %s: %w: %s", url, err, output)
	}
	return nil
}
