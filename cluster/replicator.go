// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/depot-foundation/depot/lib/service"
	"github.com/depot-foundation/depot/metadata"
)

// Replicator fans a pull-replication instruction out to every other
// cluster node after an accepted push. Replication is best effort:
// the push has already been acknowledged by the time this runs, so
// peer failures are logged, never surfaced to the git client.
type Replicator struct {
	directory Directory

	// advertise is the host:port at which peers reach this node's
	// git HTTP endpoint.
	advertise string

	// token is the fixed api-key peers present when pulling.
	token string

	logger *slog.Logger
}

// ReplicatorConfig configures a Replicator.
type ReplicatorConfig struct {
	// Directory supplies membership. Required.
	Directory Directory

	// Advertise is this node's externally reachable git HTTP
	// address. Required.
	Advertise string

	// Token is the replication api-key. Required.
	Token string

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewReplicator creates a Replicator.
func NewReplicator(config ReplicatorConfig) *Replicator {
	if config.Directory == nil {
		panic("cluster.Replicator: Directory is required")
	}
	if config.Advertise == "" {
		panic("cluster.Replicator: Advertise is required")
	}
	if config.Logger == nil {
		panic("cluster.Replicator: Logger is required")
	}
	return &Replicator{
		directory: config.Directory,
		advertise: config.Advertise,
		token:     config.Token,
		logger:    config.Logger,
	}
}

// PullURL builds the URL a peer uses to pull repositoryName from
// this node, with the bearer-token-as-username convention (an empty
// password marks the username as an api-key for the credential
// gate).
func (r *Replicator) PullURL(repositoryName string) string {
	return fmt.Sprintf("http://%s:@%s/%s.git", r.token, r.advertise, repositoryName)
}

// Replicate instructs every peer to pull repo's bare store from this
// node and returns the number of peers that confirmed. All peers are
// contacted concurrently; a failing peer affects neither the others
// nor the return path — Replicate itself never fails, it only counts.
func (r *Replicator) Replicate(ctx context.Context, repo *metadata.Repository) int {
	nodes, err := r.directory.Nodes(ctx)
	if err != nil {
		r.logger.Error("listing cluster nodes", "repo", repo.Name, "error", err)
		return 0
	}

	self := r.directory.Self()
	outcomes := make(chan bool)
	dispatched := 0

	for _, node := range nodes {
		if node.ID == self {
			continue
		}
		dispatched++
		go func(node Node) {
			outcomes <- r.replicateTo(ctx, node, repo)
		}(node)
	}

	// Wait for every peer to settle; no short-circuit on failure.
	synced := 0
	for i := 0; i < dispatched; i++ {
		if <-outcomes {
			synced++
		}
	}

	r.logger.Info("replication fan-out complete",
		"repo", repo.Name,
		"peers", dispatched,
		"synced", synced,
	)
	return synced
}

// replicateTo issues one pull instruction and reports success.
func (r *Replicator) replicateTo(ctx context.Context, node Node, repo *metadata.Repository) bool {
	client := service.NewClient("tcp", node.Address)
	err := client.Call(ctx, "pull-bare-store", map[string]any{
		"token": r.token,
		"owner": repo.Owner,
		"name":  repo.Name,
		"url":   r.PullURL(repo.Name),
	}, nil)
	if err != nil {
		r.logger.Error("peer replication failed",
			"repo", repo.Name,
			"node", node.ID,
			"error", err,
		)
		return false
	}
	return true
}
