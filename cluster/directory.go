// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package cluster

import "context"

// Node is one member of the cluster: an identifier and the TCP
// address of its replication agent.
type Node struct {
	ID      string `cbor:"id"`
	Address string `cbor:"address"`
}

// Directory supplies cluster membership. The replicator takes a
// fresh snapshot per push and never holds onto it — membership may
// change between pushes.
type Directory interface {
	// Self returns this node's ID, which the replicator excludes
	// from fan-out.
	Self() string

	// Nodes returns the current membership snapshot.
	Nodes(ctx context.Context) ([]Node, error)
}

// StaticDirectory is a Directory backed by the config file's node
// list. Deployments with a dynamic node registry implement Directory
// against it instead.
type StaticDirectory struct {
	SelfID  string
	Members []Node
}

// Self implements Directory.
func (d *StaticDirectory) Self() string { return d.SelfID }

// Nodes implements Directory.
func (d *StaticDirectory) Nodes(_ context.Context) ([]Node, error) {
	nodes := make([]Node, len(d.Members))
	copy(nodes, d.Members)
	return nodes, nil
}
