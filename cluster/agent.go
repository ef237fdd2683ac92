// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/depot-foundation/depot/lib/codec"
	"github.com/depot-foundation/depot/lib/service"
	"github.com/depot-foundation/depot/metadata"
	"github.com/depot-foundation/depot/repostore"
)

// Puller fetches a remote bare store into a local one. The local
// implementation shells out to git; the interface exists so agent
// tests do not need a git installation.
type Puller interface {
	// Pull mirrors url into the bare store at path.
	Pull(ctx context.Context, path, url string) error
}

// Agent is the serving side of replication: it listens for
// pull-bare-store instructions from peers and mirrors the named
// repository from the pushing node. The same capability the
// replicator invokes remotely.
type Agent struct {
	server  *service.SocketServer
	locator *repostore.Locator
	puller  Puller
	token   string
	logger  *slog.Logger
}

// AgentConfig configures an Agent.
type AgentConfig struct {
	// Listen is the TCP address for peer instructions. Required.
	Listen string

	// Locator provisions the local bare store before a pull.
	// Required.
	Locator *repostore.Locator

	// Puller performs the mirror fetch. Required.
	Puller Puller

	// Token is the shared replication api-key; instructions
	// presenting a different token are rejected. Required.
	Token string

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewAgent creates an Agent. Call Serve to start it.
func NewAgent(config AgentConfig) *Agent {
	if config.Locator == nil {
		panic("cluster.Agent: Locator is required")
	}
	if config.Puller == nil {
		panic("cluster.Agent: Puller is required")
	}
	if config.Token == "" {
		panic("cluster.Agent: Token is required")
	}
	if config.Logger == nil {
		panic("cluster.Agent: Logger is required")
	}

	agent := &Agent{
		server:  service.NewSocketServer("tcp", config.Listen, config.Logger),
		locator: config.Locator,
		puller:  config.Puller,
		token:   config.Token,
		logger:  config.Logger,
	}
	agent.server.Handle("pull-bare-store", agent.handlePull)
	return agent
}

// Ready returns a channel closed once the agent is accepting
// instructions.
func (a *Agent) Ready() <-chan struct{} { return a.server.Ready() }

// Addr returns the agent's resolved listen address as a string.
// Only valid after Ready() is closed.
func (a *Agent) Addr() string { return a.server.Addr().String() }

// Serve blocks until ctx is cancelled.
func (a *Agent) Serve(ctx context.Context) error {
	return a.server.Serve(ctx)
}

// handlePull provisions the local store if needed and mirrors the
// repository from the instructing node's URL.
func (a *Agent) handlePull(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Token string `cbor:"token"`
		Owner string `cbor:"owner"`
		Name  string `cbor:"name"`
		URL   string `cbor:"url"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding pull instruction: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(request.Token), []byte(a.token)) != 1 {
		return nil, fmt.Errorf("invalid replication token")
	}
	if request.Owner == "" || request.Name == "" || request.URL == "" {
		return nil, fmt.Errorf("pull instruction missing owner, name, or url")
	}

	repo := &metadata.Repository{Owner: request.Owner, Name: request.Name}
	path, err := a.locator.EnsureStore(ctx, repo)
	if err != nil {
		return nil, err
	}

	if err := a.puller.Pull(ctx, path, request.URL); err != nil {
		return nil, fmt.Errorf("pulling %s/%s: %w", request.Owner, request.Name, err)
	}

	a.logger.Info("replicated bare store", "owner", request.Owner, "name", request.Name)
	return nil, nil
}
