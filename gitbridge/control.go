// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitbridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/depot-foundation/depot/lib/codec"
	"github.com/depot-foundation/depot/lib/service"
	"github.com/depot-foundation/depot/metadata"
	"github.com/depot-foundation/depot/repostore"
	"github.com/depot-foundation/depot/sideband"
)

// PullURLSource builds the URL peers use to pull a repository from
// this node.
type PullURLSource interface {
	PullURL(repositoryName string) string
}

// Control is the local control socket: the channel through which
// other services on the node steer a running git service. Build
// pipelines relay progress into open sideband sessions here, and
// the metadata service notifies of repository creation and removal
// so stores can be provisioned and reclaimed eagerly.
type Control struct {
	server    *service.SocketServer
	sidebands *sideband.Manager
	locator   *repostore.Locator
	pullURLs  PullURLSource
	logger    *slog.Logger
}

// ControlConfig configures a Control.
type ControlConfig struct {
	// Socket is the unix socket path. Required.
	Socket string

	// Sidebands receives relayed progress writes. Required.
	Sidebands *sideband.Manager

	// Locator provisions and removes bare stores. Required.
	Locator *repostore.Locator

	// PullURLs answers pull-url queries. Required.
	PullURLs PullURLSource

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewControl creates the control socket server. Call Serve to start
// it.
func NewControl(config ControlConfig) *Control {
	if config.Socket == "" {
		panic("gitbridge.Control: Socket is required")
	}
	if config.Sidebands == nil {
		panic("gitbridge.Control: Sidebands is required")
	}
	if config.Locator == nil {
		panic("gitbridge.Control: Locator is required")
	}
	if config.PullURLs == nil {
		panic("gitbridge.Control: PullURLs is required")
	}
	if config.Logger == nil {
		panic("gitbridge.Control: Logger is required")
	}

	c := &Control{
		server:    service.NewSocketServer("unix", config.Socket, config.Logger),
		sidebands: config.Sidebands,
		locator:   config.Locator,
		pullURLs:  config.PullURLs,
		logger:    config.Logger,
	}
	c.server.Handle("sideband-write", c.handleSidebandWrite)
	c.server.Handle("repo-created", c.handleRepoCreated)
	c.server.Handle("repo-removed", c.handleRepoRemoved)
	c.server.Handle("pull-url", c.handlePullURL)
	return c
}

// Ready returns a channel closed once the socket is accepting.
func (c *Control) Ready() <-chan struct{} { return c.server.Ready() }

// Serve blocks until ctx is cancelled.
func (c *Control) Serve(ctx context.Context) error {
	return c.server.Serve(ctx)
}

// handleSidebandWrite relays a progress chunk into the session keyed
// by hash. Writes to a closed or expired session are dropped without
// error: the pushing client is gone and the writer has nothing to do
// about it.
func (c *Control) handleSidebandWrite(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Hash  string `cbor:"hash"`
		Data  []byte `cbor:"data"`
		Close bool   `cbor:"close"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding sideband-write: %w", err)
	}
	if request.Hash == "" {
		return nil, fmt.Errorf("sideband-write missing hash")
	}

	if len(request.Data) > 0 {
		c.sidebands.Relay(request.Hash, request.Data)
	}
	if request.Close {
		c.sidebands.Close(request.Hash)
	}
	return nil, nil
}

func (c *Control) handleRepoCreated(ctx context.Context, raw []byte) (any, error) {
	repo, err := decodeRepo(raw)
	if err != nil {
		return nil, err
	}
	path, err := c.locator.EnsureStore(ctx, repo)
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": path}, nil
}

func (c *Control) handleRepoRemoved(ctx context.Context, raw []byte) (any, error) {
	repo, err := decodeRepo(raw)
	if err != nil {
		return nil, err
	}
	if err := c.locator.RemoveStore(ctx, repo); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *Control) handlePullURL(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Name string `cbor:"name"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding pull-url: %w", err)
	}
	if request.Name == "" {
		return nil, fmt.Errorf("pull-url missing name")
	}
	return map[string]any{"url": c.pullURLs.PullURL(request.Name)}, nil
}

func decodeRepo(raw []byte) (*metadata.Repository, error) {
	var request struct {
		Owner string `cbor:"owner"`
		Name  string `cbor:"name"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("decoding repository notification: %w", err)
	}
	if request.Owner == "" || request.Name == "" {
		return nil, fmt.Errorf("repository notification missing owner or name")
	}
	return &metadata.Repository{Owner: request.Owner, Name: request.Name}, nil
}
