// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package repostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/depot-foundation/depot/gitwire"
	"github.com/depot-foundation/depot/metadata"
)

// ErrNotFound is returned by Locate for names the metadata service
// does not know.
var ErrNotFound = errors.New("repostore: repository not found")

// Stores is the filesystem capability the locator drives. In
// production this is LocalStores; the interface mirrors the remote
// node filesystem collaborator so a future remote implementation
// slots in unchanged.
type Stores interface {
	// Exists reports whether a store directory exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Init creates path recursively and initializes it as an empty
	// bare store. Must be idempotent: initializing an already-
	// initialized store is a no-op.
	Init(ctx context.Context, path string) error

	// Remove deletes the store at path recursively.
	Remove(ctx context.Context, path string) error
}

// Locator maps request URL paths to repositories and guarantees a
// bare store exists before any protocol exchange touches it.
type Locator struct {
	repositories metadata.Repositories
	stores       Stores
	root         string
	logger       *slog.Logger
}

// NewLocator creates a Locator. root is the directory under which
// bare stores live as {root}/{owner}/{name}.
func NewLocator(repositories metadata.Repositories, stores Stores, root string, logger *slog.Logger) *Locator {
	return &Locator{
		repositories: repositories,
		stores:       stores,
		root:         root,
		logger:       logger,
	}
}

// Locate resolves the repository named by the first segment of
// urlPath (trailing ".git" stripped). Returns ErrNotFound for
// unknown names, wrapping the metadata lookup's detail.
func (l *Locator) Locate(ctx context.Context, urlPath string) (*metadata.Repository, error) {
	name, err := gitwire.RepositorySegment(urlPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	repo, err := l.repositories.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("looking up repository %q: %w", name, err)
	}
	return repo, nil
}

// StorePath returns the bare store directory for repo.
func (l *Locator) StorePath(repo *metadata.Repository) string {
	return filepath.Join(l.root, repo.Owner, repo.Name)
}

// EnsureStore checks that repo's bare store exists and initializes
// it if not, returning the store path. The check-then-act is
// idempotent but deliberately not locked across nodes: two nodes
// racing a first access both run an init, and bare init on an
// existing store is a no-op.
func (l *Locator) EnsureStore(ctx context.Context, repo *metadata.Repository) (string, error) {
	path := l.StorePath(repo)

	exists, err := l.stores.Exists(ctx, path)
	if err != nil {
		return "", fmt.Errorf("checking store %s: %w", path, err)
	}
	if exists {
		return path, nil
	}

	if err := l.stores.Init(ctx, path); err != nil {
		return "", fmt.Errorf("initializing store %s: %w", path, err)
	}
	l.logger.Info("created bare store", "repo", repo.Name, "path", path)
	return path, nil
}

// RemoveStore deletes repo's bare store if it exists. Idempotent.
func (l *Locator) RemoveStore(ctx context.Context, repo *metadata.Repository) error {
	path := l.StorePath(repo)

	exists, err := l.stores.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("checking store %s: %w", path, err)
	}
	if !exists {
		return nil
	}
	if err := l.stores.Remove(ctx, path); err != nil {
		return fmt.Errorf("removing store %s: %w", path, err)
	}
	l.logger.Info("removed bare store", "repo", repo.Name, "path", path)
	return nil
}
