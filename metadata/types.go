// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups for names the metadata service
// does not know.
var ErrNotFound = errors.New("metadata: not found")

// Repository is the durable identity of a hosted repository. The
// bare store location on disk is derived from Owner and Name by the
// repostore package; metadata owns everything else.
type Repository struct {
	ID    string `cbor:"id"`
	Owner string `cbor:"owner"`
	Name  string `cbor:"name"`
}

// CommitRecord is one accepted push in the append-only commit
// ledger. Records are created once and never mutated.
type CommitRecord struct {
	ID    string `cbor:"id,omitempty"`
	Repo  string `cbor:"repo"`
	Owner string `cbor:"owner"`

	// Hash is the final object id of the push; it keys the
	// sideband session that follows.
	Hash string `cbor:"hash"`

	// Last is the previous object id of the updated ref.
	Last string `cbor:"last"`

	Branch string `cbor:"branch"`
	Action string `cbor:"action"`

	// Status is "accepted" for every push that reached the
	// recorder; rejected pushes never get here.
	Status string `cbor:"status"`

	CreatedAt time.Time `cbor:"created_at,omitempty"`
}

// StatusAccepted is the only status the git service ever records.
const StatusAccepted = "accepted"

// User is a resolved account identity.
type User struct {
	ID    string `cbor:"id"`
	Email string `cbor:"email"`
}

// TokenKindAPIKey is the token kind used for non-interactive system
// access, including node-to-node replication pulls.
const TokenKindAPIKey = "api-key"

// Repositories resolves repository names to durable identities.
type Repositories interface {
	// FindByName returns the repository with the given name, or
	// ErrNotFound.
	FindByName(ctx context.Context, name string) (*Repository, error)
}

// Commits appends to the commit ledger.
type Commits interface {
	// Create persists record and returns it with its assigned ID
	// and timestamp.
	Create(ctx context.Context, record CommitRecord) (*CommitRecord, error)
}

// Tokens validates non-interactive tokens.
type Tokens interface {
	// Check reports whether token is a valid live token of the
	// given kind.
	Check(ctx context.Context, kind, token string) (bool, error)
}

// Accounts handles interactive credential exchange.
type Accounts interface {
	// Login exchanges an email/password pair for a session token.
	Login(ctx context.Context, email, password string) (string, error)

	// ResolveToken resolves a session token to its user.
	ResolveToken(ctx context.Context, token string) (*User, error)
}
