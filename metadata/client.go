// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/depot-foundation/depot/lib/service"
)

// Client is the CBOR RPC client for the metadata service. It
// implements Repositories, Commits, Tokens, and Accounts. Every call
// is bounded by the configured timeout in addition to whatever
// deadline the caller's context carries.
type Client struct {
	rpc     *service.Client
	timeout time.Duration
}

// NewClient creates a client for the metadata service at the given
// TCP address.
func NewClient(address string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		rpc:     service.NewClient("tcp", address),
		timeout: timeout,
	}
}

// FindByName implements Repositories.
func (c *Client) FindByName(ctx context.Context, name string) (*Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result struct {
		Found      bool       `cbor:"found"`
		Repository Repository `cbor:"repository"`
	}
	err := c.rpc.Call(ctx, "repo-by-name", map[string]any{"name": name}, &result)
	if err != nil {
		return nil, fmt.Errorf("resolving repository %q: %w", name, err)
	}
	if !result.Found {
		return nil, fmt.Errorf("repository %q: %w", name, ErrNotFound)
	}
	return &result.Repository, nil
}

// Create implements Commits.
func (c *Client) Create(ctx context.Context, record CommitRecord) (*CommitRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var created CommitRecord
	err := c.rpc.Call(ctx, "commit-create", map[string]any{
		"repo":   record.Repo,
		"owner":  record.Owner,
		"hash":   record.Hash,
		"last":   record.Last,
		"branch": record.Branch,
		"action": record.Action,
		"status": record.Status,
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("recording commit %s: %w", record.Hash, err)
	}
	return &created, nil
}

// Check implements Tokens.
func (c *Client) Check(ctx context.Context, kind, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result struct {
		Valid bool `cbor:"valid"`
	}
	err := c.rpc.Call(ctx, "token-check", map[string]any{
		"kind":  kind,
		"token": token,
	}, &result)
	if err != nil {
		return false, fmt.Errorf("checking %s token: %w", kind, err)
	}
	return result.Valid, nil
}

// Login implements Accounts.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result struct {
		Token string `cbor:"token"`
	}
	err := c.rpc.Call(ctx, "account-login", map[string]any{
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return "", fmt.Errorf("login for %s: %w", email, err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("login for %s: empty session token", email)
	}
	return result.Token, nil
}

// ResolveToken implements Accounts.
func (c *Client) ResolveToken(ctx context.Context, token string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var user User
	err := c.rpc.Call(ctx, "token-resolve", map[string]any{"token": token}, &user)
	if err != nil {
		return nil, fmt.Errorf("resolving session token: %w", err)
	}
	return &user, nil
}
