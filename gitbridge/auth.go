// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitbridge

import (
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/zeebo/blake3"

	"github.com/depot-foundation/depot/metadata"
)

// Identity is the verified caller of an exchange: either a system
// token (replication peers, automation) or an interactive user.
type Identity struct {
	System bool
	User   *metadata.User
}

// Owner is the identity string recorded into the commit ledger.
func (id *Identity) Owner() string {
	if id.User != nil {
		return id.User.ID
	}
	return "system"
}

// Gate authenticates HTTP Basic credentials against the metadata
// service. Git clients have exactly one credential slot, so the gate
// overloads it: an empty password marks the username as a bearer
// api-key, anything else is an email/password login pair.
type Gate struct {
	tokens   metadata.Tokens
	accounts metadata.Accounts
	logger   *slog.Logger
}

// NewGate creates a Gate.
func NewGate(tokens metadata.Tokens, accounts metadata.Accounts, logger *slog.Logger) *Gate {
	if tokens == nil {
		panic("gitbridge.Gate: tokens is required")
	}
	if accounts == nil {
		panic("gitbridge.Gate: accounts is required")
	}
	if logger == nil {
		panic("gitbridge.Gate: logger is required")
	}
	return &Gate{tokens: tokens, accounts: accounts, logger: logger}
}

// Authenticate verifies the request's Basic credentials. On success
// it returns the caller's identity. On any failure it finalizes the
// response with a 401 challenge and returns ok=false; the caller
// must not write further.
func (g *Gate) Authenticate(w http.ResponseWriter, r *http.Request) (identity *Identity, ok bool) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return g.deny(w, "no credentials")
	}

	if password == "" {
		valid, err := g.tokens.Check(r.Context(), metadata.TokenKindAPIKey, username)
		if err != nil {
			g.logger.Error("api-key check failed", "token", fingerprint(username), "error", err)
			return g.deny(w, "api-key check failed")
		}
		if !valid {
			g.logger.Warn("rejected api-key", "token", fingerprint(username))
			return g.deny(w, "invalid api-key")
		}
		return &Identity{System: true}, true
	}

	token, err := g.accounts.Login(r.Context(), username, password)
	if err != nil {
		g.logger.Warn("login failed", "email", username, "error", err)
		return g.deny(w, "login failed")
	}
	user, err := g.accounts.ResolveToken(r.Context(), token)
	if err != nil {
		g.logger.Warn("token resolution failed", "token", fingerprint(token), "error", err)
		return g.deny(w, "token resolution failed")
	}
	return &Identity{User: user}, true
}

func (g *Gate) deny(w http.ResponseWriter, reason string) (*Identity, bool) {
	g.logger.Info("exchange denied", "reason", reason)
	w.Header().Set("WWW-Authenticate", `Basic realm="depot"`)
	http.Error(w, "authentication required", http.StatusUnauthorized)
	return nil, false
}

// fingerprint is a short stable digest for logging tokens without
// disclosing them.
func fingerprint(token string) string {
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
