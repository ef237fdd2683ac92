// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package repostore resolves request paths to repositories and
// provisions their on-disk bare stores lazily: the store for a
// repository is created on first access (or on the repo-created
// event) and removed on the repo-removed event. Provisioning is
// idempotent with respect to store existence.
package repostore
