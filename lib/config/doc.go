// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the git service.
//
// Configuration is loaded from a single YAML file specified by the
// DEPOT_CONFIG environment variable or the --config flag. There is no
// automatic discovery and environment variables do not override file
// values — configuration stays deterministic and auditable.
//
// The file may contain development/staging/production sections that
// override base values when the environment matches.
package config
