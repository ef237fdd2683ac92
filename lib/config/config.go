// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration
// strings ("1s", "35s", "500ms") as well as integer nanosecond
// counts.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var nanos int64
	if err := value.Decode(&nanos); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(nanos)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Environment identifies the deployment type.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the configuration for the git service.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Listen is the TCP address for the git smart-HTTP server.
	Listen string `yaml:"listen"`

	// ControlSocket is the Unix socket path for platform-facing
	// control actions (sideband relay, repo lifecycle events).
	ControlSocket string `yaml:"control_socket"`

	// ReposRoot is the directory under which bare stores live, as
	// {root}/{owner}/{name}.
	ReposRoot string `yaml:"repos_root"`

	// GitBinary is the git executable used for init, upload-pack,
	// and receive-pack. A bare name is resolved via PATH.
	GitBinary string `yaml:"git_binary"`

	// Metadata configures the metadata collaborator connection.
	Metadata MetadataConfig `yaml:"metadata"`

	// Cluster configures replication to peer nodes.
	Cluster ClusterConfig `yaml:"cluster"`

	// Sideband configures the post-push sideband session timers.
	Sideband SidebandConfig `yaml:"sideband"`

	// EnvironmentOverrides contains per-environment overrides,
	// applied after the base config is loaded.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can be overridden per
// environment.
type Overrides struct {
	Listen        string          `yaml:"listen,omitempty"`
	ControlSocket string          `yaml:"control_socket,omitempty"`
	ReposRoot     string          `yaml:"repos_root,omitempty"`
	GitBinary     string          `yaml:"git_binary,omitempty"`
	Metadata      *MetadataConfig `yaml:"metadata,omitempty"`
	Cluster       *ClusterConfig  `yaml:"cluster,omitempty"`
	Sideband      *SidebandConfig `yaml:"sideband,omitempty"`
}

// MetadataConfig configures the CBOR RPC connection to the metadata
// service (repositories, commits, accounts, tokens).
type MetadataConfig struct {
	// Address is the TCP address of the metadata service.
	Address string `yaml:"address"`

	// Timeout bounds a single metadata call.
	Timeout Duration `yaml:"timeout"`
}

// ClusterConfig configures replication across nodes.
type ClusterConfig struct {
	// NodeID is this node's identifier; it is excluded from the
	// replication fan-out.
	NodeID string `yaml:"node_id"`

	// Advertise is the host:port at which peers reach this node's
	// git HTTP endpoint (used to build pull URLs).
	Advertise string `yaml:"advertise"`

	// AgentListen is the TCP address for the peer replication
	// agent. Empty disables the agent.
	AgentListen string `yaml:"agent_listen"`

	// ReplicationToken is the fixed api-key used for
	// node-to-node pulls.
	ReplicationToken string `yaml:"replication_token"`

	// Nodes is the static membership snapshot used when no node
	// directory service is configured.
	Nodes []NodeConfig `yaml:"nodes"`
}

// NodeConfig describes one cluster peer.
type NodeConfig struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

// SidebandConfig configures the post-push sideband session.
type SidebandConfig struct {
	// Heartbeat is the keep-alive interval while a session is open.
	Heartbeat Duration `yaml:"heartbeat"`

	// Expiry is how long a session may stay open without an
	// explicit close.
	Expiry Duration `yaml:"expiry"`
}

// Default returns the base configuration. These mirror the
// historical service defaults; the config file overrides them.
func Default() *Config {
	return &Config{
		Environment:   Development,
		Listen:        "0.0.0.0:7784",
		ControlSocket: "/run/depot/git.sock",
		ReposRoot:     "/repos",
		GitBinary:     "git",
		Metadata: MetadataConfig{
			Address: "127.0.0.1:7720",
			Timeout: Duration(30 * time.Second),
		},
		Sideband: SidebandConfig{
			Heartbeat: Duration(time.Second),
			Expiry:    Duration(35 * time.Second),
		},
	}
}

// Load loads configuration from the DEPOT_CONFIG environment
// variable. There are no fallbacks: if DEPOT_CONFIG is unset, Load
// fails. This keeps configuration deterministic and auditable.
func Load() (*Config, error) {
	path := os.Getenv("DEPOT_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("DEPOT_CONFIG environment variable not set; " +
			"set it to the path of your depot.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, applies environment
// overrides, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides merges the override section matching
// the configured environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Listen != "" {
		c.Listen = overrides.Listen
	}
	if overrides.ControlSocket != "" {
		c.ControlSocket = overrides.ControlSocket
	}
	if overrides.ReposRoot != "" {
		c.ReposRoot = overrides.ReposRoot
	}
	if overrides.GitBinary != "" {
		c.GitBinary = overrides.GitBinary
	}
	if overrides.Metadata != nil {
		c.Metadata = *overrides.Metadata
	}
	if overrides.Cluster != nil {
		c.Cluster = *overrides.Cluster
	}
	if overrides.Sideband != nil {
		c.Sideband = *overrides.Sideband
	}
}

// Validate checks the configuration for values that would prevent
// the service from starting or make its behavior undefined.
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.ReposRoot == "" {
		return fmt.Errorf("repos_root is required")
	}
	if c.GitBinary == "" {
		return fmt.Errorf("git_binary is required")
	}
	if c.Metadata.Address == "" {
		return fmt.Errorf("metadata.address is required")
	}
	if c.Metadata.Timeout <= 0 {
		return fmt.Errorf("metadata.timeout must be positive")
	}
	if c.Sideband.Heartbeat <= 0 {
		return fmt.Errorf("sideband.heartbeat must be positive")
	}
	if c.Sideband.Expiry <= c.Sideband.Heartbeat {
		return fmt.Errorf("sideband.expiry must exceed sideband.heartbeat")
	}
	for i, node := range c.Cluster.Nodes {
		if node.ID == "" || node.Address == "" {
			return fmt.Errorf("cluster.nodes[%d]: id and address are required", i)
		}
	}
	if len(c.Cluster.Nodes) > 0 {
		if c.Cluster.NodeID == "" {
			return fmt.Errorf("cluster.node_id is required when cluster.nodes is set")
		}
		if c.Cluster.Advertise == "" {
			return fmt.Errorf("cluster.advertise is required when cluster.nodes is set")
		}
		if c.Cluster.ReplicationToken == "" {
			return fmt.Errorf("cluster.replication_token is required when cluster.nodes is set")
		}
	}
	if c.Cluster.AgentListen != "" && c.Cluster.ReplicationToken == "" {
		return fmt.Errorf("cluster.replication_token is required when cluster.agent_listen is set")
	}
	return nil
}
