// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/depot-foundation/depot/cluster"
	"github.com/depot-foundation/depot/gitbridge"
	"github.com/depot-foundation/depot/lib/clock"
	"github.com/depot-foundation/depot/lib/config"
	"github.com/depot-foundation/depot/lib/process"
	"github.com/depot-foundation/depot/lib/service"
	"github.com/depot-foundation/depot/metadata"
	"github.com/depot-foundation/depot/repostore"
	"github.com/depot-foundation/depot/sideband"
	"github.com/depot-foundation/depot/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to depot.yaml (defaults to $DEPOT_CONFIG)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("depot-git-service %s\n", version.Info())
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger := service.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meta := metadata.NewClient(cfg.Metadata.Address, cfg.Metadata.Timeout.Std())
	locator := repostore.NewLocator(
		meta,
		&repostore.LocalStores{GitBinary: cfg.GitBinary},
		cfg.ReposRoot,
		logger,
	)

	sidebands := sideband.NewManager(sideband.ManagerConfig{
		Clock:     clock.Real(),
		Heartbeat: cfg.Sideband.Heartbeat.Std(),
		Expiry:    cfg.Sideband.Expiry.Std(),
		Logger:    logger,
	})
	defer sidebands.CloseAll()

	directory := &cluster.StaticDirectory{
		SelfID:  cfg.Cluster.NodeID,
		Members: clusterNodes(cfg),
	}
	// A solo node has no peers to fan out to but still answers
	// pull-url queries on the control socket.
	advertise := cfg.Cluster.Advertise
	if advertise == "" {
		advertise = cfg.Listen
	}
	replicator := cluster.NewReplicator(cluster.ReplicatorConfig{
		Directory: directory,
		Advertise: advertise,
		Token:     cfg.Cluster.ReplicationToken,
		Logger:    logger,
	})

	handler := gitbridge.NewHandler(gitbridge.HandlerConfig{
		Gate:       gitbridge.NewGate(meta, meta, logger),
		Locator:    locator,
		Commits:    meta,
		Replicator: replicator,
		Sidebands:  sidebands,
		GitBinary:  cfg.GitBinary,
		Logger:     logger,
	})
	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address: cfg.Listen,
		Handler: handler,
		Logger:  logger,
	})

	control := gitbridge.NewControl(gitbridge.ControlConfig{
		Socket:    cfg.ControlSocket,
		Sidebands: sidebands,
		Locator:   locator,
		PullURLs:  replicator,
		Logger:    logger,
	})

	errs := make(chan error, 3)
	go func() { errs <- httpServer.Serve(ctx) }()
	go func() { errs <- control.Serve(ctx) }()

	running := 2
	if cfg.Cluster.AgentListen != "" {
		agent := cluster.NewAgent(cluster.AgentConfig{
			Listen:  cfg.Cluster.AgentListen,
			Locator: locator,
			Puller:  &cluster.LocalPuller{GitBinary: cfg.GitBinary},
			Token:   cfg.Cluster.ReplicationToken,
			Logger:  logger,
		})
		go func() { errs <- agent.Serve(ctx) }()
		running++
	}

	logger.Info("depot git service running",
		"listen", cfg.Listen,
		"control_socket", cfg.ControlSocket,
		"repos_root", cfg.ReposRoot,
		"node", cfg.Cluster.NodeID,
		"version", version.Info(),
	)

	// The first server error (or a clean shutdown after signal) ends
	// the process; the remaining servers stop via the shared context.
	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
			stop()
		}
	}
	if firstErr != nil {
		return firstErr
	}
	logger.Info("depot git service stopped")
	return nil
}

// clusterNodes converts the config node list into directory members.
func clusterNodes(cfg *config.Config) []cluster.Node {
	nodes := make([]cluster.Node, 0, len(cfg.Cluster.Nodes))
	for _, node := range cfg.Cluster.Nodes {
		nodes = append(nodes, cluster.Node{ID: node.ID, Address: node.Address})
	}
	return nodes
}
