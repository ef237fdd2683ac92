// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/depot-foundation/depot/lib/service"
	"github.com/depot-foundation/depot/lib/testutil"
	"github.com/depot-foundation/depot/metadata"
	"github.com/depot-foundation/depot/repostore"
)

// noRepositories satisfies metadata.Repositories; the agent never
// resolves names, it is handed owner and name directly.
type noRepositories struct{}

func (noRepositories) FindByName(_ context.Context, _ string) (*metadata.Repository, error) {
	return nil, metadata.ErrNotFound
}

type memoryStores struct {
	mu       sync.Mutex
	existing map[string]bool
}

func newMemoryStores() *memoryStores {
	return &memoryStores{existing: make(map[string]bool)}
}

func (s *memoryStores) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[path], nil
}

func (s *memoryStores) Init(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existing[path] = true
	return nil
}

func (s *memoryStores) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.existing, path)
	return nil
}

type recordingPuller struct {
	mu    sync.Mutex
	pulls []string // "path url"
	err   error
}

func (p *recordingPuller) Pull(_ context.Context, path, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pulls = append(p.pulls, path+" "+url)
	return p.err
}

func startAgent(t *testing.T, puller Puller) *service.Client {
	t.Helper()

	locator := repostore.NewLocator(noRepositories{}, newMemoryStores(), "/repos", testLogger())
	agent := NewAgent(AgentConfig{
		Listen:  "127.0.0.1:0",
		Locator: locator,
		Puller:  puller,
		Token:   "repl-secret",
		Logger:  testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := agent.Serve(ctx); err != nil {
			t.Errorf("agent Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "agent shutdown")
	})

	testutil.RequireClosed(t, agent.Ready(), 5*time.Second, "agent ready")
	return service.NewClient("tcp", agent.Addr())
}

func TestAgentPullsIntoProvisionedStore(t *testing.T) {
	puller := &recordingPuller{}
	client := startAgent(t, puller)

	err := client.Call(context.Background(), "pull-bare-store", map[string]any{
		"token": "repl-secret",
		"owner": "acme",
		"name":  "widgets",
		"url":   "http://repl-secret:@node-b:7784/widgets.git",
	}, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	puller.mu.Lock()
	defer puller.mu.Unlock()
	if len(puller.pulls) != 1 {
		t.Fatalf("pulls = %v, want one", puller.pulls)
	}
	want := "/repos/acme/widgets http://repl-secret:@node-b:7784/widgets.git"
	if puller.pulls[0] != want {
		t.Errorf("pull = %q, want %q", puller.pulls[0], want)
	}
}

func TestAgentRejectsBadToken(t *testing.T) {
	puller := &recordingPuller{}
	client := startAgent(t, puller)

	err := client.Call(context.Background(), "pull-bare-store", map[string]any{
		"token": "wrong",
		"owner": "acme",
		"name":  "widgets",
		"url":   "http://x:@node-b:7784/widgets.git",
	}, nil)
	if err == nil {
		t.Fatal("Call succeeded with bad token")
	}
	if !strings.Contains(err.Error(), "invalid replication token") {
		t.Errorf("error = %v", err)
	}

	puller.mu.Lock()
	defer puller.mu.Unlock()
	if len(puller.pulls) != 0 {
		t.Errorf("puller invoked despite bad token: %v", puller.pulls)
	}
}

func TestAgentRejectsIncompleteInstruction(t *testing.T) {
	client := startAgent(t, &recordingPuller{})

	err := client.Call(context.Background(), "pull-bare-store", map[string]any{
		"token": "repl-secret",
		"owner": "acme",
	}, nil)
	if err == nil {
		t.Fatal("Call succeeded without name and url")
	}
}
