// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package gitbridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/klauspost/compress/gzip"

	"github.com/depot-foundation/depot/gitwire"
	"github.com/depot-foundation/depot/metadata"
	"github.com/depot-foundation/depot/repostore"
	"github.com/depot-foundation/depot/sideband"
)

// standByLine is the first status line a pushing client sees while
// post-push processing runs.
const standByLine = "Please stand by...\n"

// Replicator fans an accepted push out to peer nodes.
type Replicator interface {
	// Replicate returns the number of peers that confirmed the
	// pull. Best effort; never fails.
	Replicate(ctx context.Context, repo *metadata.Repository) int
}

// Handler is the smart-HTTP bridge: it gates credentials, locates
// the bare store, spawns the git subprocess, and streams bytes
// between the client and the subprocess. On an accepted push it runs
// the post-push pipeline: commit record, replication fan-out,
// sideband session.
type Handler struct {
	router *httprouter.Router

	gate       *Gate
	locator    *repostore.Locator
	commits    metadata.Commits
	replicator Replicator
	sidebands  *sideband.Manager
	gitBinary  string
	logger     *slog.Logger
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Gate authenticates every exchange. Required.
	Gate *Gate

	// Locator resolves URL paths to repositories and provisions
	// bare stores. Required.
	Locator *repostore.Locator

	// Commits is the append-only commit ledger. Required.
	Commits metadata.Commits

	// Replicator fans accepted pushes out to peers. Required.
	Replicator Replicator

	// Sidebands owns post-push progress sessions. Required.
	Sidebands *sideband.Manager

	// GitBinary is the git executable. Defaults to "git".
	GitBinary string

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewHandler creates the bridge handler.
func NewHandler(config HandlerConfig) *Handler {
	if config.Gate == nil {
		panic("gitbridge.Handler: Gate is required")
	}
	if config.Locator == nil {
		panic("gitbridge.Handler: Locator is required")
	}
	if config.Commits == nil {
		panic("gitbridge.Handler: Commits is required")
	}
	if config.Replicator == nil {
		panic("gitbridge.Handler: Replicator is required")
	}
	if config.Sidebands == nil {
		panic("gitbridge.Handler: Sidebands is required")
	}
	if config.Logger == nil {
		panic("gitbridge.Handler: Logger is required")
	}

	binary := config.GitBinary
	if binary == "" {
		binary = "git"
	}

	h := &Handler{
		router:     httprouter.New(),
		gate:       config.Gate,
		locator:    config.Locator,
		commits:    config.Commits,
		replicator: config.Replicator,
		sidebands:  config.Sidebands,
		gitBinary:  binary,
		logger:     config.Logger,
	}
	h.router.GET("/:repo/info/refs", h.exchange)
	h.router.POST("/:repo/git-upload-pack", h.exchange)
	h.router.POST("/:repo/git-receive-pack", h.exchange)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// exchange runs one smart-HTTP exchange end to end. The repository
// segment is re-parsed from the URL path by the locator rather than
// taken from the route parameter so the ".git" suffix handling lives
// in one place.
func (h *Handler) exchange(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	identity, ok := h.gate.Authenticate(w, r)
	if !ok {
		return
	}

	repo, err := h.locator.Locate(ctx, r.URL.Path)
	if err != nil {
		if errors.Is(err, repostore.ErrNotFound) {
			http.Error(w, "repository not found", http.StatusNotFound)
			return
		}
		h.logger.Error("locating repository", "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	storePath, err := h.locator.EnsureStore(ctx, repo)
	if err != nil {
		h.logger.Error("provisioning bare store", "repo", repo.Name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	parsed, err := gitwire.ParseRequest(r.Method, r.URL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body := io.Reader(r.Body)
	if r.Header.Get("Content-Encoding") == "gzip" {
		decompressed, err := gzip.NewReader(body)
		if err != nil {
			http.Error(w, "malformed gzip body", http.StatusBadRequest)
			return
		}
		defer decompressed.Close()
		body = decompressed
	}

	// A push's first command pkt-line carries the fields that key
	// the post-push pipeline; capture it as the bytes stream past.
	var scanner *gitwire.RefUpdateScanner
	if parsed.Action == gitwire.ActionPush && !parsed.AdvertiseRefs {
		scanner = gitwire.NewRefUpdateScanner(body)
		body = scanner
	}

	w.Header().Set("Content-Type", parsed.ContentType)
	w.Header().Set("Cache-Control", "no-cache")

	out := newFlushWriter(w)
	if parsed.AdvertiseRefs {
		if err := gitwire.WriteAdvertisementHeader(out, parsed.Service); err != nil {
			h.logger.Error("writing advertisement header", "repo", repo.Name, "error", err)
			return
		}
	}

	args := append(append([]string(nil), parsed.Args...), storePath)
	cmd := exec.CommandContext(ctx, h.gitBinary, args...)
	cmd.Stdin = body
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		h.logger.Error("spawning git subprocess",
			"repo", repo.Name, "service", parsed.Service, "error", err)
		if !parsed.AdvertiseRefs {
			http.Error(w, "failed to start git service", http.StatusInternalServerError)
		}
		return
	}
	if err := cmd.Wait(); err != nil {
		// Bytes already streamed cannot be retracted; the client
		// retries the whole operation.
		h.logger.Error("git subprocess failed",
			"repo", repo.Name,
			"service", parsed.Service,
			"error", err,
			"stderr", strings.TrimSpace(stderr.String()),
		)
		return
	}

	if scanner != nil {
		if fields, captured := scanner.Fields(); captured {
			h.completePush(r, out, identity, repo, fields)
		}
	}
}

// completePush runs the post-push pipeline: record the commit, fan
// replication out, then hold the response open as the sideband sink
// until the session is closed or expires.
func (h *Handler) completePush(r *http.Request, out *flushWriter, identity *Identity, repo *metadata.Repository, fields gitwire.Fields) {
	ctx := r.Context()

	record := metadata.CommitRecord{
		Repo:   repo.ID,
		Owner:  identity.Owner(),
		Hash:   fields.Head,
		Last:   fields.Last,
		Branch: fields.Branch,
		Action: string(gitwire.ActionPush),
		Status: metadata.StatusAccepted,
	}
	if _, err := h.commits.Create(ctx, record); err != nil {
		// The store already holds the push; a ledger gap is logged,
		// never surfaced to the client.
		h.logger.Error("recording commit", "repo", repo.Name, "hash", fields.Head, "error", err)
	}

	// Fire and forget: the push is acknowledged regardless of how
	// many peers confirm. Background context so replication outlives
	// the request.
	go h.replicator.Replicate(context.Background(), repo)

	sink := &notifySink{WriteCloser: gitwire.NewSidebandWriter(out), done: make(chan struct{})}
	h.sidebands.Open(fields.Head, sink)
	h.sidebands.Relay(fields.Head, []byte(standByLine))

	select {
	case <-sink.done:
	case <-ctx.Done():
		h.sidebands.Close(fields.Head)
	}
}

// flushWriter forwards every write to the client immediately. Git's
// negotiation is interactive; bytes sitting in a server buffer stall
// it.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	f, _ := w.(http.Flusher)
	return &flushWriter{w: w, f: f}
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}

func (fw *flushWriter) Flush() {
	if fw.f != nil {
		fw.f.Flush()
	}
}

// notifySink signals the exchange goroutine when the session manager
// closes the sink, releasing the held-open HTTP response.
type notifySink struct {
	io.WriteCloser
	done chan struct{}
	once sync.Once
}

func (s *notifySink) Close() error {
	err := s.WriteCloser.Close()
	s.once.Do(func() { close(s.done) })
	return err
}
