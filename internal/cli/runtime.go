package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
	"github.com/randalmurphal/newsrag/pkg/ragflow/config"
	"github.com/randalmurphal/newsrag/pkg/ragflow/llm"
	"github.com/randalmurphal/newsrag/pkg/ragflow/snapshot"
	"github.com/randalmurphal/newsrag/pkg/ragflow/store"
)

// ErrNoDatabase is returned when no vector store is configured.
var ErrNoDatabase = errors.New("no database configured: set DATABASE_URL or store.database_url")

// Runtime holds the collaborators built for one command.
type Runtime struct {
	Deps ragflow.Dependencies
	// Snapshots is nil when snapshots are disabled.
	Snapshots snapshot.Store

	closers []func() error
}

// Close releases everything the runtime opened.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// Builder creates the runtime from resolved settings.
type Builder func(ctx context.Context, s config.Settings, logger *slog.Logger) (*Runtime, error)

// BuildRuntime connects the configured LLM backends, vector store and
// snapshot database.
func BuildRuntime(ctx context.Context, s config.Settings, logger *slog.Logger) (*Runtime, error) {
	client, err := llm.FromSettings(s.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	rt := &Runtime{}
	rt.Deps.Completer = llm.NewCompleter(client)
	if !s.Pipeline.DisableFineTunedAnalyzer {
		rt.Deps.Generator = llm.NewGenerator(llm.FineTunedFromSettings(s.FineTuned, logger))
	}

	if s.Store.DatabaseURL == "" {
		return nil, ErrNoDatabase
	}
	pool, err := store.NewPool(ctx, s.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	rt.closers = append(rt.closers, func() error { pool.Close(); return nil })

	var embedder store.Embedder = store.NewOllamaEmbedder(s.Store.EmbeddingURL, s.Store.EmbeddingModel,
		store.WithEmbedLogger(logger))
	if s.Store.EmbeddingCacheSize > 0 {
		cached, err := store.NewCachedEmbedder(embedder, s.Store.EmbeddingCacheSize)
		if err != nil {
			return nil, errors.Join(err, rt.Close())
		}
		embedder = cached
	}
	vectors, err := store.NewPGVectorStore(pool, embedder, s.Store.Table, logger)
	if err != nil {
		return nil, errors.Join(err, rt.Close())
	}
	rt.Deps.Store = vectors

	if s.Pipeline.SnapshotPath != "" {
		snaps, err := snapshot.NewSQLiteStore(s.Pipeline.SnapshotPath)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("snapshots: %w", err), rt.Close())
		}
		rt.Snapshots = snaps
		rt.closers = append(rt.closers, snaps.Close)
	}

	logger.Debug("runtime ready",
		slog.String("llm_provider", s.LLM.Provider),
		slog.String("llm_model", s.LLM.Model),
		slog.Bool("fine_tuned", rt.Deps.Generator != nil),
		slog.Bool("snapshots", rt.Snapshots != nil),
	)
	return rt, nil
}
