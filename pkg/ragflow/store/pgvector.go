package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
)

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ErrNoEmbedder is returned when a store is built without an Embedder.
var ErrNoEmbedder = errors.New("store: embedder is required")

// PoolConfig holds tunable parameters for the connection pool.
type PoolConfig struct {
	MaxConns int
	MinConns int
}

// NewPool opens a pgvector-aware connection pool and pings it.
func NewPool(ctx context.Context, dsn string, opts ...PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	if len(opts) > 0 && opts[0].MaxConns > 0 {
		config.MaxConns = int32(opts[0].MaxConns)
	}
	if len(opts) > 0 && opts[0].MinConns > 0 {
		config.MinConns = int32(opts[0].MinConns)
	}
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PGVectorStore is a read-only ragflow.DocumentStore over an existing
// pgvector table with columns content text, metadata jsonb and embedding
// vector. Populating the table is left to the ingestion tooling.
type PGVectorStore struct {
	db       Querier
	embedder Embedder
	table    string
	logger   *slog.Logger
}

var _ ragflow.DocumentStore = (*PGVectorStore)(nil)

// NewPGVectorStore creates a store over table.
func NewPGVectorStore(db Querier, embedder Embedder, table string, logger *slog.Logger) (*PGVectorStore, error) {
	if embedder == nil {
		return nil, ErrNoEmbedder
	}
	if table == "" {
		table = "documents"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PGVectorStore{db: db, embedder: embedder, table: table, logger: logger}, nil
}

func (s *PGVectorStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// Search returns the k documents nearest to query by cosine distance.
func (s *PGVectorStore) Search(ctx context.Context, query string, k int) ([]ragflow.Document, error) {
	if k <= 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: sent 1 text, got %d vectors", ErrEmbeddingCount, len(vectors))
	}

	sql := fmt.Sprintf("SELECT content, metadata FROM %s ORDER BY embedding <=> $1 LIMIT $2", s.ident())
	rows, err := s.db.Query(ctx, sql, pgvector.NewVector(vectors[0]), k)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var docs []ragflow.Document
	for rows.Next() {
		var content string
		var meta []byte
		if err := rows.Scan(&content, &meta); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc := ragflow.Document{Content: StripMarkup(content)}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	s.logger.Debug("similarity search",
		slog.String("table", s.table),
		slog.Int("k", k),
		slog.Int("found", len(docs)),
	)
	return docs, nil
}
