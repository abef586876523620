package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL-backed implementation of Store.
// Snapshot documents are append-only rows; the newest row per namespace
// is the current document.
//
// Expected schema:
//
//	CREATE TABLE snapshots (
//	    id         BIGSERIAL PRIMARY KEY,
//	    namespace  TEXT        NOT NULL,
//	    body       JSONB       NOT NULL,
//	    version    TEXT        NOT NULL DEFAULT '',
//	    tag        TEXT        NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX snapshots_namespace_id_idx ON snapshots (namespace, id DESC);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store over an existing
// pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPool creates a pgx connection pool for the given DSN. Pool
// creation is lazy; connectivity is not verified here.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return pool, nil
}

// Latest returns the newest document for the namespace.
func (p *PostgresStore) Latest(ctx context.Context, namespace string) (*Document, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT body, version, tag, created_at
		   FROM snapshots
		  WHERE namespace = $1
		  ORDER BY id DESC
		  LIMIT 1`, namespace)

	doc := Document{Namespace: namespace}
	if err := row.Scan(&doc.Body, &doc.Version, &doc.Tag, &doc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	return &doc, nil
}

// Save appends a document for its namespace.
func (p *PostgresStore) Save(ctx context.Context, doc Document) error {
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO snapshots (namespace, body, version, tag, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		doc.Namespace, doc.Body, doc.Version, doc.Tag, createdAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// History returns up to limit documents, newest first.
func (p *PostgresStore) History(ctx context.Context, namespace string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 32
	}
	rows, err := p.pool.Query(ctx,
		`SELECT body, version, tag, created_at
		   FROM snapshots
		  WHERE namespace = $1
		  ORDER BY id DESC
		  LIMIT $2`, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("load snapshot history: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc := Document{Namespace: namespace}
		if err := rows.Scan(&doc.Body, &doc.Version, &doc.Tag, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
