package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lborres/shopfront/core"
)

// DefaultProfile scopes client state when several clients share a database.
const DefaultProfile = "default"

const schema = `CREATE TABLE IF NOT EXISTS public.client_state (
	profile    TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      BYTEA       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (profile, key)
)`

// querier is the subset of *pgxpool.Pool the adapter uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Adapter persists client state in Postgres, one row per (profile, key).
type Adapter struct {
	db      querier
	profile string
}

var _ core.Storage = (*Adapter)(nil)

func New(pool *pgxpool.Pool, profile string) *Adapter {
	if profile == "" {
		profile = DefaultProfile
	}
	return &Adapter{
		db:      pool,
		profile: profile,
	}
}

// Migrate creates the client_state table if it does not exist.
func (a *Adapter) Migrate(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate client_state: %w", err)
	}
	return nil
}

func (a *Adapter) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM public.client_state WHERE profile = $1 AND key = $2`

	var value []byte
	err := a.db.QueryRow(ctx, query, a.profile, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrStorageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (a *Adapter) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO public.client_state (profile, key, value) VALUES ($1, $2, $3)
	ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	if _, err := a.db.Exec(ctx, query, a.profile, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM public.client_state WHERE profile = $1 AND key = $2`

	if _, err := a.db.Exec(ctx, query, a.profile, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
