package store

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS plugin_data (
	project    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (project, key)
)`

// Postgres stores plugin data in a shared PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewPostgres wraps a connection pool. The table is created by the first call that succeeds.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// ConnectPostgres opens and pings a pool for databaseURL.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return NewPostgres(pool), nil
}

// Close closes the connection pool.
func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	// A failure is not remembered; the next call tries again.
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return errors.Wrap(err, "creating plugin_data table")
	}
	s.schemaReady = true
	return nil
}

func (s *Postgres) Get(ctx context.Context, project, key string) (string, bool, error) {
	if err := checkKey(project, key); err != nil {
		return "", false, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return "", false, err
	}
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM plugin_data WHERE project = $1 AND key = $2`, project, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "reading %s/%s", project, key)
	}
	return value, true, nil
}

func (s *Postgres) Put(ctx context.Context, project, key, value string) error {
	if err := checkKey(project, key); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO plugin_data (project, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (project, key) DO UPDATE SET value = $3, updated_at = NOW()`,
		project, key, value)
	if err != nil {
		return errors.Wrapf(err, "writing %s/%s", project, key)
	}
	return nil
}
