package store

import (
	"context"
	"database/sql"
	"sync"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS plugin_data (
	project    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (project, key)
)`

// SQLite stores plugin data in a plugin_data table. Open the database with
// core/sqlite so the compiled-in driver is used.
type SQLite struct {
	db *sql.DB

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewSQLite wraps an open database. The table is created by the first call that succeeds.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	// A failure is not remembered; the next call tries again.
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return errors.Wrap(err, "creating plugin_data table")
	}
	s.schemaReady = true
	return nil
}

func (s *SQLite) Get(ctx context.Context, project, key string) (string, bool, error) {
	if err := checkKey(project, key); err != nil {
		return "", false, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM plugin_data WHERE project = ? AND key = ?`, project, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "reading %s/%s", project, key)
	}
	return value, true, nil
}

func (s *SQLite) Put(ctx context.Context, project, key, value string) error {
	if err := checkKey(project, key); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plugin_data (project, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (project, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		project, key, value)
	if err != nil {
		return errors.Wrapf(err, "writing %s/%s", project, key)
	}
	return nil
}
