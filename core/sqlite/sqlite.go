// Package sqlite opens the SQLite database behind the "sqlite" store. The
// pure Go driver (modernc.org/sqlite) is the default; building with
// -tags cgo_sqlite switches to mattn/go-sqlite3. Both get the same busy
// timeout and WAL journal through a driver-specific DSN.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// DriverType is "purego" or "cgo".
func DriverType() string { return driverType }

// Open opens or creates the database at path, creating its directory. The
// pool is limited to one connection since SQLite has a single writer.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create %s: %w", dir, err)
		}
	}
	db, err := sql.Open(driverName, dsn(path, false))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	return db, nil
}

// OpenReadOnly opens an existing database for reading.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db, err := sql.Open(driverName, dsn(path, true))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	return db, nil
}
