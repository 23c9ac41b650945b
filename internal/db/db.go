// Package db opens the desk's embedded SQLite store. The database lives
// in a .droneops directory under the workspace, created on first open.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Config struct {
	Workspace string
	// File names the database file; droneops.db when empty.
	File string
}

func (c Config) path() string {
	ws := c.Workspace
	if ws == "" {
		ws = "."
	}
	file := c.File
	if file == "" {
		file = "droneops.db"
	}
	return filepath.Join(ws, ".droneops", file)
}

// Open creates the workspace data directory if missing and opens the
// store with foreign keys on.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path)
	return sql.Open("sqlite", dsn)
}
