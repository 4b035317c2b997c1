package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "pushfan/pkg/logx"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

var sqliteDialect = dialect{
	name:       "sqlite",
	schema:     sqliteSchema,
	findAll:    `SELECT id, subinfo FROM users ORDER BY id`,
	findSubstr: `SELECT id, subinfo FROM users WHERE instr(id, ?) > 0 ORDER BY id`,
	insert:     `INSERT INTO users(id, subinfo) VALUES(?, ?) ON CONFLICT(id) DO NOTHING`,
	delete:     `DELETE FROM users WHERE id = ?`,
	commit:     `PRAGMA wal_checkpoint(PASSIVE)`,
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; dispatch deletes are serialized anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqlStore{db: db, d: sqliteDialect, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("subscriber store opened", logx.String("path", path))
	return st, nil
}
