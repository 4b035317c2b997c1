package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	logx "pushfan/pkg/logx"
)

var postgresDialect = dialect{
	name:       "postgres",
	schema:     `CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, subinfo TEXT)`,
	findAll:    `SELECT id, subinfo FROM users ORDER BY id`,
	findSubstr: `SELECT id, subinfo FROM users WHERE strpos(id, $1) > 0 ORDER BY id`,
	insert:     `INSERT INTO users(id, subinfo) VALUES($1, $2) ON CONFLICT (id) DO NOTHING`,
	delete:     `DELETE FROM users WHERE id = $1`,
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &sqlStore{db: db, d: postgresDialect, log: log}
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("subscriber store opened")
	return st, nil
}
