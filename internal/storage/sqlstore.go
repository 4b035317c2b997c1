package storage

import (
	"context"
	"database/sql"
	"fmt"

	logx "pushfan/pkg/logx"
)

// dialect holds the driver-specific statements. All of them are parameterized.
type dialect struct {
	name       string
	schema     string
	findAll    string
	findSubstr string
	insert     string
	delete     string
	// commit runs on Commit(); empty means nothing to flush.
	commit string
}

type sqlStore struct {
	db  *sql.DB
	d   dialect
	log logx.Logger
}

func (s *sqlStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.d.schema)
	if err != nil {
		return fmt.Errorf("%s: create schema: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) Find(ctx context.Context, pattern string) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	var (
		rows *sql.Rows
		err  error
	)
	if pattern == "" {
		rows, err = s.db.QueryContext(ctx, s.d.findAll)
	} else {
		rows, err = s.db.QueryContext(ctx, s.d.findSubstr, pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", s.d.name, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id      string
			subinfo sql.NullString
		)
		if err := rows.Scan(&id, &subinfo); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", s.d.name, err)
		}
		out = append(out, Record{ID: id, Subscription: []byte(subinfo.String)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: find: %w", s.d.name, err)
	}
	return out, nil
}

func (s *sqlStore) Insert(ctx context.Context, id string, subscription []byte) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx, s.d.insert, id, string(subscription))
	if err != nil {
		return fmt.Errorf("%s: insert: %w", s.d.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: insert: %w", s.d.name, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Delete removes id in its own transaction. Deleting a missing id is not an error.
func (s *sqlStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: delete: %w", s.d.name, err)
	}
	if _, err := tx.ExecContext(ctx, s.d.delete, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: delete: %w", s.d.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: delete commit: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Commit(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if s.d.commit == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.d.commit); err != nil {
		return fmt.Errorf("%s: commit: %w", s.d.name, err)
	}
	return nil
}
