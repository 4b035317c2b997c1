package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConflict is returned by Insert when the ID is already registered.
	ErrConflict = errors.New("subscriber already registered")
	ErrClosed   = errors.New("storage closed")
)

// Record is one registered subscriber. Subscription is never interpreted here.
type Record struct {
	ID           string
	Subscription []byte
}

// Store is the subscriber persistence API used by dispatch and registration.
//
// Delete is durable when it returns (each call is its own transaction).
// Commit is an additional durability barrier callers may issue after a
// mutation; it never spans more than the mutations already made.
type Store interface {
	// Find returns records whose ID contains pattern; empty pattern matches all.
	Find(ctx context.Context, pattern string) ([]Record, error)
	Insert(ctx context.Context, id string, subscription []byte) error
	Delete(ctx context.Context, id string) error
	Commit(ctx context.Context) error
	Close() error
}

// Config configures storage.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
