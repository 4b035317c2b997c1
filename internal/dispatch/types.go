package dispatch

import (
	"context"

	"pushfan/internal/storage"
)

// Headers are the per-run delivery overrides.
type Headers struct {
	TTL     int
	Topic   string // empty: no Topic header
	Urgency string // empty: push service default
}

// Outcome is the result of one delivery attempt.
// Err is set for transport-level failures; Status is then usually 0.
type Outcome struct {
	Status int
	Body   []byte
	Err    error
}

// Deliverer performs one delivery attempt. Implementations must be safe for
// concurrent use and must report failures through Outcome, not panics.
type Deliverer interface {
	Deliver(ctx context.Context, subscription []byte, payload []byte, h Headers) Outcome
}

// Store is the subset of storage.Store the engine needs.
type Store interface {
	Find(ctx context.Context, pattern string) ([]storage.Record, error)
	Delete(ctx context.Context, id string) error
	Commit(ctx context.Context) error
}

// Report is the only externally observable result of a run.
type Report struct {
	RunID     string
	Attempted int
	// FailedIDs lists TransientError candidates in the order their outcomes arrived.
	FailedIDs []string
	// PrunedIDs lists candidates removed from the store as permanently invalid.
	PrunedIDs []string
	Delivered int
}
