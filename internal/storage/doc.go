// Package storage persists subscriber records.
//
// A record maps a subscriber ID to an opaque subscription descriptor. The
// backing layout for SQL drivers is a single table:
//
//	users(id TEXT PRIMARY KEY, subinfo TEXT)
//
// Drivers:
//   - "sqlite": SQLite database file (default)
//   - "postgres": PostgreSQL via pgx
//   - "file": JSON snapshot + append-only journal
package storage
