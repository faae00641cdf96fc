// Package store defines the abstract key-value document store the
// reservation core runs on, plus the in-memory and Redis backends.
// Records are whole JSON documents addressed by slash-separated
// paths ("seats/A1", "tickets/ticket_...", "current_ticket");
// writes always replace the whole document so readers never observe
// a half-written record.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists at the path.
var ErrNotFound = errors.New("record not found")

// Event describes one change to a record. Value carries the new
// document, or nil when Deleted is set.
type Event struct {
	Path    string `json:"path"`
	Value   []byte `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Subscription is a live feed of change events for a path prefix.
// The feed is infinite until Unsubscribe is called, after which the
// Events channel is closed. Re-subscribing restarts the feed; missed
// events are not replayed.
type Subscription interface {
	Events() <-chan Event
	Unsubscribe()
}

// Store is the persistence contract consumed by the repositories.
// Implementations must make Set and Delete atomic per record and
// immediately visible to subsequent reads by the same caller.
type Store interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Set(ctx context.Context, path string, value []byte) error
	Delete(ctx context.Context, path string) error
	// List returns every record whose path starts with prefix,
	// keyed by full path. It is the subtree read used for seat and
	// ticket snapshots.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	Watch(ctx context.Context, prefix string) (Subscription, error)
}

// Conditional is an optional capability. Backends that can perform
// compare-and-swap style writes expose it; the reservation engine
// uses it as the linearization point for seat allocation and falls
// back to per-seat locking when the backend cannot provide it.
type Conditional interface {
	// CompareAndSwap replaces the record at path with replace only
	// if its current value equals expect byte for byte. It reports
	// whether the swap happened. A missing record never matches.
	CompareAndSwap(ctx context.Context, path string, expect, replace []byte) (bool, error)
	// SetIfAbsent writes value only when no record exists at path
	// and reports whether the write happened.
	SetIfAbsent(ctx context.Context, path string, value []byte) (bool, error)
}
