// Package credstore persists per-user credential records for toolkit
// capabilities.
//
// Records are opaque key/value payloads keyed by (kind, user_id), where
// kind is the capability name. Presence of a record is the single source
// of truth for "is this capability configured for this user" — the agent
// cache and the prompt cache are both rebuildable from this store.
package credstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists for (kind, user).
var ErrNotFound = errors.New("credential not found")

// Record is an opaque per-capability credential payload, e.g.
// {"token": "...", "server_url": "..."} or {"color": "green"}.
type Record map[string]string

// Clone returns a copy of the record so callers cannot mutate stored state.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Store is the credential persistence contract. Implementations must be
// safe for concurrent use; the proxy serializes writes per user above this
// layer but reads may arrive from any goroutine.
type Store interface {
	// Get returns the record for (kind, userID), or ErrNotFound.
	Get(ctx context.Context, kind, userID string) (Record, error)

	// Put creates or replaces the record for (kind, userID).
	Put(ctx context.Context, kind, userID string, rec Record) error

	// Delete removes the record for (kind, userID). Deleting a missing
	// record is not an error.
	Delete(ctx context.Context, kind, userID string) error

	// Close releases underlying resources.
	Close() error
}
