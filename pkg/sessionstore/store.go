package sessionstore

import (
	"context"
	"errors"
	"time"

	"chatmrpt-be/pkg/store"
)

// ErrConflict is returned by Put when another writer committed a newer
// version of the same session's state between our Get and Put.
var ErrConflict = errors.New("sessionstore: concurrent modification")

// TTL after which an untouched session record may be reclaimed.
const SessionTTL = 24 * time.Hour

// Store is the single shared mutable resource of the workflow engine. All
// reads and writes of WorkflowState go through it; implementations must make
// Put atomic per session ID.
type Store interface {
	// Get returns the state for a session, or nil when none exists.
	Get(ctx context.Context, sessionID string) (*store.WorkflowState, error)

	// Put commits the state. The state's Version must equal the currently
	// stored version (zero for a fresh record); on success the stored version
	// is incremented. Returns ErrConflict when the check fails.
	Put(ctx context.Context, st *store.WorkflowState) error

	// Delete removes the record (session exit / reclamation).
	Delete(ctx context.Context, sessionID string) error
}
