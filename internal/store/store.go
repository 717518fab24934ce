// Package store is the client of the shared pending-transaction store. The
// pipeline never mutates a record except through UpdateStatus, which rejects
// any write that would regress a terminal status.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/omnisig/relay/internal/tx"
)

// CreateParams is what an external agent supplies when queueing an
// operation that needs a signature.
type CreateParams struct {
	To       string
	Value    string
	Data     []byte
	Status   tx.Status
	Chain    string
	Metadata tx.Metadata
}

// Store is the full transaction-store surface. Components take the narrower
// Reader/Writer views they need.
type Store interface {
	Reader
	Writer
	// Create inserts a new record. Status defaults to PENDING.
	Create(ctx context.Context, params CreateParams) (tx.Transaction, error)
	// Remove deletes records by id.
	Remove(ctx context.Context, ids ...uuid.UUID) error
	// Prune deletes terminal records older than the retention window and
	// returns how many were removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Reader fetches the current transaction list.
type Reader interface {
	FetchPending(ctx context.Context) ([]tx.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (tx.Transaction, error)
}

// Writer applies a status transition. hash is recorded when non-empty.
// Returns tx.ErrTerminalStatus when the stored record is already terminal
// and tx.ErrNotFound when no such record exists.
type Writer interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status tx.Status, hash string) (tx.Transaction, error)
}
