package tx

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queued transaction.
type Status string

const (
	// StatusPending means the transaction is waiting for the user's signature.
	StatusPending Status = "PENDING"
	// StatusApprovalPending means the transaction is blocked on a prior
	// approval and must not be offered for signing yet.
	StatusApprovalPending Status = "APPROVAL_PENDING"
	// StatusSubmitted means the transaction was signed and broadcast; the
	// hash is known and a receipt is awaited.
	StatusSubmitted Status = "SUBMITTED"
	// StatusConfirmed means the receipt reported on-chain success. Terminal.
	StatusConfirmed Status = "CONFIRMED"
	// StatusFailed means submission failed, the receipt reported a revert,
	// or the transaction was marked lost. Terminal.
	StatusFailed Status = "FAILED"
	// StatusRejected means the user declined the signature request. Terminal.
	StatusRejected Status = "REJECTED"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrTerminalStatus    = errors.New("transaction already in terminal status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// IsTerminal reports whether no further status change is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApprovalPending, StatusSubmitted,
		StatusConfirmed, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next follows a legal edge.
// Terminal states accept no transitions.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusApprovalPending:
		// Release by the dependency resolver, or terminal failure paths.
		return next == StatusPending || next == StatusFailed || next == StatusRejected
	case StatusPending:
		return next == StatusSubmitted || next == StatusRejected || next == StatusFailed
	case StatusSubmitted:
		return next == StatusConfirmed || next == StatusFailed
	default:
		return false
	}
}

// Predecessors returns the statuses allowed to transition into next; store
// writers use it to reject illegal edges at the row level.
func Predecessors(next Status) []Status {
	all := []Status{
		StatusPending, StatusApprovalPending, StatusSubmitted,
		StatusConfirmed, StatusFailed, StatusRejected,
	}
	var preds []Status
	for _, s := range all {
		if s.CanTransition(next) {
			preds = append(preds, s)
		}
	}
	return preds
}

// Metadata carries presentation and linkage fields attached by the agent
// that queued the transaction.
type Metadata struct {
	Description       string     `json:"description,omitempty"`
	ApprovalID        *uuid.UUID `json:"approval_id,omitempty"`
	Source            string     `json:"source,omitempty"`
	RequiresSignature bool       `json:"requires_signature,omitempty"`
	TokenSymbol       string     `json:"token_symbol,omitempty"`
	TokenAmount       string     `json:"token_amount,omitempty"`
}

// Transaction is one record in the pending-transaction queue. The id is
// stable across polls and correlates store updates. Value is an integer
// amount in the chain's smallest unit, kept as a decimal string.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	To        string    `json:"to"`
	Value     string    `json:"value"`
	Data      []byte    `json:"data,omitempty"`
	Status    Status    `json:"status"`
	Chain     string    `json:"chain,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Submitted reports whether the record carries a usable on-chain hash.
func (t *Transaction) Submitted() bool {
	return t.Status == StatusSubmitted && len(t.Hash) == 66 // 0x + 32 bytes
}
