// Package replay guarantees each payment signature is consumed at most once.
//
// The lifecycle is a small state machine: absent -> pending -> confirmed, or
// absent -> pending -> absent (released). A confirmed signature is never
// deleted and never reused for the lifetime of the system. Reservation
// happens BEFORE the expensive transaction verification so that two
// concurrent requests carrying the same signature race on the store's
// uniqueness constraint, not on a check-then-act window in application code.
package replay

import (
	"context"
	"log/slog"
	"time"
)

// Status of a signature record. Transitions are gated by the store
// operations themselves: there is no way to express pending -> deleted for
// a confirmed record, or confirmed -> anything.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Record is one signature ever seen by the system.
type Record struct {
	Signature     string    `json:"signature"`
	Status        Status    `json:"status"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	ReservedAt    time.Time `json:"reserved_at"`
	UsedAt        time.Time `json:"used_at,omitempty"`
}

// ReserveOutcome is the tri-state result of Reserve. A store failure is its
// own outcome: the caller must abort the request, never treat it as a
// duplicate.
type ReserveOutcome int

const (
	Reserved ReserveOutcome = iota
	AlreadyUsed
	Failed
)

func (o ReserveOutcome) String() string {
	switch o {
	case Reserved:
		return "reserved"
	case AlreadyUsed:
		return "already_used"
	default:
		return "error"
	}
}

// Store is the minimal persistence contract. InsertUnique MUST be atomic at
// the store: concurrent inserts of the same signature see exactly one true.
type Store interface {
	// InsertUnique creates the record iff no record exists for its
	// signature. Returns false when one already exists, in either state.
	InsertUnique(ctx context.Context, rec Record) (bool, error)
	// ConfirmPending atomically moves a pending record to confirmed,
	// attaching the payer wallet and the usage timestamp. Returns false if
	// the record is missing or not pending.
	ConfirmPending(ctx context.Context, signature, wallet string, usedAt time.Time) (bool, error)
	// DeletePending removes a pending record. A confirmed record is left
	// untouched and reported as false.
	DeletePending(ctx context.Context, signature string) (bool, error)
	// Get returns the record, or nil when absent.
	Get(ctx context.Context, signature string) (*Record, error)
}

// Reserver drives the reservation protocol against a Store.
type Reserver struct {
	store Store
	now   func() time.Time
}

// NewReserver creates a Reserver on top of the given store.
func NewReserver(store Store) *Reserver {
	return &Reserver{store: store, now: time.Now}
}

// Reserve attempts an atomically-unique reservation of the signature.
// Errors fail closed: ambiguous store state must reject the request, so the
// caller never mistakes an outage for a duplicate.
func (r *Reserver) Reserve(ctx context.Context, signature string) ReserveOutcome {
	inserted, err := r.store.InsertUnique(ctx, Record{
		Signature:  signature,
		Status:     StatusPending,
		ReservedAt: r.now(),
	})
	if err != nil {
		slog.Error("[Replay] Reserve failed", "error", err)
		return Failed
	}
	if !inserted {
		return AlreadyUsed
	}
	return Reserved
}

// Confirm transitions a pending reservation to confirmed with the verified
// payer identity. Reports false when the record is missing or not pending.
func (r *Reserver) Confirm(ctx context.Context, signature, wallet string) bool {
	ok, err := r.store.ConfirmPending(ctx, signature, wallet, r.now())
	if err != nil {
		slog.Error("[Replay] Confirm failed", "error", err)
		return false
	}
	return ok
}

// Release deletes a pending reservation after downstream validation fails,
// so the same signature can legitimately be retried later. Confirmed
// records are never released.
func (r *Reserver) Release(ctx context.Context, signature string) bool {
	ok, err := r.store.DeletePending(ctx, signature)
	if err != nil {
		slog.Error("[Replay] Release failed", "error", err)
		return false
	}
	return ok
}
