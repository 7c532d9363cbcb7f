// Package storage defines the persistence contract consumed by the
// redeem engine and the monitor pipeline, and a SQLite-backed
// implementation of it. The three capability sets (PaymentStore,
// TokenStore, MonitorStateStore) are kept as separate interfaces so a
// caller only ever depends on the slice of storage it actually uses; a
// single concrete backend may (and here does) implement all three.
package storage

import (
	"context"
	"time"

	"github.com/synnergy-labs/monero-gateway/internal/ids"
)

// PaymentStatus mirrors the single-byte status column of the payments
// table.
type PaymentStatus byte

const (
	StatusUnclaimed PaymentStatus = 0
	StatusClaimed   PaymentStatus = 1
)

// Payment is the in-memory shape of a row in the payments table.
type Payment struct {
	Pid         ids.PaymentId
	Txid        [32]byte
	Amount      int64
	BlockHeight uint64
	ReceivedAt  time.Time
	Status      PaymentStatus
	ClaimedAt   *time.Time
}

// TokenRecord is the in-memory shape of a row in the service_tokens table.
type TokenRecord struct {
	Token        ids.ServiceToken
	Pid          ids.PaymentId
	Amount       int64
	IssuedAt     time.Time
	RevokedAt    *time.Time
	AbuseScore   uint32
	RevokeReason *string
}

// ClaimOutcome enumerates the three possible results of an atomic claim
// attempt.
type ClaimOutcome int

const (
	ClaimClaimed ClaimOutcome = iota
	ClaimAlreadyClaimed
	ClaimNotFound
)

// ClaimResult carries the outcome of ClaimPayment together with the
// payment row as it stood at (or just before) the transition, so callers
// never need a follow-up read to learn the txid/amount.
type ClaimResult struct {
	Outcome ClaimOutcome
	Payment Payment
}

// PaymentStore is the storage capability used by the monitor to persist
// confirmed transfers and by the redeem engine to atomically claim one.
type PaymentStore interface {
	// InsertPayment idempotently inserts a new Unclaimed payment row. A
	// pre-existing row with the same Pid is left untouched; no error is
	// returned in that case.
	InsertPayment(ctx context.Context, p Payment) error

	// GetPayment returns the current row for pid, or errs.ErrNotFound.
	GetPayment(ctx context.Context, pid ids.PaymentId) (Payment, error)

	// ClaimPayment atomically transitions pid from Unclaimed to Claimed.
	// Concurrent callers racing on the same pid observe exactly one
	// ClaimClaimed and any number of ClaimAlreadyClaimed outcomes.
	ClaimPayment(ctx context.Context, pid ids.PaymentId) (ClaimResult, error)

	// StreamPaymentIds invokes fn once per persisted PaymentId, in
	// arbitrary order, for admission-layer prewarm at boot.
	StreamPaymentIds(ctx context.Context, fn func(ids.PaymentId) error) error
}

// TokenStore is the storage capability used by the redeem engine to
// issue and, administratively, revoke service tokens.
type TokenStore interface {
	// InsertToken inserts a new token row. It returns errs.ErrUniqueViolation
	// if a row already exists for this token or this pid.
	InsertToken(ctx context.Context, t TokenRecord) error

	// GetToken returns the current row for token, or errs.ErrNotFound.
	GetToken(ctx context.Context, token ids.ServiceToken) (TokenRecord, error)

	// GetTokenByPid returns the current row for the token issued against
	// pid, or errs.ErrNotFound.
	GetTokenByPid(ctx context.Context, pid ids.PaymentId) (TokenRecord, error)

	// RevokeToken marks token revoked. Idempotent: a second call against
	// an already-revoked token updates the reason/score but never resets
	// RevokedAt.
	RevokeToken(ctx context.Context, token ids.ServiceToken, reason string, abuseScore uint32) error
}

// MonitorStateStore is the single-row cursor capability used by the
// monitor pipeline.
type MonitorStateStore interface {
	// LastProcessedHeight returns the persisted cursor, or ok=false if
	// none has ever been written.
	LastProcessedHeight(ctx context.Context) (height uint64, ok bool, err error)

	// SetLastProcessedHeight unconditionally overwrites the cursor.
	SetLastProcessedHeight(ctx context.Context, height uint64) error

	// RecordPoll timestamps a monitor iteration and records its error (nil
	// on success) so the health endpoint can report monitor liveness.
	RecordPoll(ctx context.Context, pollErr error) error

	// LastPoll returns the timestamp and error message (if any) of the
	// most recent RecordPoll call.
	LastPoll(ctx context.Context) (at time.Time, errMsg string, ok bool, err error)
}

// Store bundles all three capability sets, the shape the application
// handle actually depends on.
type Store interface {
	PaymentStore
	TokenStore
	MonitorStateStore
	Close() error
}
