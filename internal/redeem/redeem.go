// Package redeem implements the public redeem operation: exchanging a
// client-presented Payment ID for the deterministic Service Token, if and
// only if a matching confirmed payment has been claimed exactly once.
package redeem

import (
	"context"
	"errors"
	"time"

	"github.com/synnergy-labs/monero-gateway/internal/admission"
	"github.com/synnergy-labs/monero-gateway/internal/errs"
	"github.com/synnergy-labs/monero-gateway/internal/ids"
	"github.com/synnergy-labs/monero-gateway/internal/storage"
	"github.com/synnergy-labs/monero-gateway/internal/telemetry"
)

// Status enumerates the four outcomes of Redeem.
type Status int

const (
	StatusSuccess Status = iota
	StatusAlreadyClaimed
	StatusNotFound
	StatusBadRequest
)

// Result is the outcome of a redeem request.
type Result struct {
	Status  Status
	Token   ids.ServiceToken
	Amount  int64
	HasBody bool // true for Success/AlreadyClaimed, which carry Token/Amount
}

// Engine orchestrates admission, atomic storage claim, and token issuance.
type Engine struct {
	admission *admission.Layer
	store     storage.Store
	tel       *telemetry.Telemetry
}

// New builds a redeem Engine over the given admission layer and storage
// backend. tel may be nil, in which case admission metrics are not
// recorded.
func New(a *admission.Layer, s storage.Store, tel *telemetry.Telemetry) *Engine {
	return &Engine{admission: a, store: s, tel: tel}
}

// Redeem implements the algorithm of the redeem engine: parse, admit,
// atomically claim, derive/insert the token. It is safe to call
// concurrently for the same or different PIDs; two concurrent redeems of
// the same unclaimed PID always resolve to exactly one Success and any
// number of AlreadyClaimed results, all carrying the identical token.
func (e *Engine) Redeem(ctx context.Context, pidHex string) (Result, error) {
	pid, err := ids.ParsePaymentId(pidHex)
	if err != nil {
		return Result{Status: StatusBadRequest}, nil
	}

	switch e.admission.Check(pid) {
	case admission.DecisionReject:
		if e.tel != nil {
			e.tel.AdmissionBloomAbsent.Inc()
		}
		return Result{Status: StatusNotFound}, nil
	case admission.DecisionCacheHit:
		// proceed straight to the atomic claim below
	case admission.DecisionCheckStorage:
		if _, err := e.store.GetPayment(ctx, pid); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				if e.tel != nil {
					e.tel.AdmissionFalsePositive.Inc()
				}
				return Result{Status: StatusNotFound}, nil
			}
			return Result{}, err
		}
		// A genuine PID resolved via storage: admit it so subsequent
		// lookups short-circuit through the cache/Bloom.
		e.admission.Insert(pid)
	}

	claim, err := e.store.ClaimPayment(ctx, pid)
	if err != nil {
		return Result{}, err
	}

	switch claim.Outcome {
	case storage.ClaimNotFound:
		return Result{Status: StatusNotFound}, nil

	case storage.ClaimClaimed:
		token := ids.DeriveServiceToken(pid, claim.Payment.Txid)
		err := e.store.InsertToken(ctx, storage.TokenRecord{
			Token:    token,
			Pid:      pid,
			Amount:   claim.Payment.Amount,
			IssuedAt: time.Now().UTC(),
		})
		if err != nil && !errors.Is(err, errs.ErrUniqueViolation) {
			return Result{}, err
		}
		if errors.Is(err, errs.ErrUniqueViolation) {
			existing, rerr := e.store.GetToken(ctx, token)
			if rerr != nil {
				return Result{}, rerr
			}
			e.admission.Insert(pid)
			return Result{Status: StatusSuccess, Token: existing.Token, Amount: existing.Amount, HasBody: true}, nil
		}
		e.admission.Insert(pid)
		return Result{Status: StatusSuccess, Token: token, Amount: claim.Payment.Amount, HasBody: true}, nil

	case storage.ClaimAlreadyClaimed:
		token := ids.DeriveServiceToken(pid, claim.Payment.Txid)
		existing, err := e.store.GetToken(ctx, token)
		if errors.Is(err, errs.ErrNotFound) {
			// Token row missing for a claimed payment: heal by inserting it.
			if err := e.store.InsertToken(ctx, storage.TokenRecord{
				Token:    token,
				Pid:      pid,
				Amount:   claim.Payment.Amount,
				IssuedAt: time.Now().UTC(),
			}); err != nil && !errors.Is(err, errs.ErrUniqueViolation) {
				return Result{}, err
			}
			existing, err = e.store.GetToken(ctx, token)
			if err != nil {
				return Result{}, err
			}
		} else if err != nil {
			return Result{}, err
		}
		e.admission.Insert(pid)
		return Result{Status: StatusAlreadyClaimed, Token: existing.Token, Amount: existing.Amount, HasBody: true}, nil

	default:
		return Result{}, errs.ErrStorageFatal
	}
}
