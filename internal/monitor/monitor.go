// Package monitor polls a monero-wallet-rpc endpoint for confirmed
// incoming transfers, validates and persists each one, and advances a
// durable cursor so a restart never reprocesses or skips a height.
package monitor

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/monero-gateway/internal/admission"
	"github.com/synnergy-labs/monero-gateway/internal/ids"
	"github.com/synnergy-labs/monero-gateway/internal/storage"
	"github.com/synnergy-labs/monero-gateway/internal/telemetry"
	"github.com/synnergy-labs/monero-gateway/internal/walletrpc"
)

// Config controls polling cadence and confirmation/dust policy.
type Config struct {
	PollInterval      time.Duration
	MinConfirmations  uint64
	MinPaymentAmount  int64
	StartHeight       uint64 // used only when no cursor has ever been persisted
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return c
}

// Monitor is the polling pipeline described above. It owns no goroutine
// until Run is called.
type Monitor struct {
	cfg       Config
	rpc       walletrpc.WalletRPC
	store     storage.Store
	admission *admission.Layer
	log       *logrus.Entry
	tel       *telemetry.Telemetry
}

// New builds a Monitor. log may be nil, in which case a discard logger
// is used.
func New(cfg Config, rpc walletrpc.WalletRPC, store storage.Store, a *admission.Layer, log *logrus.Entry) *Monitor {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Monitor{cfg: cfg.withDefaults(), rpc: rpc, store: store, admission: a, log: log}
}

// WithTelemetry attaches a Telemetry instance whose counters/gauges the
// monitor updates as it polls. Returns the receiver for chaining.
func (m *Monitor) WithTelemetry(t *telemetry.Telemetry) *Monitor {
	m.tel = t
	return m
}

// Run blocks, polling every PollInterval until ctx is cancelled. Each
// tick's error is recorded via MonitorStateStore.RecordPoll but never
// stops the loop; only ctx cancellation does.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	err := m.poll(ctx)
	if recErr := m.store.RecordPoll(ctx, err); recErr != nil {
		m.log.WithError(recErr).Error("record poll state")
	}
	if err != nil {
		if m.tel != nil {
			m.tel.MonitorPollErrors.Inc()
		}
		m.log.WithError(err).Warn("monitor poll failed")
		return
	}
	if m.tel != nil {
		if height, ok, hErr := m.store.LastProcessedHeight(ctx); hErr == nil && ok {
			m.tel.MonitorCursorHeight.Set(float64(height))
		}
	}
}

// poll executes a single iteration: compute the safe height, fetch
// transfers in (cursor, safe_height], validate and persist each, and
// advance the cursor. It never advances the cursor past safe_height and
// never regresses it.
func (m *Monitor) poll(ctx context.Context) error {
	tip, err := m.rpc.GetHeight(ctx)
	if err != nil {
		return err
	}
	if tip < m.cfg.MinConfirmations {
		return nil // chain too short to have any confirmed height yet
	}
	safeHeight := tip - m.cfg.MinConfirmations

	cursor, ok, err := m.store.LastProcessedHeight(ctx)
	if err != nil {
		return err
	}
	if !ok {
		cursor = m.cfg.StartHeight
	}

	fromHeight := cursor
	if ok {
		fromHeight = cursor + 1
	}
	if fromHeight > safeHeight {
		return nil // nothing newly confirmed
	}

	transfers, skipped, err := m.rpc.GetIncomingTransfers(ctx, fromHeight, safeHeight)
	if err != nil {
		return err
	}
	if skipped > 0 {
		if m.tel != nil {
			m.tel.InvalidPidTotal.Add(float64(skipped))
		}
		m.log.WithField("count", skipped).Warn("rpc reported undecodable transfers")
	}
	if len(transfers) == 0 {
		return nil // never advance the cursor on an empty batch either
	}

	var maxObserved uint64
	haveObserved := false
	if ok {
		maxObserved = cursor
		haveObserved = true
	}
	for _, t := range transfers {
		if t.Height > safeHeight {
			continue // defensive: RPC returned past the requested window
		}
		if err := m.ingest(ctx, t); err != nil {
			return err // storage failure: leave the cursor so the batch is retried
		}
		if !haveObserved || t.Height > maxObserved {
			maxObserved = t.Height
			haveObserved = true
		}
	}
	if !haveObserved {
		return nil // every entry in the batch fell outside the safe window
	}

	newCursor := maxObserved
	if newCursor > safeHeight {
		newCursor = safeHeight
	}
	if ok && newCursor <= cursor {
		return nil // never regress
	}
	return m.store.SetLastProcessedHeight(ctx, newCursor)
}

// ingest validates and idempotently persists a single transfer. Invalid
// PIDs and dust are logged and skipped, never returned as errors: one
// malformed transfer must never stall the whole batch. A storage failure
// while persisting is returned so the caller keeps the cursor in place.
func (m *Monitor) ingest(ctx context.Context, t walletrpc.Transfer) error {
	pid, err := ids.PaymentIdFromBytes(t.PaymentID[:])
	if err != nil {
		if m.tel != nil {
			m.tel.InvalidPidTotal.Inc()
		}
		m.log.WithField("txid", t.Txid).Warn("transfer missing a usable payment id")
		return nil
	}
	if t.Amount <= 0 {
		if m.tel != nil {
			m.tel.InvalidAmountTotal.Inc()
		}
		m.log.WithFields(logrus.Fields{"pid": pid, "amount": t.Amount}).Warn("transfer has a non-positive amount")
		return nil
	}
	if t.Amount < m.cfg.MinPaymentAmount {
		if m.tel != nil {
			m.tel.DustTotal.Inc()
		}
		m.log.WithFields(logrus.Fields{"pid": pid, "amount": t.Amount}).Debug("dust transfer ignored")
		return nil
	}

	err = m.store.InsertPayment(ctx, storage.Payment{
		Pid:         pid,
		Txid:        t.Txid,
		Amount:      t.Amount,
		BlockHeight: t.Height,
		ReceivedAt:  time.Now().UTC(),
		Status:      storage.StatusUnclaimed,
	})
	if err != nil {
		m.log.WithError(err).WithField("pid", pid).Error("persist payment")
		return err
	}
	m.admission.Insert(pid)
	if m.tel != nil {
		m.tel.PaymentsPersisted.Inc()
	}
	return nil
}
