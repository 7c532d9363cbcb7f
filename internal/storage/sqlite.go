package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/synnergy-labs/monero-gateway/internal/errs"
	"github.com/synnergy-labs/monero-gateway/internal/ids"
)

// SQLiteStore implements Store against an embedded SQLite database. The
// connection is opened with WAL journaling and NORMAL synchronous mode so
// the gateway can absorb bursty ingestion without fsyncing every write;
// the accepted trade-off is that only an OS-level crash (not a process
// crash) can lose the last WAL frames.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates (if needed) the database directory and file at path,
// applies production tuning pragmas, and runs the schema migration.
func Open(path string) (*SQLiteStore, error) {
	target := path
	if path == ":memory:" {
		target = "file::memory:?cache=shared"
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("storage: create data dir: %w", err)
			}
		}
		target = fmt.Sprintf("file:%s", path)
	}
	sep := "?"
	if path == ":memory:" {
		sep = "&"
	}
	dsn := fmt.Sprintf("%s%s_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", target, sep)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	// SQLite allows only one writer at a time; serializing through a
	// single connection avoids SQLITE_BUSY under our own load rather than
	// surfacing it as a transient error on every other write.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS payments (
	pid          BLOB PRIMARY KEY,
	txid         BLOB NOT NULL,
	amount       INTEGER NOT NULL,
	block_height INTEGER NOT NULL,
	received_at  INTEGER NOT NULL,
	status       INTEGER NOT NULL DEFAULT 0,
	claimed_at   INTEGER
);

CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);

CREATE TABLE IF NOT EXISTS service_tokens (
	token         BLOB PRIMARY KEY,
	pid           BLOB NOT NULL UNIQUE,
	amount        INTEGER NOT NULL,
	issued_at     INTEGER NOT NULL,
	revoked_at    INTEGER,
	abuse_score   INTEGER NOT NULL DEFAULT 0,
	revoke_reason TEXT,
	FOREIGN KEY (pid) REFERENCES payments(pid)
);

CREATE TABLE IF NOT EXISTS monitor_state (
	id                INTEGER PRIMARY KEY CHECK (id = 0),
	last_height       INTEGER,
	last_poll_at      INTEGER,
	last_poll_error   TEXT
);
`

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("%w: schema migration: %v", errs.ErrStorageFatal, err)
	}
	return nil
}

// classify maps a low-level sqlite3 error into the shared error taxonomy.
// Busy/locked errors are transient; anything else that escapes a write is
// treated as fatal, per the contract's failure semantics.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy") {
		return fmt.Errorf("%w: %v", errs.ErrStorageTransient, err)
	}
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", errs.ErrUniqueViolation, err)
	}
	return fmt.Errorf("%w: %v", errs.ErrStorageFatal, err)
}

// --- PaymentStore ---

func (s *SQLiteStore) InsertPayment(ctx context.Context, p Payment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (pid, txid, amount, block_height, received_at, status, claimed_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(pid) DO NOTHING
	`, p.Pid.Bytes(), p.Txid[:], p.Amount, p.BlockHeight, p.ReceivedAt.Unix(), StatusUnclaimed)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *SQLiteStore) GetPayment(ctx context.Context, pid ids.PaymentId) (Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pid, txid, amount, block_height, received_at, status, claimed_at
		FROM payments WHERE pid = ?
	`, pid.Bytes())
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, errs.ErrNotFound
	}
	if err != nil {
		return Payment{}, classify(err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (Payment, error) {
	var (
		pidBytes, txidBytes []byte
		amount              int64
		height              uint64
		receivedAt          int64
		status              int
		claimedAt           sql.NullInt64
	)
	if err := row.Scan(&pidBytes, &txidBytes, &amount, &height, &receivedAt, &status, &claimedAt); err != nil {
		return Payment{}, err
	}
	pid, err := ids.PaymentIdFromBytes(pidBytes)
	if err != nil {
		return Payment{}, err
	}
	var p Payment
	p.Pid = pid
	copy(p.Txid[:], txidBytes)
	p.Amount = amount
	p.BlockHeight = height
	p.ReceivedAt = time.Unix(receivedAt, 0).UTC()
	p.Status = PaymentStatus(status)
	if claimedAt.Valid {
		t := time.Unix(claimedAt.Int64, 0).UTC()
		p.ClaimedAt = &t
	}
	return p, nil
}

// ClaimPayment implements the central correctness guarantee of the
// system as a single atomic UPDATE ... RETURNING; a zero-row update is
// disambiguated by a follow-up SELECT.
func (s *SQLiteStore) ClaimPayment(ctx context.Context, pid ids.PaymentId) (ClaimResult, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		UPDATE payments SET status = ?, claimed_at = ?
		WHERE pid = ? AND status = ?
		RETURNING pid, txid, amount, block_height, received_at, status, claimed_at
	`, StatusClaimed, now.Unix(), pid.Bytes(), StatusUnclaimed)

	p, err := scanPayment(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing, getErr := s.GetPayment(ctx, pid)
		if errors.Is(getErr, errs.ErrNotFound) {
			return ClaimResult{Outcome: ClaimNotFound}, nil
		}
		if getErr != nil {
			return ClaimResult{}, getErr
		}
		return ClaimResult{Outcome: ClaimAlreadyClaimed, Payment: existing}, nil
	case err != nil:
		return ClaimResult{}, classify(err)
	default:
		return ClaimResult{Outcome: ClaimClaimed, Payment: p}, nil
	}
}

func (s *SQLiteStore) StreamPaymentIds(ctx context.Context, fn func(ids.PaymentId) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT pid FROM payments`)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return classify(err)
		}
		pid, err := ids.PaymentIdFromBytes(raw)
		if err != nil {
			continue
		}
		if err := fn(pid); err != nil {
			return err
		}
	}
	return classify(rows.Err())
}

// --- TokenStore ---

func (s *SQLiteStore) InsertToken(ctx context.Context, t TokenRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_tokens (token, pid, amount, issued_at, revoked_at, abuse_score, revoke_reason)
		VALUES (?, ?, ?, ?, NULL, 0, NULL)
	`, t.Token.Bytes(), t.Pid.Bytes(), t.Amount, t.IssuedAt.Unix())
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *SQLiteStore) GetToken(ctx context.Context, token ids.ServiceToken) (TokenRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, pid, amount, issued_at, revoked_at, abuse_score, revoke_reason
		FROM service_tokens WHERE token = ?
	`, token.Bytes())
	return scanToken(row)
}

func (s *SQLiteStore) GetTokenByPid(ctx context.Context, pid ids.PaymentId) (TokenRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, pid, amount, issued_at, revoked_at, abuse_score, revoke_reason
		FROM service_tokens WHERE pid = ?
	`, pid.Bytes())
	return scanToken(row)
}

func scanToken(row rowScanner) (TokenRecord, error) {
	var (
		tokenBytes, pidBytes []byte
		amount               int64
		issuedAt             int64
		revokedAt            sql.NullInt64
		abuseScore           uint32
		revokeReason         sql.NullString
	)
	if err := row.Scan(&tokenBytes, &pidBytes, &amount, &issuedAt, &revokedAt, &abuseScore, &revokeReason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TokenRecord{}, errs.ErrNotFound
		}
		return TokenRecord{}, classify(err)
	}
	tok, err := ids.ServiceTokenFromBytes(tokenBytes)
	if err != nil {
		return TokenRecord{}, err
	}
	pid, err := ids.PaymentIdFromBytes(pidBytes)
	if err != nil {
		return TokenRecord{}, err
	}
	rec := TokenRecord{
		Token:      tok,
		Pid:        pid,
		Amount:     amount,
		IssuedAt:   time.Unix(issuedAt, 0).UTC(),
		AbuseScore: abuseScore,
	}
	if revokedAt.Valid {
		t := time.Unix(revokedAt.Int64, 0).UTC()
		rec.RevokedAt = &t
	}
	if revokeReason.Valid {
		rec.RevokeReason = &revokeReason.String
	}
	return rec, nil
}

func (s *SQLiteStore) RevokeToken(ctx context.Context, token ids.ServiceToken, reason string, abuseScore uint32) error {
	now := time.Now().UTC().Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE service_tokens
		SET revoked_at = COALESCE(revoked_at, ?), revoke_reason = ?, abuse_score = ?
		WHERE token = ?
	`, now, reason, abuseScore, token.Bytes())
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- MonitorStateStore ---

func (s *SQLiteStore) LastProcessedHeight(ctx context.Context) (uint64, bool, error) {
	var h sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT last_height FROM monitor_state WHERE id = 0`).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify(err)
	}
	if !h.Valid {
		return 0, false, nil
	}
	return uint64(h.Int64), true, nil
}

func (s *SQLiteStore) SetLastProcessedHeight(ctx context.Context, height uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_state (id, last_height) VALUES (0, ?)
		ON CONFLICT(id) DO UPDATE SET last_height = excluded.last_height
	`, height)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *SQLiteStore) RecordPoll(ctx context.Context, pollErr error) error {
	var errMsg *string
	if pollErr != nil {
		msg := pollErr.Error()
		errMsg = &msg
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_state (id, last_poll_at, last_poll_error) VALUES (0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_poll_at = excluded.last_poll_at, last_poll_error = excluded.last_poll_error
	`, time.Now().UTC().Unix(), errMsg)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *SQLiteStore) LastPoll(ctx context.Context) (time.Time, string, bool, error) {
	var at sql.NullInt64
	var msg sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT last_poll_at, last_poll_error FROM monitor_state WHERE id = 0`).Scan(&at, &msg)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, "", false, nil
	}
	if err != nil {
		return time.Time{}, "", false, classify(err)
	}
	if !at.Valid {
		return time.Time{}, "", false, nil
	}
	return time.Unix(at.Int64, 0).UTC(), msg.String, true, nil
}
