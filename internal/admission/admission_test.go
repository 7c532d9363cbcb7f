package admission

import (
	"context"
	"testing"
	"time"

	"github.com/synnergy-labs/monero-gateway/internal/ids"
)

func mustPid(t *testing.T, s string) ids.PaymentId {
	t.Helper()
	p, err := ids.ParsePaymentId(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return p
}

func TestBloomHasNoFalseNegatives(t *testing.T) {
	l := New(Config{BloomEntries: 1000, BloomFPRate: 0.01})
	inserted := make([]ids.PaymentId, 0, 256)
	for i := 0; i < 256; i++ {
		pid, err := ids.GeneratePaymentId(nil)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		l.Insert(pid)
		inserted = append(inserted, pid)
	}
	for _, pid := range inserted {
		if l.Check(pid) == DecisionReject {
			t.Fatalf("false negative for inserted pid %s", pid)
		}
	}
}

func TestCheckRejectsUnknownPid(t *testing.T) {
	l := New(Config{BloomEntries: 1000, BloomFPRate: 0.001})
	unknown := mustPid(t, "ffffffffffffffff")
	// Extremely unlikely to collide given an empty filter and a tiny FP rate.
	if d := l.Check(unknown); d != DecisionReject {
		t.Fatalf("decision = %v, want DecisionReject", d)
	}
}

func TestCheckCacheHitAfterInsert(t *testing.T) {
	l := New(Config{BloomEntries: 1000, BloomFPRate: 0.01, CacheTTL: time.Minute})
	pid := mustPid(t, "0123456789abcdef")
	l.Insert(pid)
	if d := l.Check(pid); d != DecisionCacheHit {
		t.Fatalf("decision = %v, want DecisionCacheHit", d)
	}
}

func TestCacheEntryExpires(t *testing.T) {
	l := New(Config{BloomEntries: 1000, BloomFPRate: 0.01, CacheTTL: 20 * time.Millisecond})
	pid := mustPid(t, "0123456789abcdef")
	l.Insert(pid)
	if d := l.Check(pid); d != DecisionCacheHit {
		t.Fatalf("expected cache hit immediately after insert, got %v", d)
	}
	time.Sleep(50 * time.Millisecond)
	// Bloom still remembers the PID (no false negatives); only the cache entry expires.
	if d := l.Check(pid); d != DecisionCheckStorage {
		t.Fatalf("decision after TTL expiry = %v, want DecisionCheckStorage", d)
	}
}

type fakeSource struct {
	pids []ids.PaymentId
}

func (f fakeSource) StreamPaymentIds(_ context.Context, fn func(ids.PaymentId) error) error {
	for _, p := range f.pids {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func TestPrewarmInsertsAllKnownPids(t *testing.T) {
	l := New(Config{BloomEntries: 1000, BloomFPRate: 0.01})
	src := fakeSource{pids: []ids.PaymentId{
		mustPid(t, "0123456789abcdef"),
		mustPid(t, "fedcba9876543210"),
	}}
	if err := Prewarm(context.Background(), l, src); err != nil {
		t.Fatalf("prewarm: %v", err)
	}
	for _, p := range src.pids {
		if l.Check(p) != DecisionCacheHit {
			t.Fatalf("pid %s not prewarmed into cache", p)
		}
	}
}
