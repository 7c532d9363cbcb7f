package walletrpc

import (
	"context"
	"sort"
	"sync"
)

// Fake is a deterministic in-memory WalletRPC double. Tests seed it with
// synthetic transfers and advance the simulated tip independently of
// what has been fed in, so reorg and confirmation-gating behavior can be
// exercised without a live daemon.
type Fake struct {
	mu        sync.Mutex
	height    uint64
	transfers []Transfer
}

// NewFake builds a Fake with the given starting tip height.
func NewFake(height uint64) *Fake {
	return &Fake{height: height}
}

// SetHeight moves the simulated chain tip.
func (f *Fake) SetHeight(h uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height = h
}

// AddTransfer appends a synthetic incoming transfer.
func (f *Fake) AddTransfer(t Transfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, t)
}

func (f *Fake) GetHeight(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height, nil
}

// GetIncomingTransfers never reports a skipped entry: synthetic
// transfers are constructed already-decoded.
func (f *Fake) GetIncomingTransfers(_ context.Context, fromHeight, toHeight uint64) ([]Transfer, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Transfer, 0)
	for _, t := range f.transfers {
		if t.Height >= fromHeight && t.Height <= toHeight {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out, 0, nil
}
