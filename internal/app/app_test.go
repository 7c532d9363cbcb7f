package app

import (
	"context"
	"testing"
	"time"

	"github.com/synnergy-labs/monero-gateway/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Storage.URL = ":memory:"
	cfg.Monitor.RPC.URL = "http://127.0.0.1:1/json_rpc" // unreachable; monitor errors are non-fatal
	cfg.Monitor.PollIntervalS = 1
	cfg.API.Internal.Bind = "127.0.0.1:0"
	cfg.API.PidBloom.Entries = 1000
	cfg.API.PidBloom.FPRate = 0.01
	cfg.Logging.Level = "panic"
	return &cfg
}

func TestNewWiresEveryComponent(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Store.Close()
	if a.Store == nil || a.Admission == nil || a.Engine == nil || a.Monitor == nil || a.API == nil {
		t.Fatalf("App has a nil component: %+v", a)
	}
}

func TestRunShutsDownOnContextCancel(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not shut down after context cancellation")
	}
}
