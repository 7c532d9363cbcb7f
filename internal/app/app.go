// Package app wires the gateway's storage, admission layer, redeem
// engine, monitor pipeline and telemetry into a single handle shared by
// the HTTP layer and the cmd entrypoint.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/monero-gateway/internal/admission"
	"github.com/synnergy-labs/monero-gateway/internal/config"
	"github.com/synnergy-labs/monero-gateway/internal/httpapi"
	"github.com/synnergy-labs/monero-gateway/internal/monitor"
	"github.com/synnergy-labs/monero-gateway/internal/redeem"
	"github.com/synnergy-labs/monero-gateway/internal/storage"
	"github.com/synnergy-labs/monero-gateway/internal/telemetry"
	"github.com/synnergy-labs/monero-gateway/internal/walletrpc"
)

// App is the fully wired gateway, constructed once at boot.
type App struct {
	cfg       *config.Config
	Store     storage.Store
	Admission *admission.Layer
	Engine    *redeem.Engine
	Monitor   *monitor.Monitor
	Telemetry *telemetry.Telemetry
	API       *httpapi.API
}

// New opens storage, prewarms the admission layer, and wires every
// component together. It does not start the monitor goroutine or any
// HTTP listener; call Run for that.
func New(cfg *config.Config) (*App, error) {
	tel := telemetry.New(parseLevel(cfg.Logging.Level))

	store, err := storage.Open(cfg.Storage.URL)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := admission.New(admission.Config{
		BloomEntries:  cfg.API.PidBloom.Entries,
		BloomFPRate:   cfg.API.PidBloom.FPRate,
		CacheCapacity: cfg.API.PidCache.Capacity,
		CacheTTL:      cfg.CacheTTL(),
	})
	if err := admission.Prewarm(context.Background(), a, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("prewarm admission layer: %w", err)
	}

	engine := redeem.New(a, store, tel)

	rpcClient := walletrpc.NewClient(cfg.Monitor.RPC.URL, &http.Client{Timeout: 10 * time.Second})
	mon := monitor.New(monitor.Config{
		PollInterval:     cfg.PollInterval(),
		MinConfirmations: cfg.Monitor.MinConfirmations,
		MinPaymentAmount: cfg.Monitor.MinPaymentAmount,
		StartHeight:      cfg.Monitor.StartHeight,
	}, rpcClient, store, a, tel.Log.WithField("component", "monitor")).WithTelemetry(tel)

	api := httpapi.New(engine, store, tel)

	return &App{
		cfg:       cfg,
		Store:     store,
		Admission: a,
		Engine:    engine,
		Monitor:   mon,
		Telemetry: tel,
		API:       api,
	}, nil
}

// Run starts the monitor goroutine and both HTTP listeners (whichever
// are configured) and blocks until ctx is cancelled, then shuts
// everything down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	go func() {
		if err := a.Monitor.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("monitor: %w", err)
		}
	}()

	var servers []*http.Server
	if a.cfg.API.Public.Bind != "" {
		srv, err := a.listenAndServe(a.cfg.API.Public.Bind, a.API.PublicRouter(), errCh, "public")
		if err != nil {
			return err
		}
		servers = append(servers, srv)
	}
	if a.cfg.API.Internal.Bind != "" {
		srv, err := a.listenAndServe(a.cfg.API.Internal.Bind, a.API.InternalRouter(), errCh, "internal")
		if err != nil {
			return err
		}
		servers = append(servers, srv)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.Telemetry.Log.WithError(err).Error("component failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	return a.Store.Close()
}

func parseLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// listenAndServe binds addr (a TCP host:port, or a path ending in
// ".sock" for a Unix domain socket) and serves handler in a goroutine,
// forwarding any non-graceful error to errCh.
func (a *App) listenAndServe(addr string, handler http.Handler, errCh chan<- error, name string) (*http.Server, error) {
	network := "tcp"
	if strings.HasSuffix(addr, ".sock") {
		network = "unix"
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s (%s): %w", name, addr, err)
	}
	srv := &http.Server{Handler: handler}
	a.Telemetry.Log.WithFields(map[string]any{"listener": name, "addr": addr}).Info("listening")
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
	return srv, nil
}
