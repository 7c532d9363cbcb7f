// Package httpapi exposes the gateway's two HTTP surfaces: a public
// router (redeem, token lookup) meant to be reachable from the internet,
// and an internal router (metrics, healthz, token revocation) meant to
// be bound to a loopback address or a Unix socket only.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/monero-gateway/internal/redeem"
	"github.com/synnergy-labs/monero-gateway/internal/storage"
	"github.com/synnergy-labs/monero-gateway/internal/telemetry"
)

// API holds the dependencies every handler needs.
type API struct {
	engine *redeem.Engine
	store  storage.Store
	tel    *telemetry.Telemetry
	log    *logrus.Entry
}

// New builds an API. tel may be nil, in which case metrics and request
// logging are skipped and the internal router has no /metrics route.
func New(engine *redeem.Engine, store storage.Store, tel *telemetry.Telemetry) *API {
	var log *logrus.Entry
	if tel != nil {
		log = tel.Log.WithField("component", "httpapi")
	} else {
		l := logrus.New()
		log = logrus.NewEntry(l)
	}
	return &API{engine: engine, store: store, tel: tel, log: log}
}

// PublicRouter serves the two client-facing endpoints.
func (a *API) PublicRouter() http.Handler {
	r := mux.NewRouter()
	if a.tel != nil {
		r.Use(RequestLogger(a.tel.Log))
	}
	r.Use(JSONHeaders)
	r.HandleFunc("/api/v1/redeem", a.Redeem).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/token/{token_hex}", a.GetToken).Methods(http.MethodGet)
	return r
}

// InternalRouter serves operator-only endpoints: it must never be
// exposed beyond a loopback address or a Unix socket.
func (a *API) InternalRouter() http.Handler {
	r := mux.NewRouter()
	if a.tel != nil {
		r.Use(RequestLogger(a.tel.Log))
	}
	r.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/token/{token_hex}/revoke", a.RevokeToken).Methods(http.MethodPost)
	if a.tel != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.tel.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}
