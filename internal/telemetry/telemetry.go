// Package telemetry wires a dedicated Prometheus registry and a
// structured logrus logger for the gateway, adapted from the node's
// health-logging component to the gateway's own counters.
package telemetry

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Telemetry bundles the metrics registry and logger shared by every
// component of the gateway.
type Telemetry struct {
	Log      *logrus.Logger
	registry *prometheus.Registry

	RedeemTotal         *prometheus.CounterVec
	AdmissionBloomAbsent  prometheus.Counter
	AdmissionFalsePositive prometheus.Counter
	InvalidPidTotal     prometheus.Counter
	InvalidAmountTotal  prometheus.Counter
	DustTotal           prometheus.Counter
	PaymentsPersisted   prometheus.Counter
	TokensIssued        prometheus.Counter
	TokensRevoked       prometheus.Counter
	MonitorCursorHeight prometheus.Gauge
	MonitorPollErrors   prometheus.Counter
}

// New builds a Telemetry instance with a fresh registry, a JSON-formatted
// logrus logger at the given level, and every gauge/counter registered.
func New(level logrus.Level) *Telemetry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stderr)
	log.SetLevel(level)

	reg := prometheus.NewRegistry()
	t := &Telemetry{
		Log:      log,
		registry: reg,

		RedeemTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_redeem_total",
			Help: "Redeem requests by outcome status",
		}, []string{"status"}),

		AdmissionBloomAbsent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_admission_bloom_absent_total",
			Help: "Redeem requests rejected because the bloom filter reports the pid absent",
		}),
		AdmissionFalsePositive: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_admission_bloom_false_positive_total",
			Help: "Bloom-positive requests that storage confirmed were not a known pid",
		}),
		InvalidPidTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_monitor_invalid_pid_total",
			Help: "Incoming transfers skipped for lacking a usable payment id",
		}),
		InvalidAmountTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_monitor_invalid_amount_total",
			Help: "Incoming transfers skipped for an invalid amount",
		}),
		DustTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_monitor_dust_total",
			Help: "Incoming transfers skipped as dust",
		}),
		PaymentsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_payments_persisted_total",
			Help: "Confirmed payments persisted by the monitor",
		}),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_tokens_issued_total",
			Help: "Service tokens issued by the redeem engine",
		}),
		TokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_tokens_revoked_total",
			Help: "Service tokens revoked via the admin endpoint",
		}),
		MonitorCursorHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_monitor_cursor_height",
			Help: "Last block height fully processed by the monitor",
		}),
		MonitorPollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_monitor_poll_errors_total",
			Help: "Monitor poll iterations that returned an error",
		}),
	}

	reg.MustRegister(
		t.RedeemTotal,
		t.AdmissionBloomAbsent,
		t.AdmissionFalsePositive,
		t.InvalidPidTotal,
		t.InvalidAmountTotal,
		t.DustTotal,
		t.PaymentsPersisted,
		t.TokensIssued,
		t.TokensRevoked,
		t.MonitorCursorHeight,
		t.MonitorPollErrors,
	)
	return t
}

// Registry exposes the registry for the internal HTTP API's /metrics
// handler.
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}
