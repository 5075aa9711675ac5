package walletcore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the wallet daemon
type Metrics struct {
	// Bridge connection metrics
	ConnectedClients prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	BridgeRequests   *prometheus.CounterVec

	// Authentication metrics
	AuthChallengesIssued prometheus.Counter
	AuthAttemptsTotal    prometheus.Counter
	AuthOutcomes         *prometheus.CounterVec

	// Signing metrics
	SignOperations *prometheus.CounterVec

	// Transfer metrics
	TransferAttemptsTotal   prometheus.Counter
	TransferAttemptsSuccess prometheus.Counter
	TransferAttemptsFail    prometheus.Counter
}

// NewMetrics initializes and registers Prometheus metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry initializes and registers Prometheus metrics with a custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "walletcore_connected_clients",
			Help: "The current number of connected bridge clients",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "walletcore_connections_total",
			Help: "The total number of bridge connections made since daemon start",
		}),
		BridgeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletcore_bridge_requests_total",
				Help: "The total number of bridge route invocations",
			},
			[]string{"route", "status"},
		),
		AuthChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "walletcore_auth_challenges_issued_total",
			Help: "The total number of sign-in challenges issued",
		}),
		AuthAttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "walletcore_auth_attempts_total",
			Help: "The total number of login verification attempts",
		}),
		AuthOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletcore_auth_outcomes_total",
				Help: "Login verification attempts by outcome",
			},
			[]string{"outcome"},
		),
		SignOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletcore_sign_operations_total",
				Help: "Signing operations by type (personal, typed_data)",
			},
			[]string{"type"},
		),
		TransferAttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "walletcore_transfer_attempts_total",
			Help: "The total number of transfer attempts",
		}),
		TransferAttemptsSuccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "walletcore_transfer_attempts_success",
			Help: "The total number of successful transfer attempts",
		}),
		TransferAttemptsFail: factory.NewCounter(prometheus.CounterOpts{
			Name: "walletcore_transfer_attempts_fail",
			Help: "The total number of failed transfer attempts",
		}),
	}
}
