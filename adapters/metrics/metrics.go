// Package metrics provides Prometheus metrics collection for meterpay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for meterpay.
type Collector struct {
	// Usage metrics
	UsageReports prometheus.Counter
	UsageOwed    prometheus.Counter

	// Credits metrics
	Deposits    prometheus.Counter
	Withdrawals prometheus.Counter

	// Settlement metrics
	Settlements       *prometheus.CounterVec
	SettledAmount     prometheus.Counter
	FeesCollected     prometheus.Counter
	RewardsMinted     prometheus.Counter
	Overdrafts        prometheus.Counter
	ExceededApprovals prometheus.Counter
	BatchSize         prometheus.Histogram

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return &Collector{
		UsageReports: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "usage_reports_total",
			Help:      "Total number of accepted usage reports",
		}),
		UsageOwed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "usage_owed_units_total",
			Help:      "Total debt accrued from usage reports, in ledger units",
		}),
		Deposits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "credit_deposits_total",
			Help:      "Total number of credit deposits",
		}),
		Withdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "credit_withdrawals_total",
			Help:      "Total number of credit withdrawals",
		}),
		Settlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "settlements_total",
			Help:      "Total number of settlement calls by result",
		}, []string{"result"}),
		SettledAmount: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "settled_units_total",
			Help:      "Total settled amount moved from credits to sellers, in ledger units",
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "fees_collected_units_total",
			Help:      "Total network fees collected, in ledger units",
		}),
		RewardsMinted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "rewards_minted_units_total",
			Help:      "Total reward tokens minted to sellers",
		}),
		Overdrafts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "overdrafts_total",
			Help:      "Settlements where buyer credits were the binding constraint",
		}),
		ExceededApprovals: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "exceeded_approvals_total",
			Help:      "Settlements where the approval cap was the binding constraint",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "meterpay",
			Name:      "settlement_batch_size",
			Help:      "Number of working-set buyers visited per batch settlement",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed",
		}, []string{"method", "path", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meterpay",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path", "status"}),
		ConfigReloads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "config_reloads_total",
			Help:      "Total number of successful config reloads",
		}),
		ConfigReloadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "meterpay",
			Name:      "config_reload_errors_total",
			Help:      "Total number of failed config reloads",
		}),
	}
}
