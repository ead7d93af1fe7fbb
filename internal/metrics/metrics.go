package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics exposes the ledger's operational counters.
type Metrics struct {
	PaymentsRecorded    *prometheus.CounterVec
	PartialWrites       prometheus.Counter
	CascadeStepFailures *prometheus.CounterVec
	RepairsApplied      prometheus.Counter
	OverdueInstallments prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		PaymentsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinvia",
			Subsystem: "ledger",
			Name:      "payments_recorded_total",
			Help:      "Payments recorded against finances, by method.",
		}, []string{"method"}),
		PartialWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clinvia",
			Subsystem: "ledger",
			Name:      "partial_writes_total",
			Help:      "Settlements that reached only one of the two finance copies.",
		}),
		CascadeStepFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinvia",
			Subsystem: "ledger",
			Name:      "cascade_step_failures_total",
			Help:      "Failed steps during cascade finance deletion, by step.",
		}, []string{"step"}),
		RepairsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clinvia",
			Subsystem: "ledger",
			Name:      "copy_repairs_total",
			Help:      "Finance copies repaired by the background repair job.",
		}),
		OverdueInstallments: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinvia",
			Subsystem: "ledger",
			Name:      "overdue_installments",
			Help:      "Overdue installments found by the last sweep.",
		}),
	}
}

// Module provides the metrics registry.
var Module = fx.Module("metrics",
	fx.Provide(New),
)
