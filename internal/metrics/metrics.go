package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoundsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_rounds_total",
			Help: "Resolved rounds by difficulty and result",
		},
		[]string{"difficulty", "result"},
	)
	ForcedMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_forced_moves_total",
			Help: "Inputs synthesized by the countdown, by phase",
		},
		[]string{"phase"},
	)
	InvalidChoices = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_invalid_choices_total",
			Help: "Rejected player inputs, by phase",
		},
		[]string{"phase"},
	)
	LedgerFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rps_ledger_failures_total",
			Help: "Sessions that fell back to an in-memory score",
		},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rps_active_sessions",
			Help: "Sessions currently hosted by the bot",
		},
	)
)

func init() {
	prometheus.MustRegister(RoundsResolved)
	prometheus.MustRegister(ForcedMoves)
	prometheus.MustRegister(InvalidChoices)
	prometheus.MustRegister(LedgerFailures)
	prometheus.MustRegister(ActiveSessions)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
