package payment

import "github.com/prometheus/client_golang/prometheus"

var (
	reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Payment landings reconciled, by gateway and outcome.",
		},
		[]string{"gateway", "outcome"},
	)

	// finalizations counts finalize attempts; result is ok, error or replay
	// (latch already held, no call made).
	finalizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_finalize_total",
			Help: "Booking finalize calls, by booking type, gateway and result.",
		},
		[]string{"booking_type", "gateway", "result"},
	)
)

func init() {
	prometheus.MustRegister(reconciliations, finalizations)
}

func gatewayLabel(g Gateway) string {
	if g == GatewayUnknown {
		return "unknown"
	}
	return string(g)
}
