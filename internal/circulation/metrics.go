package circulation

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"librarydesk/internal/apperr"
)

var (
	// Labels: result (ok or the failure code)
	borrowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "borrow_total",
		Help:      "Borrow attempts by result",
	}, []string{"result"})

	returnTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "return_total",
		Help:      "Return attempts by result",
	}, []string{"result"})

	finesCollected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "library",
		Name:      "fines_collected_cents_total",
		Help:      "Fines charged on returns, in minor currency units",
	})

	// Labels: op (borrow, return, renew)
	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "library",
		Name:      "circulation_duration_seconds",
		Help:      "Latency of circulation transactions",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"op"})
)

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "error"
}
