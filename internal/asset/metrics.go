package asset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_asset_upload_bytes_total",
		Help: "Bytes accepted into asset storage.",
	})
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_asset_upload_total",
		Help: "Asset uploads by outcome.",
	}, []string{"result"})
)
