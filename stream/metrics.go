package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeMalformed = "malformed"
	outcomeLate      = "late"
)

// itemsCounter counts stream items by what happened to them.
//
// Metric name: amp_stream_items_total
// Labels:
//   - outcome: delivered, failed, malformed or late
var itemsCounter = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Namespace: "amp",
		Subsystem: "stream",
		Name:      "items_total",
		Help:      "Total number of native stream items, by outcome",
	},
	[]string{"outcome"},
)
