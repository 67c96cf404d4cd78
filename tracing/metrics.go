package tracing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// withoutRuntimeCounter tracks traced calls that ran without a runtime in the
// context. A steady rate usually means native.WithRuntime was never called on
// that code path.
//
// Metric name: amp_tracing_without_runtime_total
// Labels:
//   - span_name: The name of the span that was attempted
//
// Example PromQL query:
//
//	sum by (span_name) (rate(amp_tracing_without_runtime_total[5m]))
var withoutRuntimeCounter = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Namespace: "amp",
		Subsystem: "tracing",
		Name:      "without_runtime_total",
		Help:      "Total number of traced calls executed without a runtime in context",
	},
	[]string{"span_name"},
)
