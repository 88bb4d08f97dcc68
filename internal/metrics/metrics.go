// Package metrics defines the Prometheus collectors for the import
// console. Collectors are package-level and registered once at init; the
// web server exposes them on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ImportsTotal counts import attempts by final status: completed,
	// rejected (no valid rows or bad file) or failed (fleet API error).
	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_imports_total",
			Help: "Import attempts by final status.",
		},
		[]string{"status"},
	)

	// RowsTotal counts processed file rows by outcome.
	RowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_total",
			Help: "File rows processed, by outcome (candidate or skipped).",
		},
		[]string{"outcome"},
	)

	// ImportDuration observes wall time of whole import attempts,
	// including the fleet API round trip.
	ImportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_import_duration_seconds",
			Help:    "Duration of import attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// FleetRequests counts fleet API calls by operation and HTTP status
	// ("error" when the request never got a response).
	FleetRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_requests_total",
			Help: "Fleet API requests by operation and status code.",
		},
		[]string{"op", "status"},
	)

	// FleetOrderPages counts pages fetched by the order selection loader.
	FleetOrderPages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_order_pages_fetched_total",
			Help: "Order pages fetched from the fleet API.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ImportsTotal,
		RowsTotal,
		ImportDuration,
		FleetRequests,
		FleetOrderPages,
	)
}
