package observability

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remnant_sync_rows_total",
			Help: "Files table rows seen, by whether they carried a remnant id",
		},
		[]string{"with_id"},
	)
	SyncOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remnant_sync_outcomes_total",
			Help: "sync_remnant verdicts",
		},
		[]string{"outcome"},
	)
	PhotosTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remnant_sync_photos_total",
			Help: "Photo pipeline results",
		},
		[]string{"result"},
	)
	IssuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remnant_sync_issues_total",
			Help: "Recoverable issues recorded during crawls",
		},
		[]string{"kind"},
	)
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remnant_sync_runs_total",
			Help: "Sync runs by result",
		},
		[]string{"result"},
	)
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remnant_api_requests_total",
			Help: "Listing API requests by cache result",
		},
		[]string{"cache"},
	)
)

func init() {
	prometheus.MustRegister(RowsTotal, SyncOutcomesTotal, PhotosTotal, IssuesTotal, RunsTotal, APIRequestsTotal)
}

// Start serves /metrics on port in the background. An empty port disables it.
func Start(port string) {
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			slog.Error("metrics server stopped", "err", err)
		}
	}()
}
