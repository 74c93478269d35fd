// Package metrics counts harvest and annotation activity for one run.
// Counters live on a private registry and are exported as a node-exporter
// textfile when the run ends.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunMetrics holds the counters for one process run
type RunMetrics struct {
	registry *prometheus.Registry

	PagesTotal             *prometheus.CounterVec
	RecordsTotal           *prometheus.CounterVec
	TweetsInsertedTotal    *prometheus.CounterVec
	TweetsDuplicateTotal   *prometheus.CounterVec
	MentionsTotal          *prometheus.CounterVec
	TransportFailuresTotal *prometheus.CounterVec
	PassUpdatesTotal       *prometheus.CounterVec
	PassErrorsTotal        *prometheus.CounterVec
	RunDurationSeconds     *prometheus.HistogramVec
}

// New creates the run counters on a fresh registry
func New() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RunMetrics{
		registry: reg,

		// Harvest metrics
		PagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitanalysis_pages_total",
				Help: "Search pages fetched",
			},
			[]string{"terms"},
		),
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitanalysis_records_total",
				Help: "Raw records received from search",
			},
			[]string{"terms"},
		),
		TweetsInsertedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitanalysis_tweets_inserted_total",
				Help: "New tweets stored",
			},
			[]string{"terms"},
		),
		TweetsDuplicateTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitanalysis_tweets_duplicate_total",
				Help: "Records skipped because the tweet id was already stored",
			},
			[]string{"terms"},
		),
		MentionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitanalysis_user_mentions_total",
				Help: "User mention links recorded at ingestion",
			},
			[]string{"terms"},
		),
		TransportFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitanalysis_transport_failures_total",
				Help: "Searches stopped early by a transport failure",
			},
			[]string{"terms", "status_code"},
		),

		// Annotation metrics
		PassUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitanalysis_pass_updates_total",
				Help: "Rows written by each annotation pass",
			},
			[]string{"pass"},
		),
		PassErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitanalysis_pass_errors_total",
				Help: "Annotation pass failures",
			},
			[]string{"pass"},
		),

		RunDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "twitanalysis_stage_duration_seconds",
				Help:    "Wall time of each run stage",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"stage"},
		),
	}
}

// Registry exposes the private registry, for tests and custom exporters
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every counter to path in the text exposition format.
// The file is written atomically so a collector never reads a partial file.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
