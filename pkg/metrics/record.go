package metrics

import (
	"strconv"
	"time"

	"github.com/lisanmuaddib/twitanalysis/pkg/annotate"
	"github.com/lisanmuaddib/twitanalysis/pkg/ingest"
)

// RecordIngest adds one search's ingestion stats
func (m *RunMetrics) RecordIngest(terms string, stats *ingest.Stats) {
	if stats == nil {
		return
	}
	m.PagesTotal.WithLabelValues(terms).Add(float64(stats.Pages))
	m.RecordsTotal.WithLabelValues(terms).Add(float64(stats.Received))
	m.TweetsInsertedTotal.WithLabelValues(terms).Add(float64(stats.Inserted))
	m.TweetsDuplicateTotal.WithLabelValues(terms).Add(float64(stats.Duplicates))
	m.MentionsTotal.WithLabelValues(terms).Add(float64(stats.Mentions))
	if stats.Stopped != nil {
		m.TransportFailuresTotal.WithLabelValues(terms, strconv.Itoa(stats.Stopped.StatusCode)).Inc()
	}
}

// RecordPasses adds the rows each completed pass wrote. failed names the
// pass that stopped the pipeline, if any.
func (m *RunMetrics) RecordPasses(results []annotate.Result, failed string) {
	for _, r := range results {
		m.PassUpdatesTotal.WithLabelValues(r.Pass).Add(float64(r.Updated + r.Links))
	}
	if failed != "" {
		m.PassErrorsTotal.WithLabelValues(failed).Inc()
	}
}

// ObserveStage records how long a stage took since start
func (m *RunMetrics) ObserveStage(stage string, start time.Time) {
	m.RunDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
