// Package harvest runs the two batch stages against one store: fetching
// and ingesting searches, then annotating the stored corpus.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lisanmuaddib/twitanalysis/pkg/annotate"
	"github.com/lisanmuaddib/twitanalysis/pkg/ingest"
	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
	"github.com/lisanmuaddib/twitanalysis/pkg/metrics"
	"github.com/lisanmuaddib/twitanalysis/pkg/store"
	"github.com/sirupsen/logrus"
)

// Config wires a harvester. Searcher may be nil for annotation-only use.
type Config struct {
	Searcher ingest.Searcher
	Store    store.Store
	Passes   []annotate.Pass
	Metrics  *metrics.RunMetrics
	Logger   *logrus.Logger
}

// Report summarises one run
type Report struct {
	RunID    string
	Searches []SearchReport
	Passes   []annotate.Result
	Counts   store.Counts
}

// SearchReport pairs a search with what ingesting it did
type SearchReport struct {
	Params twitter.SearchParams
	Stats  *ingest.Stats
}

// Harvester sequences ingest and annotation
type Harvester struct {
	ingester *ingest.Ingester
	store    store.Store
	pipeline *annotate.Pipeline
	metrics  *metrics.RunMetrics
	logger   *logrus.Logger
	runID    string
}

// New validates cfg and assigns the run a fresh id
func New(cfg Config) (*Harvester, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	h := &Harvester{
		store:    cfg.Store,
		pipeline: annotate.NewPipeline(cfg.Logger, cfg.Passes...),
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		runID:    uuid.New().String(),
	}
	if cfg.Searcher != nil {
		h.ingester = ingest.NewIngester(cfg.Searcher, cfg.Store, cfg.Logger)
	}
	return h, nil
}

// RunID identifies this run in logs
func (h *Harvester) RunID() string {
	return h.runID
}

func (h *Harvester) log() *logrus.Entry {
	return h.logger.WithField("run_id", h.runID)
}

// Harvest ingests each search in turn. A transport failure ends only the
// search it hit; a validation or store error stops the run.
func (h *Harvester) Harvest(ctx context.Context, searches []twitter.SearchParams) ([]SearchReport, error) {
	if h.ingester == nil {
		return nil, errors.New("harvest needs a search client")
	}

	start := time.Now()
	defer h.metrics.ObserveStage("harvest", start)

	reports := make([]SearchReport, 0, len(searches))
	for _, params := range searches {
		log := h.log().WithField("terms", params.Terms)
		log.Info("Starting search")

		stats, err := h.ingester.Run(ctx, params)
		if err != nil {
			// the transaction rolled back, so nothing in stats was stored
			return reports, err
		}
		h.metrics.RecordIngest(params.Terms, stats)
		reports = append(reports, SearchReport{Params: params, Stats: stats})

		if stats.Stopped != nil {
			log.WithFields(logrus.Fields{
				"error":       stats.Stopped,
				"next_cursor": stats.NextCursor,
			}).Warn("Search stopped early, resume with the reported cursor")
		}
	}
	return reports, nil
}

// Annotate runs the configured passes over the stored corpus
func (h *Harvester) Annotate(ctx context.Context) ([]annotate.Result, error) {
	start := time.Now()
	defer h.metrics.ObserveStage("annotate", start)

	results, err := h.pipeline.Run(ctx, h.store)
	failed := ""
	if err != nil {
		failed = failedPass(h.pipeline, results)
	}
	h.metrics.RecordPasses(results, failed)
	if err != nil {
		return results, fmt.Errorf("annotating: %w", err)
	}
	return results, nil
}

// Run harvests every search and then annotates the corpus
func (h *Harvester) Run(ctx context.Context, searches []twitter.SearchParams) (*Report, error) {
	report := &Report{RunID: h.runID}

	var err error
	if len(searches) > 0 {
		report.Searches, err = h.Harvest(ctx, searches)
		if err != nil {
			return report, err
		}
	}

	report.Passes, err = h.Annotate(ctx)
	if err != nil {
		return report, err
	}

	report.Counts, err = h.store.Counts(ctx)
	if err != nil {
		return report, fmt.Errorf("counting rows: %w", err)
	}

	h.log().WithFields(logrus.Fields{
		"tweets":         report.Counts.Tweets,
		"resources":      report.Counts.Resources,
		"resource_links": report.Counts.ResourceLinks,
		"user_mentions":  report.Counts.UserMentionLinks,
	}).Info("Run complete")
	return report, nil
}

// failedPass names the pass after the last completed one
func failedPass(p *annotate.Pipeline, completed []annotate.Result) string {
	passes := p.Passes()
	if len(completed) < len(passes) {
		return passes[len(completed)].Name()
	}
	return ""
}
