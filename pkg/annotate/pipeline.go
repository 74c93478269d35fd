package annotate

import (
	"context"
	"fmt"
	"strings"

	"github.com/lisanmuaddib/twitanalysis/pkg/store"
	"github.com/sirupsen/logrus"
)

// DefaultPasses returns every pass in pipeline order
func DefaultPasses() []Pass {
	return []Pass{EmoticonPass{}, RetweetPass{}, CleanPass{}, ResourcePass{}}
}

// SelectPasses returns the named passes in pipeline order, whatever order
// the names were given in. An empty list selects every pass.
func SelectPasses(names []string) ([]Pass, error) {
	all := DefaultPasses()
	if len(names) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		found := false
		for _, p := range all {
			if p.Name() == n {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown annotation pass %q", n)
		}
		wanted[n] = true
	}

	var passes []Pass
	for _, p := range all {
		if wanted[p.Name()] {
			passes = append(passes, p)
		}
	}
	return passes, nil
}

// Pipeline runs passes in sequence against one store
type Pipeline struct {
	passes []Pass
	logger *logrus.Logger
}

// NewPipeline creates a pipeline. A nil pass list runs every pass.
func NewPipeline(logger *logrus.Logger, passes ...Pass) *Pipeline {
	if len(passes) == 0 {
		passes = DefaultPasses()
	}
	return &Pipeline{passes: passes, logger: logger}
}

// Run executes each pass in order. The first failing pass stops the run;
// passes already completed keep their writes.
func (p *Pipeline) Run(ctx context.Context, st store.Store) ([]Result, error) {
	results := make([]Result, 0, len(p.passes))
	for _, pass := range p.passes {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		log := p.logger.WithField("pass", pass.Name())
		log.Debug("Starting annotation pass")

		res, err := pass.Run(ctx, st)
		if err != nil {
			log.WithError(err).Error("Annotation pass failed")
			return results, fmt.Errorf("%s pass: %w", pass.Name(), err)
		}

		log.WithFields(logrus.Fields{
			"examined": res.Examined,
			"updated":  res.Updated,
			"links":    res.Links,
		}).Info("Annotation pass complete")
		results = append(results, res)
	}
	return results, nil
}

// Passes returns the passes the pipeline runs, in order
func (p *Pipeline) Passes() []Pass {
	return p.passes
}
