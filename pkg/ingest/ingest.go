// Package ingest stores fetched search records, skipping ids already held
// and recording the users each new tweet mentions.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/lisanmuaddib/twitanalysis/pkg/extract"
	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
	"github.com/lisanmuaddib/twitanalysis/pkg/store"
	"github.com/sirupsen/logrus"
)

// Searcher is the paginated fetch the ingester drives
type Searcher interface {
	Search(ctx context.Context, params twitter.SearchParams, handle twitter.PageHandler) (*twitter.SearchSummary, error)
}

// Stats counts what one fetch did to the store
type Stats struct {
	Pages      int
	Received   int
	Inserted   int
	Duplicates int
	Mentions   int

	// NextCursor resumes the search where this run stopped
	NextCursor string
	// Stopped is the transport failure that ended retrieval, if any
	Stopped *twitter.TransportError
}

// Ingester inserts new records and counts the rest as duplicates
type Ingester struct {
	searcher Searcher
	store    store.Store
	rules    []extract.Rule
	logger   *logrus.Logger
}

// NewIngester wires a search client to a store using the default
// extraction table
func NewIngester(searcher Searcher, st store.Store, logger *logrus.Logger) *Ingester {
	return &Ingester{
		searcher: searcher,
		store:    st,
		rules:    extract.Rules,
		logger:   logger,
	}
}

// Run fetches params and ingests every page inside one store transaction.
// The transaction commits after retrieval ends, including when a transport
// failure cut it short, so pages already handled are kept.
func (i *Ingester) Run(ctx context.Context, params twitter.SearchParams) (*Stats, error) {
	stats := &Stats{}
	log := i.logger.WithField("terms", params.Terms)

	err := i.store.WithinTx(ctx, func(tx store.Store) error {
		summary, err := i.searcher.Search(ctx, params, func(ctx context.Context, page *twitter.SearchPage) error {
			return i.ingestPage(ctx, tx, params.Terms, page, stats)
		})
		if summary != nil {
			stats.NextCursor = summary.NextCursor
			stats.Stopped = summary.Stopped
		}
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("ingesting %q: %w", params.Terms, err)
	}

	log.WithFields(logrus.Fields{
		"pages":      stats.Pages,
		"received":   stats.Received,
		"inserted":   stats.Inserted,
		"duplicates": stats.Duplicates,
		"mentions":   stats.Mentions,
	}).Info("Ingestion complete")

	return stats, nil
}

func (i *Ingester) ingestPage(ctx context.Context, tx store.Store, terms string, page *twitter.SearchPage, stats *Stats) error {
	stats.Pages++
	for _, raw := range page.Records {
		stats.Received++
		inserted, err := i.ingestRecord(ctx, tx, terms, raw, stats)
		if err != nil {
			return err
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}
	}
	return nil
}

// ingestRecord returns false when the record was already stored
func (i *Ingester) ingestRecord(ctx context.Context, tx store.Store, terms string, raw twitter.RawTweet, stats *Stats) (bool, error) {
	id, err := raw.ID()
	if err != nil {
		return false, fmt.Errorf("decoding record id: %w", err)
	}

	exists, err := tx.TweetExists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("looking up tweet %d: %w", id, err)
	}
	if exists {
		return false, nil
	}

	tweet, err := extract.Apply(i.rules, raw, terms)
	if err != nil {
		return false, fmt.Errorf("tweet %d: %w", id, err)
	}

	if err := tx.InsertTweet(ctx, tweet); err != nil {
		if errors.Is(err, store.ErrDuplicateTweet) {
			i.logger.WithField("tweet_id", id).Debug("Tweet inserted concurrently, counting as duplicate")
			return false, nil
		}
		return false, fmt.Errorf("inserting tweet %d: %w", id, err)
	}

	mentions, err := extract.UserMentions(id, raw)
	if err != nil {
		i.logger.WithError(err).WithField("tweet_id", id).Warn("Skipping unreadable user mentions")
		return true, nil
	}
	if len(mentions) > 0 {
		if err := tx.InsertUserMentions(ctx, mentions); err != nil {
			return true, fmt.Errorf("recording mentions for tweet %d: %w", id, err)
		}
		stats.Mentions += len(mentions)
	}
	return true, nil
}
