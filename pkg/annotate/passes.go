// Package annotate derives columns and link rows from stored tweet text.
// Each pass reads the whole corpus, computes its result in memory and
// writes it back in one bulk operation.
package annotate

import (
	"context"
	"fmt"

	"github.com/lisanmuaddib/twitanalysis/pkg/db/models"
	"github.com/lisanmuaddib/twitanalysis/pkg/store"
)

// Pass names, in pipeline order
const (
	PassEmoticon  = "emoticon"
	PassRetweet   = "retweet"
	PassClean     = "clean"
	PassResources = "resources"
)

// Result reports what a pass changed
type Result struct {
	Pass     string
	Examined int
	Updated  int
	// Links counts tweet/resource rows written by the resources pass
	Links int
}

// Pass is one annotation step over the full corpus
type Pass interface {
	Name() string
	Run(ctx context.Context, st store.Store) (Result, error)
}

// EmoticonPass classifies each tweet by its emoticons. Tweets with mixed or
// no emoticons are skipped, so earlier classifications are never cleared.
type EmoticonPass struct{}

func (EmoticonPass) Name() string { return PassEmoticon }

func (EmoticonPass) Run(ctx context.Context, st store.Store) (Result, error) {
	tweets, err := st.AllTweets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading tweets: %w", err)
	}

	updates := make(map[int64]string)
	for _, t := range tweets {
		if e := Classify(t.Text); e != "" {
			updates[t.ID] = e
		}
	}

	res := Result{Pass: PassEmoticon, Examined: len(tweets), Updated: len(updates)}
	if len(updates) == 0 {
		return res, nil
	}
	if err := st.SetEmoticons(ctx, updates); err != nil {
		return Result{}, fmt.Errorf("writing emoticons: %w", err)
	}
	return res, nil
}

// RetweetPass flags tweets carrying an RT marker
type RetweetPass struct{}

func (RetweetPass) Name() string { return PassRetweet }

func (RetweetPass) Run(ctx context.Context, st store.Store) (Result, error) {
	tweets, err := st.AllTweets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading tweets: %w", err)
	}

	var ids []int64
	for _, t := range tweets {
		if IsRetweet(t.Text) {
			ids = append(ids, t.ID)
		}
	}

	res := Result{Pass: PassRetweet, Examined: len(tweets), Updated: len(ids)}
	if len(ids) == 0 {
		return res, nil
	}
	if err := st.SetRetweeted(ctx, ids); err != nil {
		return Result{}, fmt.Errorf("writing retweet flags: %w", err)
	}
	return res, nil
}

// CleanPass overwrites clean_text for every tweet
type CleanPass struct{}

func (CleanPass) Name() string { return PassClean }

func (CleanPass) Run(ctx context.Context, st store.Store) (Result, error) {
	tweets, err := st.AllTweets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading tweets: %w", err)
	}

	texts := make(map[int64]string, len(tweets))
	for _, t := range tweets {
		texts[t.ID] = Clean(t.Text)
	}

	res := Result{Pass: PassClean, Examined: len(tweets), Updated: len(texts)}
	if len(texts) == 0 {
		return res, nil
	}
	if err := st.SetCleanText(ctx, texts); err != nil {
		return Result{}, fmt.Errorf("writing clean text: %w", err)
	}
	return res, nil
}

// ResourcePass registers every URL found in tweet text and links it to the
// tweets that mention it
type ResourcePass struct{}

func (ResourcePass) Name() string { return PassResources }

func (ResourcePass) Run(ctx context.Context, st store.Store) (Result, error) {
	tweets, err := st.AllTweets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading tweets: %w", err)
	}

	var (
		urls  []string
		links []models.TweetMentionsResource
		known = make(map[string]struct{})
		seen  = make(map[models.TweetMentionsResource]struct{})
	)
	for _, t := range tweets {
		for _, u := range FindURLs(t.Text) {
			if _, ok := known[u]; !ok {
				known[u] = struct{}{}
				urls = append(urls, u)
			}
			link := models.TweetMentionsResource{TweetID: t.ID, Resource: u}
			if _, ok := seen[link]; !ok {
				seen[link] = struct{}{}
				links = append(links, link)
			}
		}
	}

	res := Result{Pass: PassResources, Examined: len(tweets), Updated: len(urls), Links: len(links)}
	if len(urls) == 0 {
		return res, nil
	}

	err = st.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.InsertResources(ctx, urls); err != nil {
			return fmt.Errorf("writing resources: %w", err)
		}
		if err := tx.ReplaceTweetResources(ctx, links); err != nil {
			return fmt.Errorf("writing resource links: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
