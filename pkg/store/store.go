// Package store defines the persistence contract shared by the ingest and
// annotation stages. Each supported engine implements Store once.
package store

import (
	"context"
	"errors"

	"github.com/lisanmuaddib/twitanalysis/pkg/db/models"
)

// ErrDuplicateTweet is returned by InsertTweet when the tweet id already
// exists. Callers treat it as a benign duplicate, not a failure.
var ErrDuplicateTweet = errors.New("store: duplicate tweet id")

// Counts reports row totals per table
type Counts struct {
	Tweets           int64
	Resources        int64
	ResourceLinks    int64
	UserMentionLinks int64
}

// Store is the relational surface the pipeline needs: lookup by id, insert,
// insert-or-ignore, and bulk update.
type Store interface {
	// TweetExists reports whether a tweet with the given id is stored
	TweetExists(ctx context.Context, id int64) (bool, error)
	// InsertTweet inserts a new tweet, returning ErrDuplicateTweet when the
	// unique constraint on id rejects it
	InsertTweet(ctx context.Context, tweet *models.Tweet) error
	// InsertUserMentions inserts mention links, ignoring existing ones
	InsertUserMentions(ctx context.Context, mentions []models.TweetMentionsUser) error

	// AllTweets reads the whole corpus ordered by id
	AllTweets(ctx context.Context) ([]models.Tweet, error)
	// SetEmoticons writes the emoticon column for the given ids
	SetEmoticons(ctx context.Context, emoticons map[int64]string) error
	// SetRetweeted sets retweeted=true for the given ids
	SetRetweeted(ctx context.Context, ids []int64) error
	// SetCleanText overwrites the clean_text column for the given ids
	SetCleanText(ctx context.Context, texts map[int64]string) error
	// InsertResources registers URLs, ignoring ones already known
	InsertResources(ctx context.Context, urls []string) error
	// ReplaceTweetResources inserts or replaces tweet/url link rows
	ReplaceTweetResources(ctx context.Context, links []models.TweetMentionsResource) error

	// Counts returns row totals
	Counts(ctx context.Context) (Counts, error)
	// WithinTx runs fn against a transactional view of the store and
	// commits when fn returns nil
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	// Close releases the underlying connection
	Close() error
}
