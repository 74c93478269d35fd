// Package gormstore implements store.Store on PostgreSQL through GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lisanmuaddib/twitanalysis/pkg/db/models"
	"github.com/lisanmuaddib/twitanalysis/pkg/store"
)

// batchSize bounds the rows per multi-row INSERT
const batchSize = 500

// TweetStore implements store.Store over a GORM postgres connection
type TweetStore struct {
	logger    *logrus.Logger
	db        *gorm.DB
	inTx      bool
	savepoint *atomic.Int64
}

var _ store.Store = (*TweetStore)(nil)

// NewTweetStore wraps an open connection, normally from db.SetupDatabase.
// The connection must be opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey.
func NewTweetStore(logger *logrus.Logger, db *gorm.DB) (*TweetStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &TweetStore{
		logger:    logger,
		db:        db,
		savepoint: new(atomic.Int64),
	}, nil
}

// Close implements store.Store.
func (s *TweetStore) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithinTx implements store.Store.
func (s *TweetStore) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TweetStore{logger: s.logger, db: tx, inTx: true, savepoint: s.savepoint})
	})
}

func (s *TweetStore) TweetExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&models.Tweet{}).Where("id = ?", id).Limit(1).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to look up tweet %d: %w", id, result.Error)
	}
	return count > 0, nil
}

// InsertTweet implements store.Store. Inside a transaction the insert runs
// under a savepoint, since a failed statement otherwise aborts the whole
// postgres transaction.
func (s *TweetStore) InsertTweet(ctx context.Context, tweet *models.Tweet) error {
	db := s.db.WithContext(ctx)

	var sp string
	if s.inTx {
		sp = fmt.Sprintf("insert_tweet_%d", s.savepoint.Add(1))
		if err := db.SavePoint(sp).Error; err != nil {
			return fmt.Errorf("failed to create savepoint: %w", err)
		}
	}

	err := db.Omit("CleanText", "Emoticon", "Subjectivity", "Polarity").Create(tweet).Error
	if err == nil {
		return nil
	}

	if sp != "" {
		if rbErr := db.RollbackTo(sp).Error; rbErr != nil {
			return fmt.Errorf("failed to roll back to savepoint: %w", rbErr)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		s.logger.WithField("tweet_id", tweet.ID).Debug("Tweet rejected by unique constraint")
		return store.ErrDuplicateTweet
	}
	return fmt.Errorf("failed to insert tweet %d: %w", tweet.ID, err)
}

func (s *TweetStore) InsertUserMentions(ctx context.Context, mentions []models.TweetMentionsUser) error {
	if len(mentions) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(mentions, batchSize)
	if result.Error != nil {
		return fmt.Errorf("failed to insert user mentions: %w", result.Error)
	}
	return nil
}

func (s *TweetStore) AllTweets(ctx context.Context) ([]models.Tweet, error) {
	var tweets []models.Tweet
	if err := s.db.WithContext(ctx).Order("id").Find(&tweets).Error; err != nil {
		return nil, fmt.Errorf("failed to read tweets: %w", err)
	}
	return tweets, nil
}

// SetEmoticons issues one UPDATE per distinct emoticon value
func (s *TweetStore) SetEmoticons(ctx context.Context, emoticons map[int64]string) error {
	if len(emoticons) == 0 {
		return nil
	}
	groups := make(map[string]pq.Int64Array)
	for id, e := range emoticons {
		groups[e] = append(groups[e], id)
	}
	return s.WithinTx(ctx, func(tx store.Store) error {
		gdb := tx.(*TweetStore).db.WithContext(ctx)
		for emoticon, ids := range groups {
			err := gdb.Exec(`UPDATE tweets SET emoticon = ? WHERE id = ANY(?)`, emoticon, ids).Error
			if err != nil {
				return fmt.Errorf("failed to set emoticon %q: %w", emoticon, err)
			}
		}
		return nil
	})
}

func (s *TweetStore) SetRetweeted(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Exec(`UPDATE tweets SET retweeted = TRUE WHERE id = ANY(?)`, pq.Int64Array(ids)).Error
	if err != nil {
		return fmt.Errorf("failed to set retweeted: %w", err)
	}
	return nil
}

// SetCleanText writes every value in one statement by unnesting parallel arrays
func (s *TweetStore) SetCleanText(ctx context.Context, texts map[int64]string) error {
	if len(texts) == 0 {
		return nil
	}
	ids := make(pq.Int64Array, 0, len(texts))
	values := make(pq.StringArray, 0, len(texts))
	for id, text := range texts {
		ids = append(ids, id)
		values = append(values, text)
	}
	err := s.db.WithContext(ctx).Exec(`
		UPDATE tweets AS t SET clean_text = v.clean_text
		FROM unnest(?::bigint[], ?::text[]) AS v(id, clean_text)
		WHERE t.id = v.id`, ids, values).Error
	if err != nil {
		return fmt.Errorf("failed to set clean text: %w", err)
	}
	return nil
}

func (s *TweetStore) InsertResources(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	resources := make([]models.Resource, len(urls))
	for i, u := range urls {
		resources[i] = models.Resource{URL: u}
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		CreateInBatches(resources, batchSize)
	if result.Error != nil {
		return fmt.Errorf("failed to insert resources: %w", result.Error)
	}
	return nil
}

// ReplaceTweetResources implements store.Store. The link row is its own key,
// so replacing an existing pair leaves it unchanged.
func (s *TweetStore) ReplaceTweetResources(ctx context.Context, links []models.TweetMentionsResource) error {
	if len(links) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tweet_id"}, {Name: "resource"}},
			DoNothing: true,
		}).
		CreateInBatches(links, batchSize)
	if result.Error != nil {
		return fmt.Errorf("failed to insert resource links: %w", result.Error)
	}
	return nil
}

func (s *TweetStore) Counts(ctx context.Context) (store.Counts, error) {
	var c store.Counts
	db := s.db.WithContext(ctx)
	for _, q := range []struct {
		model any
		dest  *int64
	}{
		{&models.Tweet{}, &c.Tweets},
		{&models.Resource{}, &c.Resources},
		{&models.TweetMentionsResource{}, &c.ResourceLinks},
		{&models.TweetMentionsUser{}, &c.UserMentionLinks},
	} {
		if err := db.Model(q.model).Count(q.dest).Error; err != nil {
			return store.Counts{}, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return c, nil
}
