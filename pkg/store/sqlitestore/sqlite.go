// Package sqlitestore implements store.Store on an embedded SQLite file
// through modernc.org/sqlite.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/lisanmuaddib/twitanalysis/pkg/db"
	"github.com/lisanmuaddib/twitanalysis/pkg/db/models"
	"github.com/lisanmuaddib/twitanalysis/pkg/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store implements store.Store over SQLite
type Store struct {
	db     *sql.DB
	q      querier
	tx     *sql.Tx
	logger *logrus.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, logger *logrus.Logger, path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Single writer; also keeps ":memory:" on one connection
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.RunSQLiteMigrations(logger, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.WithField("path", path).Info("SQLite store opened")
	return &Store{db: sqlDB, q: sqlDB, logger: logger}, nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// WithinTx implements store.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, tx: tx, logger: s.logger}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) TweetExists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := s.q.QueryRowContext(ctx, `SELECT id FROM tweets WHERE id = ? LIMIT 1`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up tweet %d: %w", id, err)
	}
	return true, nil
}

func (s *Store) InsertTweet(ctx context.Context, t *models.Tweet) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tweets (id, text, terms, from_user, from_user_id, in_reply_to_status,
			in_reply_to_user, retweeted, retweet_count, created_at, iso_language_code, geo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Text, t.Terms, t.FromUser, t.FromUserID, t.InReplyToStatus,
		t.InReplyToUser, t.Retweeted, t.RetweetCount, t.CreatedAt, t.ISOLanguageCode, t.Geo,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateTweet
		}
		return fmt.Errorf("failed to insert tweet %d: %w", t.ID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func (s *Store) InsertUserMentions(ctx context.Context, mentions []models.TweetMentionsUser) error {
	if len(mentions) == 0 {
		return nil
	}
	return s.execEach(ctx, `INSERT OR IGNORE INTO tweet_mentions_user (tweet_id, user, user_id) VALUES (?, ?, ?)`,
		len(mentions), func(i int) []any {
			m := mentions[i]
			return []any{m.TweetID, m.User, m.UserID}
		})
}

func (s *Store) AllTweets(ctx context.Context) ([]models.Tweet, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, text, terms, from_user, from_user_id, in_reply_to_status, in_reply_to_user,
			retweeted, retweet_count, created_at, iso_language_code, geo, clean_text, emoticon,
			subjectivity, polarity
		FROM tweets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read tweets: %w", err)
	}
	defer rows.Close()

	var tweets []models.Tweet
	for rows.Next() {
		var (
			t                      models.Tweet
			replyStatus, replyUser sql.NullInt64
			lang, geo              sql.NullString
			clean, emoticon        sql.NullString
			subjectivity, polarity sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Text, &t.Terms, &t.FromUser, &t.FromUserID, &replyStatus, &replyUser,
			&t.Retweeted, &t.RetweetCount, &t.CreatedAt, &lang, &geo, &clean, &emoticon,
			&subjectivity, &polarity); err != nil {
			return nil, fmt.Errorf("failed to scan tweet: %w", err)
		}
		t.InReplyToStatus = int64Ptr(replyStatus)
		t.InReplyToUser = int64Ptr(replyUser)
		t.ISOLanguageCode = stringPtr(lang)
		t.Geo = stringPtr(geo)
		t.CleanText = stringPtr(clean)
		t.Emoticon = stringPtr(emoticon)
		t.Subjectivity = intPtr(subjectivity)
		t.Polarity = intPtr(polarity)
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tweets: %w", err)
	}
	return tweets, nil
}

func (s *Store) SetEmoticons(ctx context.Context, emoticons map[int64]string) error {
	ids, values := splitMap(emoticons)
	return s.bulk(ctx, `UPDATE tweets SET emoticon = ? WHERE id = ?`, len(ids), func(i int) []any {
		return []any{values[i], ids[i]}
	})
}

func (s *Store) SetRetweeted(ctx context.Context, ids []int64) error {
	return s.bulk(ctx, `UPDATE tweets SET retweeted = 1 WHERE id = ?`, len(ids), func(i int) []any {
		return []any{ids[i]}
	})
}

func (s *Store) SetCleanText(ctx context.Context, texts map[int64]string) error {
	ids, values := splitMap(texts)
	return s.bulk(ctx, `UPDATE tweets SET clean_text = ? WHERE id = ?`, len(ids), func(i int) []any {
		return []any{values[i], ids[i]}
	})
}

func (s *Store) InsertResources(ctx context.Context, urls []string) error {
	return s.bulk(ctx, `INSERT OR IGNORE INTO resources (url) VALUES (?)`, len(urls), func(i int) []any {
		return []any{urls[i]}
	})
}

func (s *Store) ReplaceTweetResources(ctx context.Context, links []models.TweetMentionsResource) error {
	return s.bulk(ctx, `INSERT OR REPLACE INTO tweet_mentions_resource (tweet_id, resource) VALUES (?, ?)`,
		len(links), func(i int) []any {
			return []any{links[i].TweetID, links[i].Resource}
		})
}

func (s *Store) Counts(ctx context.Context) (store.Counts, error) {
	var c store.Counts
	tables := []struct {
		name string
		dest *int64
	}{
		{"tweets", &c.Tweets},
		{"resources", &c.Resources},
		{"tweet_mentions_resource", &c.ResourceLinks},
		{"tweet_mentions_user", &c.UserMentionLinks},
	}
	for _, t := range tables {
		if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(t.dest); err != nil {
			return store.Counts{}, fmt.Errorf("failed to count %s: %w", t.name, err)
		}
	}
	return c, nil
}

// bulk runs one prepared statement n times inside a single transaction
func (s *Store) bulk(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	return s.WithinTx(ctx, func(tx store.Store) error {
		return tx.(*Store).execEach(ctx, query, n, args)
	})
}

func (s *Store) execEach(ctx context.Context, query string, n int, args func(i int) []any) error {
	stmt, err := s.q.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	return nil
}

func splitMap(m map[int64]string) ([]int64, []string) {
	ids := make([]int64, 0, len(m))
	values := make([]string, 0, len(m))
	for id, v := range m {
		ids = append(ids, id)
		values = append(values, v)
	}
	return ids, values
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
