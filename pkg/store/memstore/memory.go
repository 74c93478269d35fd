// Package memstore is an in-memory store.Store used by tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/lisanmuaddib/twitanalysis/pkg/db/models"
	"github.com/lisanmuaddib/twitanalysis/pkg/store"
)

type linkKey struct {
	tweetID int64
	other   string
}

type mentionKey struct {
	tweetID int64
	userID  int64
}

// Store keeps every table in maps guarded by one mutex
type Store struct {
	mu        sync.RWMutex
	tweets    map[int64]models.Tweet
	resources map[string]models.Resource
	links     map[linkKey]models.TweetMentionsResource
	mentions  map[mentionKey]models.TweetMentionsUser
}

// New creates an empty store
func New() *Store {
	return &Store{
		tweets:    make(map[int64]models.Tweet),
		resources: make(map[string]models.Resource),
		links:     make(map[linkKey]models.TweetMentionsResource),
		mentions:  make(map[mentionKey]models.TweetMentionsUser),
	}
}

var _ store.Store = (*Store)(nil)

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// WithinTx runs fn directly; the in-memory store has no rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *Store) TweetExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tweets[id]
	return ok, nil
}

func (s *Store) InsertTweet(ctx context.Context, tweet *models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tweets[tweet.ID]; ok {
		return store.ErrDuplicateTweet
	}
	s.tweets[tweet.ID] = *tweet
	return nil
}

func (s *Store) InsertUserMentions(ctx context.Context, mentions []models.TweetMentionsUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mentions {
		key := mentionKey{tweetID: m.TweetID, userID: m.UserID}
		if _, ok := s.mentions[key]; !ok {
			s.mentions[key] = m
		}
	}
	return nil
}

func (s *Store) AllTweets(ctx context.Context) ([]models.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tweets := make([]models.Tweet, 0, len(s.tweets))
	for _, t := range s.tweets {
		tweets = append(tweets, t)
	}
	sort.Slice(tweets, func(i, j int) bool { return tweets[i].ID < tweets[j].ID })
	return tweets, nil
}

func (s *Store) SetEmoticons(ctx context.Context, emoticons map[int64]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range emoticons {
		if t, ok := s.tweets[id]; ok {
			e := e
			t.Emoticon = &e
			s.tweets[id] = t
		}
	}
	return nil
}

func (s *Store) SetRetweeted(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if t, ok := s.tweets[id]; ok {
			t.Retweeted = true
			s.tweets[id] = t
		}
	}
	return nil
}

func (s *Store) SetCleanText(ctx context.Context, texts map[int64]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, text := range texts {
		if t, ok := s.tweets[id]; ok {
			text := text
			t.CleanText = &text
			s.tweets[id] = t
		}
	}
	return nil
}

func (s *Store) InsertResources(ctx context.Context, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range urls {
		if _, ok := s.resources[u]; !ok {
			s.resources[u] = models.Resource{URL: u}
		}
	}
	return nil
}

func (s *Store) ReplaceTweetResources(ctx context.Context, links []models.TweetMentionsResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		s.links[linkKey{tweetID: l.TweetID, other: l.Resource}] = l
	}
	return nil
}

func (s *Store) Counts(ctx context.Context) (store.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Counts{
		Tweets:           int64(len(s.tweets)),
		Resources:        int64(len(s.resources)),
		ResourceLinks:    int64(len(s.links)),
		UserMentionLinks: int64(len(s.mentions)),
	}, nil
}

// Tweet returns a stored tweet by id, for assertions
func (s *Store) Tweet(id int64) (models.Tweet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tweets[id]
	return t, ok
}

// Mentions returns the user mention links recorded for a tweet
func (s *Store) Mentions(tweetID int64) []models.TweetMentionsUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TweetMentionsUser
	for k, m := range s.mentions {
		if k.tweetID == tweetID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
