// Package extract maps raw search records onto tweet rows through an
// ordered table of (destination column, source field, extractor) rules.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lisanmuaddib/twitanalysis/pkg/db/models"
	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
)

// Extractor decodes one source field into its destination on the row
type Extractor func(raw json.RawMessage, tweet *models.Tweet) error

// Rule moves one source field into one destination column
type Rule struct {
	Column  string
	Source  string
	Extract Extractor
}

// Rules is the extraction table applied to every new record, in order.
// Several rules may read the same source field.
var Rules = []Rule{
	{Column: "id", Source: "id", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		return json.Unmarshal(raw, &t.ID)
	}},
	{Column: "text", Source: "text", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		return json.Unmarshal(raw, &t.Text)
	}},
	{Column: "from_user", Source: "user", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		u, err := decodeUser(raw)
		if err != nil {
			return err
		}
		t.FromUser = u.ScreenName
		return nil
	}},
	{Column: "from_user_id", Source: "user", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		u, err := decodeUser(raw)
		if err != nil {
			return err
		}
		t.FromUserID = u.ID
		return nil
	}},
	{Column: "in_reply_to_status", Source: "in_reply_to_status_id_str", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		id, err := ReplyID(raw)
		t.InReplyToStatus = id
		return err
	}},
	{Column: "in_reply_to_user", Source: "in_reply_to_user_id_str", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		id, err := ReplyID(raw)
		t.InReplyToUser = id
		return err
	}},
	{Column: "retweet_count", Source: "retweet_count", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		return json.Unmarshal(raw, &t.RetweetCount)
	}},
	{Column: "created_at", Source: "created_at", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		return json.Unmarshal(raw, &t.CreatedAt)
	}},
	{Column: "iso_language_code", Source: "metadata", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		var m twitter.Metadata
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		if m.ISOLanguageCode != "" {
			t.ISOLanguageCode = &m.ISOLanguageCode
		}
		return nil
	}},
	{Column: "geo", Source: "geo", Extract: func(raw json.RawMessage, t *models.Tweet) error {
		geo, err := GeoPoint(raw)
		t.Geo = geo
		return err
	}},
}

// Apply builds a tweet from a raw record, tagged with the search terms that
// found it. A rule whose source field is absent leaves its column unset.
func Apply(rules []Rule, raw twitter.RawTweet, terms string) (*models.Tweet, error) {
	tweet := &models.Tweet{Terms: terms}
	for _, rule := range rules {
		if !raw.Has(rule.Source) {
			continue
		}
		if err := rule.Extract(raw[rule.Source], tweet); err != nil {
			return nil, fmt.Errorf("extracting %s from %s: %w", rule.Column, rule.Source, err)
		}
	}
	return tweet, nil
}

func decodeUser(raw json.RawMessage) (twitter.User, error) {
	var u twitter.User
	err := json.Unmarshal(raw, &u)
	return u, err
}

// ReplyID decodes a reply target id given as a string or number. The
// sentinel "0" means the tweet is not a reply.
func ReplyID(raw json.RawMessage) (*int64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "0" || s == "null" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid reply id %q: %w", s, err)
	}
	return &id, nil
}

// GeoPoint renders a Point geo object as "lat,long". Other geometry types
// yield nil.
func GeoPoint(raw json.RawMessage) (*string, error) {
	var p twitter.GeoPoint
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Type != "Point" || len(p.Coordinates) < 2 {
		return nil, nil
	}
	s := strconv.FormatFloat(p.Coordinates[0], 'f', -1, 64) + "," +
		strconv.FormatFloat(p.Coordinates[1], 'f', -1, 64)
	return &s, nil
}

// UserMentions reads entities.user_mentions. Missing or empty entity
// metadata yields no mentions.
func UserMentions(tweetID int64, raw twitter.RawTweet) ([]models.TweetMentionsUser, error) {
	if !raw.Has("entities") {
		return nil, nil
	}
	var entities twitter.Entities
	if err := json.Unmarshal(raw["entities"], &entities); err != nil {
		return nil, fmt.Errorf("decoding entities: %w", err)
	}

	mentions := make([]models.TweetMentionsUser, 0, len(entities.UserMentions))
	for _, m := range entities.UserMentions {
		mentions = append(mentions, models.TweetMentionsUser{
			TweetID: tweetID,
			User:    m.ScreenName,
			UserID:  m.ID,
		})
	}
	return mentions, nil
}
