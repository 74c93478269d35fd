package twitter

import "encoding/json"

// RawTweet is one search result object, keyed by top-level field name.
// Fields stay undecoded until the extraction table asks for them.
type RawTweet map[string]json.RawMessage

// Has reports whether the record carries a non-null value for field
func (r RawTweet) Has(field string) bool {
	v, ok := r[field]
	return ok && string(v) != "null"
}

// ID decodes the numeric status id
func (r RawTweet) ID() (int64, error) {
	var id int64
	if err := json.Unmarshal(r["id"], &id); err != nil {
		return 0, err
	}
	return id, nil
}

// SearchResponse is the v1.1 search payload
type SearchResponse struct {
	Statuses       []RawTweet     `json:"statuses"`
	SearchMetadata SearchMetadata `json:"search_metadata"`
	Errors         []TwitterError `json:"errors,omitempty"`
}

// SearchMetadata carries the continuation cursor. NextResults is a query
// string ("?max_id=...&q=...") and is absent on the last page.
type SearchMetadata struct {
	NextResults string  `json:"next_results,omitempty"`
	Query       string  `json:"query,omitempty"`
	Count       int     `json:"count,omitempty"`
	MaxIDStr    string  `json:"max_id_str,omitempty"`
	SinceIDStr  string  `json:"since_id_str,omitempty"`
	CompletedIn float64 `json:"completed_in,omitempty"`
}

// TwitterError represents an error returned by the Twitter API
type TwitterError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// User is the author object embedded in a status
type User struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name,omitempty"`
}

// UserMention is one entry of entities.user_mentions
type UserMention struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name,omitempty"`
	Indices    []int  `json:"indices,omitempty"`
}

// Entities is the structured metadata attached to a status
type Entities struct {
	UserMentions []UserMention `json:"user_mentions,omitempty"`
	URLs         []struct {
		URL         string `json:"url"`
		ExpandedURL string `json:"expanded_url"`
	} `json:"urls,omitempty"`
	Hashtags []struct {
		Text string `json:"text"`
	} `json:"hashtags,omitempty"`
}

// Metadata carries the language tag of a status
type Metadata struct {
	ISOLanguageCode string `json:"iso_language_code"`
	ResultType      string `json:"result_type,omitempty"`
}

// GeoPoint is the legacy geo object, coordinates ordered lat, long
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}
