package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// SearchParams holds the parameters for a paginated search
type SearchParams struct {
	// Terms is the query string sent as q
	Terms string

	// Geofilter is an optional "lat,long,radiuskm" restriction. It is
	// validated before the first request.
	Geofilter string

	// PageSize is the result count per request, 1-100. Defaults to the config.
	PageSize int

	// MaxPages bounds the number of requests. Defaults to the config.
	MaxPages int

	// Cursor resumes from a next_results value reported by an earlier run.
	// Leave empty to start from the newest results.
	Cursor string
}

// SearchPage is one successfully fetched page
type SearchPage struct {
	Number     int
	Cursor     string
	NextCursor string
	Records    []RawTweet
}

// SearchSummary describes how a search ended
type SearchSummary struct {
	Pages   int
	Records int

	// NextCursor is the cursor of the first page not fetched, empty when the
	// results were exhausted
	NextCursor string

	// Stopped holds the transport failure that ended the loop early
	Stopped *TransportError
}

// Exhausted reports whether the search ran out of results
func (s *SearchSummary) Exhausted() bool {
	return s.NextCursor == "" && s.Stopped == nil
}

// PageHandler receives each page in order. Returning an error aborts the search.
type PageHandler func(ctx context.Context, page *SearchPage) error

// Search walks the continuation cursor one request at a time, handing each
// page to handle. The cursor is only valid for the next request, so pages
// are never fetched in parallel.
//
// The loop ends when the cursor is absent, MaxPages is reached, or a page
// cannot be fetched after RetryAttempts retries. A transport failure is not
// returned: it is recorded in SearchSummary.Stopped and earlier pages remain
// delivered. Validation errors, handler errors and context cancellation are
// returned.
func (c *TwitterClient) Search(ctx context.Context, params SearchParams, handle PageHandler) (*SearchSummary, error) {
	query, err := c.firstQuery(params)
	if err != nil {
		return nil, err
	}

	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = c.config.MaxPages
	}

	log := c.logger.WithFields(logrus.Fields{
		"method":    "Search",
		"terms":     params.Terms,
		"max_pages": maxPages,
	})

	summary := &SearchSummary{NextCursor: params.Cursor}
	cursor := params.Cursor

	for page := 1; page <= maxPages; page++ {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		resp, err := c.fetchPage(ctx, page, query)
		if err != nil {
			var terr *TransportError
			if errors.As(err, &terr) {
				log.WithError(err).WithField("cursor", cursor).Warn("Stopping search after transport failure")
				summary.Stopped = terr
				return summary, nil
			}
			return summary, err
		}

		result := &SearchPage{
			Number:     page,
			Cursor:     cursor,
			NextCursor: resp.SearchMetadata.NextResults,
			Records:    resp.Statuses,
		}
		if err := handle(ctx, result); err != nil {
			return summary, fmt.Errorf("handling page %d: %w", page, err)
		}

		summary.Pages++
		summary.Records += len(resp.Statuses)
		summary.NextCursor = result.NextCursor

		log.WithFields(logrus.Fields{
			"page":    page,
			"records": len(resp.Statuses),
		}).Debug("Fetched search page")

		if result.NextCursor == "" {
			log.Debug("No more pages to fetch")
			return summary, nil
		}

		cursor = result.NextCursor
		query, err = c.nextQuery(query, cursor)
		if err != nil {
			summary.Stopped = &TransportError{Page: page + 1, Err: err}
			log.WithError(err).Warn("Stopping search on unreadable cursor")
			return summary, nil
		}
	}

	log.WithField("next_cursor", summary.NextCursor).Info("Reached maximum page count")
	return summary, nil
}

// fetchPage performs one page request with bounded retry
func (c *TwitterClient) fetchPage(ctx context.Context, page int, query url.Values) (*SearchResponse, error) {
	var lastErr *TransportError

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt, c.config.RetryBackoff)
			c.logger.WithFields(logrus.Fields{
				"page":    page,
				"attempt": attempt,
				"backoff": backoff.String(),
				"error":   lastErr,
			}).Debug("Retrying search page")

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		// Limiter errors end the search without counting as a transport failure
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		var resp SearchResponse
		err := c.getJSON(ctx, c.config.SearchEndpoint, query, &resp)
		if err == nil {
			return &resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = &TransportError{Page: page, Err: err}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			lastErr.StatusCode = apiErr.StatusCode
		}
		if !lastErr.Retryable() {
			break
		}
	}

	return nil, lastErr
}

// firstQuery validates params and builds the first request
func (c *TwitterClient) firstQuery(params SearchParams) (url.Values, error) {
	if strings.TrimSpace(params.Terms) == "" && params.Cursor == "" {
		return nil, &ValidationError{Field: "terms", Value: params.Terms, Message: "search terms are required"}
	}

	pageSize := params.PageSize
	if pageSize == 0 {
		pageSize = c.config.PageSize
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, &ValidationError{
			Field:   "page size",
			Value:   strconv.Itoa(pageSize),
			Message: fmt.Sprintf("must be between 1 and %d", MaxPageSize),
		}
	}

	query := url.Values{}
	query.Set("q", params.Terms)
	query.Set("result_type", c.config.ResultType)
	query.Set("count", strconv.Itoa(pageSize))
	query.Set("include_entities", "true")
	if c.config.Language != "" {
		query.Set("lang", c.config.Language)
	}

	if params.Geofilter != "" {
		geo, err := ParseGeofilter(params.Geofilter)
		if err != nil {
			return nil, err
		}
		query.Set("geocode", geo.String())
	}

	if params.Cursor != "" {
		return c.nextQuery(query, params.Cursor)
	}
	return query, nil
}

// nextQuery builds the request for a next_results cursor. The cursor's
// parameters win; base parameters it omits are carried over.
func (c *TwitterClient) nextQuery(base url.Values, cursor string) (url.Values, error) {
	next, err := url.ParseQuery(strings.TrimPrefix(cursor, "?"))
	if err != nil {
		return nil, fmt.Errorf("invalid continuation cursor %q: %w", cursor, err)
	}
	for key, values := range base {
		if _, ok := next[key]; !ok && len(values) > 0 {
			next.Set(key, values[0])
		}
	}
	return next, nil
}

// calculateBackoff determines the retry delay duration using exponential backoff.
// It ensures the backoff duration stays within defined minimum and maximum bounds.
func calculateBackoff(retryCount int, base time.Duration) time.Duration {
	const (
		minBackoff = 100 * time.Millisecond
		maxBackoff = 30 * time.Second
	)

	backoff := base * time.Duration(1<<retryCount)

	if backoff < minBackoff {
		return minBackoff
	}
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}
