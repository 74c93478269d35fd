package harvest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/lisanmuaddib/twitanalysis/pkg/harvest"
	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
	"github.com/lisanmuaddib/twitanalysis/pkg/metrics"
	"github.com/lisanmuaddib/twitanalysis/pkg/store/sqlitestore"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

const firstPage = `{
	"statuses": [{
		"id": 11,
		"text": "Loving this! :) check http://example.com/x @bob RT",
		"user": {"id": 1, "screen_name": "alice"},
		"in_reply_to_status_id_str": "0",
		"created_at": "Wed Oct 14 09:00:00 +0000 2026",
		"retweet_count": 0,
		"metadata": {"iso_language_code": "en"},
		"entities": {"user_mentions": []}
	}],
	"search_metadata": {"next_results": "?max_id=10&q=golang&include_entities=1"}
}`

const secondPage = `{
	"statuses": [{
		"id": 10,
		"text": "so tired :( @carol",
		"user": {"id": 2, "screen_name": "dave"},
		"created_at": "Wed Oct 14 08:00:00 +0000 2026",
		"entities": {"user_mentions": [{"id": 3, "screen_name": "carol"}]}
	}],
	"search_metadata": {}
}`

var _ = Describe("Harvester", func() {
	var (
		ctx      context.Context
		logger   *logrus.Logger
		server   *httptest.Server
		requests atomic.Int32
		st       *sqlitestore.Store
		client   *twitter.TwitterClient
		m        *metrics.RunMetrics
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = logrus.New()
		logger.SetOutput(io.Discard)
		requests.Store(0)

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("max_id") == "10" {
				fmt.Fprint(w, secondPage)
				return
			}
			fmt.Fprint(w, firstPage)
		}))
		DeferCleanup(server.Close)

		var err error
		st, err = sqlitestore.Open(ctx, logger, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.Close)

		client, err = twitter.NewTwitterClient(&twitter.TwitterConfig{
			Credentials:    twitter.Credentials{BearerToken: "token"},
			BaseURL:        server.URL,
			SearchEndpoint: twitter.DefaultSearchEndpoint,
			PageSize:       100,
			MaxPages:       5,
			RateLimit:      1000,
			RateWindow:     1,
			RetryAttempts:  1,
			RetryBackoff:   time.Millisecond,
			RequestTimeout: 5 * time.Second,
			Logger:         logger,
		})
		Expect(err).NotTo(HaveOccurred())

		m = metrics.New()
	})

	It("should harvest and annotate a search end to end", func() {
		h, err := harvest.New(harvest.Config{Searcher: client, Store: st, Metrics: m, Logger: logger})
		Expect(err).NotTo(HaveOccurred())
		Expect(h.RunID()).NotTo(BeEmpty())

		report, err := h.Run(ctx, []twitter.SearchParams{{Terms: "golang"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(Equal(int32(2)))

		Expect(report.Searches).To(HaveLen(1))
		Expect(report.Searches[0].Stats.Inserted).To(Equal(2))
		Expect(report.Passes).To(HaveLen(4))
		Expect(report.Counts.Tweets).To(Equal(int64(2)))
		Expect(report.Counts.Resources).To(Equal(int64(1)))
		Expect(report.Counts.ResourceLinks).To(Equal(int64(1)))
		Expect(report.Counts.UserMentionLinks).To(Equal(int64(1)))

		tweets, err := st.AllTweets(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(tweets).To(HaveLen(2))

		e2e := tweets[1]
		Expect(e2e.ID).To(Equal(int64(11)))
		Expect(e2e.Terms).To(Equal("golang"))
		Expect(e2e.Emoticon).To(HaveValue(Equal(":)")))
		Expect(e2e.Retweeted).To(BeTrue())
		Expect(e2e.CleanText).To(HaveValue(Equal("Loving this! check")))
		Expect(e2e.InReplyToStatus).To(BeNil())
		Expect(e2e.ISOLanguageCode).To(HaveValue(Equal("en")))

		Expect(tweets[0].Emoticon).To(HaveValue(Equal(":(")))
		Expect(tweets[0].Retweeted).To(BeFalse())

		Expect(testutil.ToFloat64(m.TweetsInsertedTotal.WithLabelValues("golang"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.PagesTotal.WithLabelValues("golang"))).To(Equal(2.0))
	})

	It("should treat a replayed harvest as all duplicates", func() {
		h, err := harvest.New(harvest.Config{Searcher: client, Store: st, Metrics: m, Logger: logger})
		Expect(err).NotTo(HaveOccurred())

		_, err = h.Harvest(ctx, []twitter.SearchParams{{Terms: "golang"}})
		Expect(err).NotTo(HaveOccurred())
		reports, err := h.Harvest(ctx, []twitter.SearchParams{{Terms: "golang"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(reports[0].Stats.Inserted).To(Equal(0))
		Expect(reports[0].Stats.Duplicates).To(Equal(2))
		Expect(testutil.ToFloat64(m.TweetsDuplicateTotal.WithLabelValues("golang"))).To(Equal(2.0))
	})

	It("should reject a bad geofilter before any request", func() {
		h, err := harvest.New(harvest.Config{Searcher: client, Store: st, Logger: logger})
		Expect(err).NotTo(HaveOccurred())

		_, err = h.Harvest(ctx, []twitter.SearchParams{{Terms: "golang", Geofilter: "91,181,10km"}})
		var verr *twitter.ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(requests.Load()).To(Equal(int32(0)))

		counts, err := st.Counts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(counts.Tweets).To(Equal(int64(0)))
	})

	It("should not count tweets from a rolled back search", func() {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"statuses": [{"id": 1, "text": "ok"}, {"id": 2, "retweet_count": "many"}], "search_metadata": {}}`)
		}))
		DeferCleanup(bad.Close)

		badClient, err := twitter.NewTwitterClient(&twitter.TwitterConfig{
			Credentials:    twitter.Credentials{BearerToken: "token"},
			BaseURL:        bad.URL,
			SearchEndpoint: twitter.DefaultSearchEndpoint,
			PageSize:       100,
			MaxPages:       1,
			RateLimit:      1000,
			RateWindow:     1,
			RequestTimeout: 5 * time.Second,
			Logger:         logger,
		})
		Expect(err).NotTo(HaveOccurred())

		h, err := harvest.New(harvest.Config{Searcher: badClient, Store: st, Metrics: m, Logger: logger})
		Expect(err).NotTo(HaveOccurred())

		_, err = h.Harvest(ctx, []twitter.SearchParams{{Terms: "golang"}})
		Expect(err).To(MatchError(ContainSubstring("retweet_count")))

		counts, err := st.Counts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(counts.Tweets).To(BeZero())
		Expect(testutil.ToFloat64(m.TweetsInsertedTotal.WithLabelValues("golang"))).To(BeZero())
		Expect(testutil.ToFloat64(m.PagesTotal.WithLabelValues("golang"))).To(BeZero())
	})

	It("should annotate without a search client", func() {
		h, err := harvest.New(harvest.Config{Store: st, Logger: logger})
		Expect(err).NotTo(HaveOccurred())

		results, err := h.Annotate(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))

		_, err = h.Harvest(ctx, []twitter.SearchParams{{Terms: "golang"}})
		Expect(err).To(MatchError(ContainSubstring("search client")))
	})
})
