package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const searchResponse = `{
	"statuses": [{
		"id": 11,
		"text": "Loving this! :) check http://example.com/x @bob RT",
		"user": {"id": 1, "screen_name": "alice"},
		"created_at": "Wed Oct 14 09:00:00 +0000 2026",
		"entities": {"user_mentions": []}
	}],
	"search_metadata": {}
}`

func setEnv(key, value string) {
	if old, ok := os.LookupEnv(key); ok {
		DeferCleanup(os.Setenv, key, old)
	} else {
		DeferCleanup(os.Unsetenv, key)
	}
	Expect(os.Setenv(key, value)).To(Succeed())
}

var _ = Describe("twitanalysis", func() {
	var (
		logger   *logrus.Logger
		server   *httptest.Server
		requests atomic.Int32
		dir      string
	)

	execute := func(args ...string) (string, error) {
		var out bytes.Buffer
		root := NewRootCommand(logger)
		root.SetOut(&out)
		root.SetErr(io.Discard)
		root.SetArgs(args)
		err := root.ExecuteContext(context.Background())
		return out.String(), err
	}

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
		requests.Store(0)

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			fmt.Fprint(w, searchResponse)
		}))
		DeferCleanup(server.Close)

		for _, key := range []string{
			"TWITTER_CONSUMER_KEY", "TWITTER_CONSUMER_SECRET", "TWITTER_ACCESS_TOKEN",
			"TWITTER_ACCESS_TOKEN_SECRET", "TWITTER_BEARER_TOKEN",
		} {
			setEnv(key, "")
		}
		setEnv("TWITTER_API_BASE_URL", server.URL)
		setEnv("DB_ENGINE", "sqlite")

		var err error
		dir, err = os.MkdirTemp("", "twitanalysis")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
	})

	It("should harvest, annotate and write metrics", func() {
		dbPath := filepath.Join(dir, "tweets.db")
		metricsPath := filepath.Join(dir, "run.prom")

		out, err := execute("run",
			"--bearer-token", "token",
			"--db-name", dbPath,
			"--terms", "golang",
			"--metrics-file", metricsPath,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(Equal(int32(1)))

		var s summary
		Expect(yaml.Unmarshal([]byte(out), &s)).To(Succeed())
		Expect(s.RunID).NotTo(BeEmpty())
		Expect(s.Searches).To(HaveLen(1))
		Expect(s.Searches[0].Inserted).To(Equal(1))
		Expect(s.Passes).To(HaveLen(4))
		Expect(s.Totals).To(Equal(totals{Tweets: 1, Resources: 1, ResourceLinks: 1}))

		data, err := os.ReadFile(metricsPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`twitanalysis_tweets_inserted_total{terms="golang"} 1`))

		out, err = execute("annotate", "--db-name", dbPath, "--passes", "emoticon")
		Expect(err).NotTo(HaveOccurred())
		Expect(yaml.Unmarshal([]byte(out), &s)).To(Succeed())
		Expect(s.Passes).To(HaveLen(1))
		Expect(s.Passes[0].Updated).To(Equal(1))
	})

	It("should fail on missing credentials before touching the store", func() {
		dbPath := filepath.Join(dir, "tweets.db")

		_, err := execute("harvest", "--db-name", dbPath, "--terms", "golang")
		var missing *twitter.MissingCredentialError
		Expect(errors.As(err, &missing)).To(BeTrue())
		Expect(dbPath).NotTo(BeAnExistingFile())
	})

	It("should fail on a bad geofilter without sending a request", func() {
		_, err := execute("harvest",
			"--bearer-token", "token",
			"--db-name", filepath.Join(dir, "tweets.db"),
			"--terms", "golang",
			"--lat", "91", "--long", "181", "--radius", "10",
		)
		var invalid *twitter.ValidationError
		Expect(errors.As(err, &invalid)).To(BeTrue())
		Expect(requests.Load()).To(Equal(int32(0)))
	})

	It("should reject --geofilter before dialing the database", func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(listener.Close)

		var dials atomic.Int32
		go func() {
			for {
				conn, err := listener.Accept()
				if err != nil {
					return
				}
				dials.Add(1)
				conn.Close()
			}
		}()

		_, port, err := net.SplitHostPort(listener.Addr().String())
		Expect(err).NotTo(HaveOccurred())

		_, err = execute("harvest",
			"--bearer-token", "token",
			"--engine", "postgres",
			"--db-host", "127.0.0.1",
			"--db-port", port,
			"--db-user", "u",
			"--db-name", "tweets",
			"--terms", "golang",
			"--geofilter", "91,181,10km",
		)
		var invalid *twitter.ValidationError
		Expect(errors.As(err, &invalid)).To(BeTrue())
		Expect(invalid.Field).To(Equal("geofilter"))
		Expect(dials.Load()).To(BeZero())
		Expect(requests.Load()).To(BeZero())
	})

	It("should fail when the store cannot be opened", func() {
		_, err := execute("annotate", "--db-name", filepath.Join(dir, "missing", "tweets.db"))
		var se *storeError
		Expect(errors.As(err, &se)).To(BeTrue())
	})

	It("should reject unknown passes", func() {
		_, err := execute("annotate", "--db-name", filepath.Join(dir, "tweets.db"), "--passes", "sentiment")
		var invalid *twitter.ValidationError
		Expect(errors.As(err, &invalid)).To(BeTrue())
		Expect(invalid.Field).To(Equal("passes"))
	})

	It("should migrate a sqlite store", func() {
		out, err := execute("migrate", "--db-name", filepath.Join(dir, "tweets.db"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("schema up to date"))
	})
})
