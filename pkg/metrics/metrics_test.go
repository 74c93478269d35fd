package metrics_test

import (
	"os"
	"path/filepath"

	"github.com/lisanmuaddib/twitanalysis/pkg/annotate"
	"github.com/lisanmuaddib/twitanalysis/pkg/ingest"
	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
	"github.com/lisanmuaddib/twitanalysis/pkg/metrics"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("RunMetrics", func() {
	var m *metrics.RunMetrics

	BeforeEach(func() {
		m = metrics.New()
	})

	It("should count ingestion per search terms", func() {
		m.RecordIngest("golang", &ingest.Stats{Pages: 2, Received: 5, Inserted: 3, Duplicates: 2, Mentions: 1})
		m.RecordIngest("golang", &ingest.Stats{
			Pages:    1,
			Received: 1,
			Inserted: 1,
			Stopped:  &twitter.TransportError{Page: 2, StatusCode: 503},
		})

		Expect(testutil.ToFloat64(m.PagesTotal.WithLabelValues("golang"))).To(Equal(3.0))
		Expect(testutil.ToFloat64(m.TweetsInsertedTotal.WithLabelValues("golang"))).To(Equal(4.0))
		Expect(testutil.ToFloat64(m.TweetsDuplicateTotal.WithLabelValues("golang"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.TransportFailuresTotal.WithLabelValues("golang", "503"))).To(Equal(1.0))
	})

	It("should count pass updates and failures", func() {
		m.RecordPasses([]annotate.Result{
			{Pass: annotate.PassEmoticon, Updated: 4},
			{Pass: annotate.PassResources, Updated: 2, Links: 3},
		}, annotate.PassClean)

		Expect(testutil.ToFloat64(m.PassUpdatesTotal.WithLabelValues(annotate.PassEmoticon))).To(Equal(4.0))
		Expect(testutil.ToFloat64(m.PassUpdatesTotal.WithLabelValues(annotate.PassResources))).To(Equal(5.0))
		Expect(testutil.ToFloat64(m.PassErrorsTotal.WithLabelValues(annotate.PassClean))).To(Equal(1.0))
	})

	It("should write a textfile", func() {
		m.RecordIngest("golang", &ingest.Stats{Pages: 1, Received: 1, Inserted: 1})
		dir, err := os.MkdirTemp("", "metrics")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
		path := filepath.Join(dir, "twitanalysis.prom")

		Expect(m.WriteTextfile(path)).To(Succeed())
		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`twitanalysis_tweets_inserted_total{terms="golang"} 1`))
	})
})
