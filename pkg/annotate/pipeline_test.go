package annotate_test

import (
	"context"
	"errors"
	"io"

	"github.com/lisanmuaddib/twitanalysis/pkg/annotate"
	"github.com/lisanmuaddib/twitanalysis/pkg/db/models"
	"github.com/lisanmuaddib/twitanalysis/pkg/store"
	"github.com/lisanmuaddib/twitanalysis/pkg/store/memstore"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

// failingStore rejects clean text writes
type failingStore struct {
	store.Store
}

func (f *failingStore) SetCleanText(ctx context.Context, texts map[int64]string) error {
	return errors.New("disk full")
}

var _ = Describe("Pipeline", func() {
	var (
		ctx    context.Context
		logger *logrus.Logger
		mem    *memstore.Store
	)

	insert := func(id int64, text string) {
		Expect(mem.InsertTweet(ctx, &models.Tweet{ID: id, Text: text, Terms: "t"})).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		logger = logrus.New()
		logger.SetOutput(io.Discard)
		mem = memstore.New()
	})

	Context("when running every pass", func() {
		It("should annotate a tweet end to end", func() {
			insert(1, "Loving this! :) check http://example.com/x @bob RT")

			results, err := annotate.NewPipeline(logger).Run(ctx, mem)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))

			tweet, ok := mem.Tweet(1)
			Expect(ok).To(BeTrue())
			Expect(tweet.Emoticon).To(HaveValue(Equal(":)")))
			Expect(tweet.Retweeted).To(BeTrue())
			Expect(tweet.CleanText).To(HaveValue(Equal("Loving this! check")))

			counts, err := mem.Counts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts.Resources).To(Equal(int64(1)))
			Expect(counts.ResourceLinks).To(Equal(int64(1)))
			Expect(counts.UserMentionLinks).To(Equal(int64(0)))
		})

		It("should never assign both emoticon classes", func() {
			insert(1, "happy :)")
			insert(2, "sad :(")
			insert(3, "both :) :(")
			insert(4, "neither")

			_, err := annotate.NewPipeline(logger, annotate.EmoticonPass{}).Run(ctx, mem)
			Expect(err).NotTo(HaveOccurred())

			t1, _ := mem.Tweet(1)
			t2, _ := mem.Tweet(2)
			t3, _ := mem.Tweet(3)
			t4, _ := mem.Tweet(4)
			Expect(t1.Emoticon).To(HaveValue(Equal(":)")))
			Expect(t2.Emoticon).To(HaveValue(Equal(":(")))
			Expect(t3.Emoticon).To(BeNil())
			Expect(t4.Emoticon).To(BeNil())
		})

		It("should link repeated URLs once per tweet and register each URL once", func() {
			insert(1, "http://example.com/a http://example.com/a")
			insert(2, "again http://example.com/a and http://example.com/b")

			pipeline := annotate.NewPipeline(logger, annotate.ResourcePass{})
			_, err := pipeline.Run(ctx, mem)
			Expect(err).NotTo(HaveOccurred())
			_, err = pipeline.Run(ctx, mem)
			Expect(err).NotTo(HaveOccurred())

			counts, err := mem.Counts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts.Resources).To(Equal(int64(2)))
			Expect(counts.ResourceLinks).To(Equal(int64(3)))
		})

		It("should leave non-retweets untouched", func() {
			insert(1, "RT @bob: hi")
			insert(2, "ART gallery")

			results, err := annotate.NewPipeline(logger, annotate.RetweetPass{}).Run(ctx, mem)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Updated).To(Equal(1))

			t2, _ := mem.Tweet(2)
			Expect(t2.Retweeted).To(BeFalse())
		})
	})

	Context("when a pass fails", func() {
		It("should stop the run and keep earlier passes applied", func() {
			insert(1, "RT happy :)")

			results, err := annotate.NewPipeline(logger).Run(ctx, &failingStore{Store: mem})
			Expect(err).To(MatchError(ContainSubstring("clean pass")))
			Expect(results).To(HaveLen(2))

			tweet, _ := mem.Tweet(1)
			Expect(tweet.Emoticon).To(HaveValue(Equal(":)")))
			Expect(tweet.Retweeted).To(BeTrue())
			Expect(tweet.CleanText).To(BeNil())
		})
	})

	Context("when selecting passes by name", func() {
		It("should keep pipeline order", func() {
			passes, err := annotate.SelectPasses([]string{"resources", "Emoticon"})
			Expect(err).NotTo(HaveOccurred())
			Expect(passes).To(HaveLen(2))
			Expect(passes[0].Name()).To(Equal(annotate.PassEmoticon))
			Expect(passes[1].Name()).To(Equal(annotate.PassResources))
		})

		It("should select every pass for an empty list", func() {
			passes, err := annotate.SelectPasses(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(passes).To(HaveLen(4))
		})

		It("should reject unknown names", func() {
			_, err := annotate.SelectPasses([]string{"sentiment"})
			Expect(err).To(MatchError(ContainSubstring("unknown annotation pass")))
		})
	})
})
