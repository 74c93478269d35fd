package extract_test

import (
	"encoding/json"

	"github.com/lisanmuaddib/twitanalysis/pkg/extract"
	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func rawTweet(doc string) twitter.RawTweet {
	var raw twitter.RawTweet
	Expect(json.Unmarshal([]byte(doc), &raw)).To(Succeed())
	return raw
}

var _ = Describe("Field extraction", func() {
	Context("with a complete record", func() {
		It("should map every rule onto its column", func() {
			raw := rawTweet(`{
				"id": 1001,
				"text": "hello @bob",
				"user": {"id": 42, "screen_name": "alice"},
				"in_reply_to_status_id_str": "900",
				"in_reply_to_user_id_str": "43",
				"retweet_count": 7,
				"created_at": "Mon Oct 12 10:00:00 +0000 2026",
				"metadata": {"iso_language_code": "en", "result_type": "recent"},
				"geo": {"type": "Point", "coordinates": [37.78, -122.4]}
			}`)

			tweet, err := extract.Apply(extract.Rules, raw, "golang")
			Expect(err).NotTo(HaveOccurred())

			Expect(tweet.ID).To(Equal(int64(1001)))
			Expect(tweet.Text).To(Equal("hello @bob"))
			Expect(tweet.Terms).To(Equal("golang"))
			Expect(tweet.FromUser).To(Equal("alice"))
			Expect(tweet.FromUserID).To(Equal(int64(42)))
			Expect(tweet.InReplyToStatus).To(HaveValue(Equal(int64(900))))
			Expect(tweet.InReplyToUser).To(HaveValue(Equal(int64(43))))
			Expect(tweet.RetweetCount).To(Equal(7))
			Expect(tweet.CreatedAt).To(Equal("Mon Oct 12 10:00:00 +0000 2026"))
			Expect(tweet.ISOLanguageCode).To(HaveValue(Equal("en")))
			Expect(tweet.Geo).To(HaveValue(Equal("37.78,-122.4")))
			Expect(tweet.Retweeted).To(BeFalse())
			Expect(tweet.Emoticon).To(BeNil())
			Expect(tweet.CleanText).To(BeNil())
		})
	})

	Context("with missing or null source fields", func() {
		It("should leave the destination columns unset", func() {
			raw := rawTweet(`{"id": 5, "text": "plain", "geo": null, "in_reply_to_status_id_str": null}`)

			tweet, err := extract.Apply(extract.Rules, raw, "t")
			Expect(err).NotTo(HaveOccurred())
			Expect(tweet.ID).To(Equal(int64(5)))
			Expect(tweet.Geo).To(BeNil())
			Expect(tweet.InReplyToStatus).To(BeNil())
			Expect(tweet.ISOLanguageCode).To(BeNil())
			Expect(tweet.FromUser).To(BeEmpty())
		})

		It("should treat the 0 reply sentinel as not a reply", func() {
			raw := rawTweet(`{"id": 6, "in_reply_to_status_id_str": "0", "in_reply_to_user_id_str": "0"}`)

			tweet, err := extract.Apply(extract.Rules, raw, "t")
			Expect(err).NotTo(HaveOccurred())
			Expect(tweet.InReplyToStatus).To(BeNil())
			Expect(tweet.InReplyToUser).To(BeNil())
		})
	})

	Context("with non-point geometry", func() {
		It("should not record a location", func() {
			geo, err := extract.GeoPoint(json.RawMessage(`{"type": "Polygon", "coordinates": [1, 2]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(geo).To(BeNil())
		})
	})

	Context("with a malformed field", func() {
		It("should name the failing column", func() {
			raw := rawTweet(`{"id": "not-a-number"}`)

			_, err := extract.Apply(extract.Rules, raw, "t")
			Expect(err).To(MatchError(ContainSubstring("extracting id")))
		})
	})

	Context("when reading user mentions", func() {
		It("should return one link per mentioned user", func() {
			raw := rawTweet(`{"id": 9, "entities": {"user_mentions": [
				{"id": 1, "screen_name": "bob"},
				{"id": 2, "screen_name": "carol"}
			]}}`)

			mentions, err := extract.UserMentions(9, raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(mentions).To(HaveLen(2))
			Expect(mentions[0].TweetID).To(Equal(int64(9)))
			Expect(mentions[0].User).To(Equal("bob"))
			Expect(mentions[1].UserID).To(Equal(int64(2)))
		})

		It("should return nothing without entity metadata", func() {
			mentions, err := extract.UserMentions(9, rawTweet(`{"id": 9}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(mentions).To(BeEmpty())

			mentions, err = extract.UserMentions(9, rawTweet(`{"id": 9, "entities": {"user_mentions": []}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(mentions).To(BeEmpty())
		})
	})
})
