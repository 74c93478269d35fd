package annotate

import (
	"regexp"
	"strings"

	"github.com/lisanmuaddib/twitanalysis/pkg/db/models"
)

var (
	positivePattern = regexp.MustCompile(`[:=]-?[)DpP]`)
	negativePattern = regexp.MustCompile(`[:=]-?[(<]`)

	// RE2 has no lookbehind, so the preceding non-word character (or start
	// of text) is captured and kept on removal.
	retweetPattern = regexp.MustCompile(`(^|[^\w])RT:?(\s|$)`)

	urlPattern     = regexp.MustCompile(`https?://(?:[A-Za-z0-9-]+\.)+[A-Za-z]{2,63}(?:/[\w\-.~/?=&%#+]*)?`)
	mentionPattern = regexp.MustCompile(`@\w{1,15}`)
)

// Classify returns ":)" when text holds only positive emoticons, ":(" when
// it holds only negative ones, and "" otherwise.
func Classify(text string) string {
	positive := positivePattern.MatchString(text)
	negative := negativePattern.MatchString(text)
	switch {
	case positive && !negative:
		return models.EmoticonPositive
	case negative && !positive:
		return models.EmoticonNegative
	default:
		return ""
	}
}

// IsRetweet reports whether text carries a standalone RT marker
func IsRetweet(text string) bool {
	return retweetPattern.MatchString(text)
}

// FindURLs returns every URL in text, in order of appearance
func FindURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Clean strips emoticons, retweet markers, URLs and mentions, then collapses
// whitespace. Removal repeats until nothing matches, since deleting one
// token can join its neighbours into a new match.
func Clean(text string) string {
	for {
		next := positivePattern.ReplaceAllString(text, "")
		next = negativePattern.ReplaceAllString(next, "")
		next = retweetPattern.ReplaceAllString(next, "$1$2")
		next = urlPattern.ReplaceAllString(next, "")
		next = mentionPattern.ReplaceAllString(next, "")
		if next == text {
			break
		}
		text = next
	}
	return strings.Join(strings.Fields(text), " ")
}
