// Package scoring classifies posts by keyword form and accumulates per-user
// tallies. It is pure: point-to-coin conversion happens on-chain.
package scoring

import (
	"strings"

	"github.com/gmcoin/mintworker/internal/core/domain"
)

// Category is the processing type assigned to a post.
type Category uint8

const (
	Skipped Category = iota
	Simple
	Hashtag
	Cashtag
)

func (c Category) String() string {
	switch c {
	case Simple:
		return "simple"
	case Hashtag:
		return "hashtag"
	case Cashtag:
		return "cashtag"
	default:
		return "skipped"
	}
}

// Daily per-user caps on the boosted categories. Enforced at scoring time:
// the 11th qualifying hashtag or cashtag post degrades to Skipped, it is
// never reclassified to Simple.
const (
	maxHashtagPerDay = 10
	maxCashtagPerDay = 10
)

// wordCutset is stripped from word edges before matching.
const wordCutset = ".,!?;:()@"

// Engine matches one configured keyword in its cashtag, hashtag and bare
// forms. The keyword is injected, not a package-level constant.
type Engine struct {
	bare    string
	hashtag string
	cashtag string
}

func NewEngine(keyword string) *Engine {
	kw := strings.ToLower(keyword)
	return &Engine{
		bare:    kw,
		hashtag: "#" + kw,
		cashtag: "$" + kw,
	}
}

// Classify scans words left to right and returns the highest-priority
// qualifying form found anywhere in the content: cashtag > hashtag > bare.
// Matching is case-insensitive and word-boundary based after stripping the
// fixed punctuation set, so "GM!" matches and "gmgm" does not.
func (e *Engine) Classify(content string) Category {
	best := Skipped
	for _, word := range strings.Fields(content) {
		w := strings.ToLower(strings.Trim(word, wordCutset))
		switch w {
		case e.cashtag:
			return Cashtag
		case e.hashtag:
			if best < Hashtag {
				best = Hashtag
			}
		case e.bare:
			if best < Simple {
				best = Simple
			}
		}
	}
	return best
}

// Score classifies the content and applies it to the tally. Posts over a
// category cap and posts matching no form contribute nothing, likes
// included.
func (e *Engine) Score(tally *domain.Result, likesCount int, content string) Category {
	category := e.Classify(content)

	switch category {
	case Cashtag:
		if tally.CashtagTweets >= maxCashtagPerDay {
			return Skipped
		}
		tally.CashtagTweets++
	case Hashtag:
		if tally.HashtagTweets >= maxHashtagPerDay {
			return Skipped
		}
		tally.HashtagTweets++
	case Simple:
		tally.SimpleTweets++
	default:
		return Skipped
	}

	tally.Tweets++
	tally.Likes += uint32(likesCount)
	return category
}
