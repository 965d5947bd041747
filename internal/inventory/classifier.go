package inventory

import (
	"regexp"
	"strings"
)

// Classify maps call text to a Status.
//
// The rules below are evaluated in order and the first match wins. Order is
// load-bearing: the phrase sets overlap ("not in stock" contains "in stock"),
// and a voicemail greeting can contain stock-sounding words. "not available"
// reads as an unreachable callee, so it resolves to no_answer even when a
// clerk says it about the item.
//
// Classify is pure: same inputs, same output, no I/O.
func Classify(transcript, summary string) Status {
	text := strings.ToLower(strings.TrimSpace(transcript + " " + summary))
	if text == "" {
		return StatusUnknown
	}
	for _, r := range rules {
		if !r.matches(text) {
			continue
		}
		for _, sub := range r.refinements {
			if sub.matches(text) {
				return sub.status
			}
		}
		return r.status
	}
	return StatusUnknown
}

type rule struct {
	status   Status
	patterns []*regexp.Regexp
	// refinements are checked only after the rule itself matched.
	refinements []rule
}

func (r rule) matches(text string) bool {
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// phrases compiles literal phrases.
func phrases(ps ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(ps))
	for _, p := range ps {
		out = append(out, regexp.MustCompile(regexp.QuoteMeta(p)))
	}
	return out
}

// patterns compiles phrases that are already regular expressions.
func patterns(ps ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(ps))
	for _, p := range ps {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func join(sets ...[]*regexp.Regexp) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

var (
	noAnswerPhrases = phrases(
		"no answer", "voicemail", "didn't pick up", "couldn't reach",
		"busy signal", "not available", "leave a message", "after the tone", "mailbox",
	)

	outOfStockPhrases = phrases(
		"not in stock", "out of stock", "don't have", "do not have",
		"don't carry", "do not carry", "sold out",
		"currently out", "wasn't in stock", "was not in stock",
		"weren't in stock", "were not in stock", "isn't in stock",
		"is not in stock", "aren't in stock", "are not in stock",
		"doesn't have", "does not have", "didn't have", "did not have",
		"unavailable", "no longer", "discontinued", "can't get",
		"cannot get", "unable to", "don't currently have",
		"do not currently have", "not currently in stock",
		"currently not in stock", "currently unavailable",
	)

	waitlistOffers = join(
		phrases(
			"waitlist", "waiting list", "wait list", "interest list",
			"put you on a list", "add you to a list", "notify you",
			"call you when", "contact you when", "let you know when",
			"take your information", "client book", "client list",
			"come into the store", "stop by", "in-store visit", "in store visit",
			"happy to add you", "add you if you",
		),
		patterns(`register.*interest`, `visit.*store`),
	)

	orderOffers = join(
		phrases(
			"can order", "could order", "special order", "order it for you",
			"order one for you", "place an order", "get it in",
			"take a few weeks", "take some time", "within a month", "more coming",
		),
		patterns(`expect.*shipment`, `expecting.*shipment`),
	)

	inStockPhrases = phrases(
		"we have it", "we do have", "yes we have", "yes, we have", "have it in stock",
		"have one in stock", "have them in stock", "is in stock",
		"are in stock", "it's available", "it is available",
		"they're available", "they are available", "got it",
		"got one", "got them", "have that", "have the",
		"currently have", "do have it", "in stock now",
		"available now", "ready for", "can come in today",
		"come pick it up", "have it here",
	)

	bareWaitlistPhrases = phrases("waitlist", "waiting list", "wait list", "interest list")

	bareOrderPhrases = phrases("can order", "special order")
)

var rules = []rule{
	{status: StatusNoAnswer, patterns: noAnswerPhrases},
	{
		status:   StatusOutOfStock,
		patterns: outOfStockPhrases,
		refinements: []rule{
			{status: StatusWaitlist, patterns: waitlistOffers},
			{status: StatusCanOrder, patterns: orderOffers},
		},
	},
	{status: StatusInStock, patterns: inStockPhrases},
	{status: StatusWaitlist, patterns: bareWaitlistPhrases},
	{status: StatusCanOrder, patterns: bareOrderPhrases},
}
