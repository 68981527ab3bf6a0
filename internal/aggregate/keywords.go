package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

// Keyword is a difficulty token and how often it occurred.
type Keyword struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// NoKeywords is written when a window has no difficulty text.
const NoKeywords = "no recurring difficulties"

// isSeparator splits on whitespace and on ASCII, full-width and ideographic commas.
func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == ',' || r == '，' || r == '、'
}

// Counter tallies tokens across many texts, remembering first-seen order.
type Counter struct {
	counts map[string]int
	order  []string
	stop   *stopwords.Stopwords
}

// NewCounter returns a counter. With filterStopwords, common English words
// are discarded.
func NewCounter(filterStopwords bool) *Counter {
	c := &Counter{counts: make(map[string]int)}
	if filterStopwords {
		c.stop = stopwords.MustGet("en")
	}
	return c
}

// Add tokenizes text and counts each token.
func (c *Counter) Add(text string) {
	for _, tok := range strings.FieldsFunc(text, isSeparator) {
		if c.stop != nil && c.stop.Contains(strings.ToLower(tok)) {
			continue
		}
		if _, seen := c.counts[tok]; !seen {
			c.order = append(c.order, tok)
		}
		c.counts[tok]++
	}
}

// Top returns the n most frequent tokens. Ties keep first-seen order.
func (c *Counter) Top(n int) []Keyword {
	out := make([]Keyword, 0, len(c.order))
	for _, w := range c.order {
		out = append(out, Keyword{Word: w, Count: c.counts[w]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopKeywords counts tokens across texts and returns the n most frequent.
func TopKeywords(texts []string, n int, filterStopwords bool) []Keyword {
	c := NewCounter(filterStopwords)
	for _, t := range texts {
		c.Add(t)
	}
	return c.Top(n)
}

// FormatKeywords renders keywords as "word(count×)" joined by "; ".
func FormatKeywords(kws []Keyword) string {
	if len(kws) == 0 {
		return NoKeywords
	}
	parts := make([]string, len(kws))
	for i, k := range kws {
		parts[i] = fmt.Sprintf("%s(%d×)", k.Word, k.Count)
	}
	return strings.Join(parts, "; ")
}
