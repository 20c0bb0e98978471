package extract

import (
	"sort"
	"strings"
)

// Summarize truncates body to a leading word count. Pure and stateless.
func Summarize(body string, maxWords int) string {
	if maxWords <= 0 {
		return body
	}
	words := strings.Fields(body)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// KeyPhrases returns the configured terms that occur in text, ordered by
// occurrence count descending. limit <= 0 returns all hits.
func KeyPhrases(text string, terms []string, limit int) []string {
	lower := strings.ToLower(text)

	type hit struct {
		term  string
		count int
	}
	var hits []hit
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if n := strings.Count(lower, t); n > 0 {
			hits = append(hits, hit{term: t, count: n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].count > hits[j].count
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.term
	}
	return out
}

// KeywordHits counts how many distinct terms occur in text at least once.
func KeywordHits(text string, terms []string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return hits
}
