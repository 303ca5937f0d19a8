// Package motif pulls the recurring terms out of free text. Motifs anchor every
// stage of a recap and are stored verbatim in the document frontmatter.
package motif

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMax is the number of motifs collected when callers pass a
// non-positive cap.
const DefaultMax = 5

const (
	// NoMotifs is returned for empty input text.
	NoMotifs = "[no motifs detected]"
	// NoStrongMotifs is returned when every token was filtered out.
	NoStrongMotifs = "[no strong motifs detected]"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "being": {}, "been": {},
}

type term struct {
	word  string
	count int
	first int
}

// Extract returns up to max motifs ordered by descending frequency. Ties keep
// the order in which the terms first appeared. The result is never empty: a
// sentinel stands in when nothing qualifies.
func Extract(text string, max int) []string {
	if max <= 0 {
		max = DefaultMax
	}
	if text == "" {
		return []string{NoMotifs}
	}
	ranked := rank(strings.ToLower(text))
	if limit := max * 2; len(ranked) > limit {
		ranked = ranked[:limit]
	}
	motifs := make([]string, 0, max)
	seen := map[string]struct{}{}
	for _, t := range ranked {
		if _, ok := seen[t.word]; !ok {
			motifs = append(motifs, capitalize(t.word))
			seen[t.word] = struct{}{}
		}
		if len(motifs) >= max {
			break
		}
	}
	if len(motifs) == 0 {
		return []string{NoStrongMotifs}
	}
	return motifs
}

func rank(lowered string) []term {
	index := map[string]int{}
	var terms []term
	for _, word := range wordPattern.FindAllString(lowered, -1) {
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		if idx, ok := index[word]; ok {
			terms[idx].count++
			continue
		}
		index[word] = len(terms)
		terms = append(terms, term{word: word, count: 1, first: len(terms)})
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		return terms[i].first < terms[j].first
	})
	return terms
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}

// IsSentinel reports whether value is one of the "no motifs" placeholders.
func IsSentinel(value string) bool {
	return value == NoMotifs || value == NoStrongMotifs
}

// Count returns the number of real (non-sentinel) motifs in the list.
func Count(motifs []string) int {
	n := 0
	for _, m := range motifs {
		if strings.TrimSpace(m) == "" || IsSentinel(m) {
			continue
		}
		n++
	}
	return n
}
