// Package convergence derives the bounded η score stored in every recap.
package convergence

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// Floor is the score of a recap built from no input at all.
	Floor = 0.70
	// DefaultMax caps the score when callers do not supply their own ceiling.
	DefaultMax = 0.95

	maxLengthBonus = 0.15
	maxMotifBonus  = 0.10
	displayPrefix  = "η ≈ "
)

// Compute maps the input word count and motif count into [Floor, max].
func Compute(words, motifs int, max float64) float64 {
	if words <= 0 {
		return Floor
	}
	if max <= 0 {
		max = DefaultMax
	}
	if motifs < 0 {
		motifs = 0
	}
	length := math.Min(float64(words)/200, maxLengthBonus)
	richness := math.Min(float64(motifs)/5, maxMotifBonus)
	return math.Min(Floor+length+richness, max)
}

// Display renders the score the way it is stored in frontmatter. Only two
// decimals survive; the raw value is not persisted anywhere else.
func Display(score float64) string {
	return fmt.Sprintf("%s%.2f", displayPrefix, score)
}

// ParseDisplay recovers the two-decimal score from a display string.
func ParseDisplay(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(trimmed, "η")
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimPrefix(trimmed, "≈")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return 0, fmt.Errorf("convergence: empty display value %q", value)
	}
	score, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("convergence: parse %q: %w", value, err)
	}
	return score, nil
}
