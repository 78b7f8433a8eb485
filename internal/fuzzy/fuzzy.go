// Package fuzzy suggests a close flag name for an unrecognized option.
package fuzzy

import "sort"

// DefaultThreshold is the minimum similarity for a name to be suggested.
const DefaultThreshold = 0.7

// Matcher finds the candidate most similar to an input name.
type Matcher struct {
	threshold float64
	minLength int
}

// NewMatcher creates a matcher that only suggests candidates whose
// similarity is strictly above threshold.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{
		threshold: threshold,
		minLength: 2, // no bigrams below this
	}
}

// Match is a candidate with its similarity score.
type Match struct {
	Value string
	Score float64 // 0.0 to 1.0
}

// FindBest returns the best matching candidate or "" if none clears the threshold.
func (m *Matcher) FindBest(input string, candidates []string) string {
	matches := m.FindMatches(input, candidates)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Value
}

// FindMatches returns every candidate above the threshold, best first.
// Ties keep the candidate order.
func (m *Matcher) FindMatches(input string, candidates []string) []Match {
	if len(input) < m.minLength {
		return nil
	}

	var matches []Match
	for _, c := range candidates {
		if c == input {
			continue
		}
		if score := Similarity(input, c); score > m.threshold {
			matches = append(matches, Match{Value: c, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Similarity is the Dice coefficient over character bigrams of a and b.
// Comparison is case-sensitive, matching how flag names are looked up.
func Similarity(a, b string) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 0
	}
	total := len(a) - 1 + len(b) - 1
	hits := 0
	for i := 0; i < len(a)-1; i++ {
		for j := 0; j < len(b)-1; j++ {
			if a[i] == b[j] && a[i+1] == b[j+1] {
				hits++
				break
			}
		}
	}
	return 2 * float64(hits) / float64(total)
}
