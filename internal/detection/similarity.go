// Package detection holds the local heuristics applied to incoming
// submissions: text similarity, history-derived rates and the rule
// evaluator combining them into a verdict.
package detection

import "strings"

// Similarity returns the Jaccard index of the lower-cased whitespace token
// sets of a and b. Two texts without any tokens have similarity 0.
func Similarity(a, b string) float64 {
	left := tokenSet(a)
	right := tokenSet(b)

	union := len(left)
	intersection := 0
	for token := range right {
		if _, ok := left[token]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

// comparableText is the text duplicates are detected on.
func comparableText(title, description string) string {
	return title + " " + description
}
