package entity

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Metric selects the similarity function used for fuzzy matching
type Metric string

const (
	MetricLevenshtein Metric = "levenshtein"
	MetricTokenSet    Metric = "token_set"
	MetricCombined    Metric = "combined"
)

// ParseMetric returns the metric for s, defaulting to levenshtein
func ParseMetric(s string) Metric {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricTokenSet:
		return MetricTokenSet
	case MetricCombined:
		return MetricCombined
	default:
		return MetricLevenshtein
	}
}

// Similarity scores two normalized names in [0, 1]
func Similarity(metric Metric, a, b string) float64 {
	switch metric {
	case MetricTokenSet:
		return tokenSetRatio(a, b)
	case MetricCombined:
		return max(levenshteinRatio(a, b), tokenSetRatio(a, b))
	default:
		return levenshteinRatio(a, b)
	}
}

func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// tokenSetRatio compares the shared tokens against each side's remainder,
// so word order and repeated words do not lower the score.
func tokenSetRatio(a, b string) float64 {
	setA := uniqueSorted(Tokens(a))
	setB := uniqueSorted(Tokens(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for _, t := range setA {
		if _, ok := slices.BinarySearch(setB, t); ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range setB {
		if _, ok := slices.BinarySearch(setA, t); !ok {
			onlyB = append(onlyB, t)
		}
	}

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := levenshteinRatio(withA, withB)
	if base != "" {
		best = max(best, levenshteinRatio(base, withA), levenshteinRatio(base, withB))
	}
	return best
}

func uniqueSorted(tokens []string) []string {
	out := slices.Clone(tokens)
	slices.Sort(out)
	return slices.Compact(out)
}
