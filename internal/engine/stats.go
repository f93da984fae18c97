package engine

import (
	"sort"
	"strings"
)

// median of values; 0 for an empty slice. values is not modified.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	s := make([]float64, n)
	copy(s, values)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// nameMatcher returns a case-insensitive substring matcher.
func nameMatcher(query string) func(string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(name string) bool {
		return strings.Contains(strings.ToLower(name), q)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
