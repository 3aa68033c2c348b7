// Package standing orders scored entries with standard competition ranking
// ("1224"): tied scores share the best rank of their group and the next
// distinct score resumes at 1 + the number of entries ranked above it.
package standing

import (
	"math"
	"sort"
)

// Epsilon is the largest difference between two scores still treated as a tie.
const Epsilon = 1e-9

// Entry is (id, score). Higher scores rank first.
type Entry struct {
	ID    string
	Score float64
}

// Standing is (id, score, rank, percentile). Rank 1 is best.
type Standing struct {
	ID         string
	Score      float64
	Rank       int
	Percentile float64
}

// Compete sorts entries by score desc, tie-break by id asc for a deterministic order,
// and assigns competition ranks.
// percentile = 100 * (n-rank) / (n-1) for n>1 else 100; tied entries share it.
func Compete(entries []Entry) []Standing {
	n := len(entries)
	if n == 0 {
		return nil
	}

	sorted := make([]Entry, n)
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !Tied(sorted[i].Score, sorted[j].Score) {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := make([]Standing, n)
	rank := 1
	for i, e := range sorted {
		if i > 0 && !Tied(e.Score, sorted[i-1].Score) {
			rank = i + 1
		}
		out[i] = Standing{
			ID:         e.ID,
			Score:      e.Score,
			Rank:       rank,
			Percentile: Percentile(rank, n),
		}
	}
	return out
}

// Percentile of `rank` among `n` ranked entries.
func Percentile(rank, n int) float64 {
	if n <= 1 {
		return 100
	}
	return 100 * float64(n-rank) / float64(n-1)
}

// Tied reports whether two scores are equal for ranking purposes.
func Tied(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

// Mean returns the arithmetic mean of values, 0 for none.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
