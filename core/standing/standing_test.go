package standing

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompete(t *testing.T) {
	tests := []struct {
		name      string
		entries   []Entry
		wantIDs   []string
		wantRanks []int
	}{
		{name: "empty", entries: nil},
		{name: "single", entries: []Entry{{"x", 50}}, wantIDs: []string{"x"}, wantRanks: []int{1}},
		{
			name:      "90 80 80",
			entries:   []Entry{{"c", 80}, {"a", 90}, {"b", 80}},
			wantIDs:   []string{"a", "b", "c"},
			wantRanks: []int{1, 2, 2},
		},
		{
			name:      "next distinct score resumes after the tie group",
			entries:   []Entry{{"a", 90}, {"b", 80}, {"c", 80}, {"d", 70}},
			wantIDs:   []string{"a", "b", "c", "d"},
			wantRanks: []int{1, 2, 2, 4},
		},
		{
			name:      "all tied",
			entries:   []Entry{{"b", 1}, {"a", 1}, {"c", 1}},
			wantIDs:   []string{"a", "b", "c"},
			wantRanks: []int{1, 1, 1},
		},
		{
			name:      "float noise is a tie",
			entries:   []Entry{{"a", 0.1 + 0.2}, {"b", 0.3}, {"c", 0.29}},
			wantIDs:   []string{"a", "b", "c"},
			wantRanks: []int{1, 1, 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compete(tt.entries)
			if len(tt.wantIDs) == 0 {
				assert.Nil(t, got)
				return
			}
			ids := make([]string, 0, len(got))
			ranks := make([]int, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
				ranks = append(ranks, s.Rank)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantRanks, ranks)
		})
	}
}

func TestCompeteMonotonic(t *testing.T) {
	entries := []Entry{{"a", 12}, {"b", 99}, {"c", 45}, {"d", 45}, {"e", 0}, {"f", 99}, {"g", 73}}
	got := Compete(entries)
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("scores not descending at %d: %+v", i, got)
		}
		if got[i].Rank < got[i-1].Rank {
			t.Errorf("rank decreased as score decreased at %d: %+v", i, got)
		}
		if Tied(got[i].Score, got[i-1].Score) && got[i].Rank != got[i-1].Rank {
			t.Errorf("equal scores with different ranks at %d: %+v", i, got)
		}
	}
}

func TestCompeteDeterministic(t *testing.T) {
	entries := []Entry{{"a", 80}, {"b", 90}, {"c", 80}}
	r1 := Compete(entries)
	r2 := Compete([]Entry{entries[2], entries[0], entries[1]})
	if !reflect.DeepEqual(r1, r2) {
		t.Fatalf("determinism violated: %v vs %v", r1, r2)
	}
	// input must not be reordered
	assert.Equal(t, "a", entries[0].ID)
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		rank, n int
		want    float64
	}{
		{1, 1, 100},
		{1, 3, 100},
		{2, 3, 50},
		{3, 3, 0},
		{2, 5, 75},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentile(tt.rank, tt.n), "Percentile(%d, %d)", tt.rank, tt.n)
	}
}

func TestMean(t *testing.T) {
	assert.Equal(t, float64(0), Mean(nil))
	assert.Equal(t, 85.0, Mean([]float64{90, 80}))
	assert.InDelta(t, 73.333, Mean([]float64{80, 70, 70}), 0.001)
}
