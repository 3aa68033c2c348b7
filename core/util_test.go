package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		lower bool
		want  string
	}{
		{name: "trims", s: "  Math \t\n", want: "Math"},
		{name: "trims and lowers", s: " WEEKLY ", lower: true, want: "weekly"},
		{name: "blank", s: " \t ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanString(tt.s, tt.lower))
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		f      float64
		places int
		want   float64
	}{
		{f: 77.5, places: 2, want: 77.5},
		{f: 66.666666, places: 2, want: 66.67},
		{f: 33.333333, places: 2, want: 33.33},
		{f: 0.125, places: 2, want: 0.13},
		{f: -0.125, places: 2, want: -0.13},
		{f: 2.5, places: 0, want: 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.f, tt.places), "Round(%v, %d)", tt.f, tt.places)
	}
}
