package core

import "strings"

// Engines
const (
	EngineRanking     = "ranking"
	EngineLeaderboard = "leaderboard"
)

// Scope identifies what one unit of a batch run is computed over,
// e.g. {ranking subject_grade math:g7} or {leaderboard site 3}.
type Scope struct {
	Engine string `json:"engine"`
	Kind   string `json:"kind"`
	ID     string `json:"id,omitempty"`
}

func (s Scope) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.Engine, s.Kind, s.ID} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}
