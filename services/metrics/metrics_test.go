package metricsvc

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
)

func TestRecorder_ObserveRanking(t *testing.T) {
	r := NewRecorder()

	cohort := core.Scope{Engine: core.EngineRanking, Kind: string(ranking.TypeSubjectGrade), ID: "math:g7"}
	overall := core.Scope{Engine: core.EngineRanking, Kind: string(ranking.TypeOverall), ID: "g7"}
	batch := ranking.BatchSummary{
		Scopes: []ranking.Summary{
			{Scope: cohort, TotalStudents: 4, Processed: 3, RankingsWritten: 3, Errors: 2},
			{Scope: overall, TotalStudents: 4, Processed: 3, RankingsWritten: 3},
		},
		Failures: []*core.ScopeError{core.NewScopeError(cohort, errors.New("boom"))},
	}
	r.ObserveRanking(batch, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.rankingRuns.WithLabelValues("subject_grade", statusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rankingRuns.WithLabelValues("subject_grade", statusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rankingRuns.WithLabelValues("overall", statusOK)))
	assert.Equal(t, 6.0, testutil.ToFloat64(r.rankingRecords.WithLabelValues("ranked")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.rankingRecords.WithLabelValues("skipped")))
}

func TestRecorder_ObserveLeaderboards(t *testing.T) {
	r := NewRecorder()

	batch := leaderboard.BatchSummary{
		Results: []leaderboard.Result{
			{LeaderboardID: 1, Users: 5, EntriesWritten: 5},
			{LeaderboardID: 2, Users: 0, EntriesWritten: 0, EntriesRemoved: 3},
		},
		Failures: []*core.ScopeError{
			core.NewScopeError(core.Scope{Engine: core.EngineLeaderboard, Kind: "site", ID: "3"}, errors.New("boom")),
		},
	}
	r.ObserveLeaderboards(batch, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.leaderboardRuns.WithLabelValues(statusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.leaderboardRuns.WithLabelValues(statusFailed)))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.leaderboardSize.WithLabelValues("1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.leaderboardSize.WithLabelValues("2")))
}

func TestRecorder_ObserveRequest(t *testing.T) {
	r := NewRecorder()

	r.ObserveRequest("/v1/leaderboards/:id/entries", "GET", 200, 10*time.Millisecond)
	r.ObserveRequest("/v1/leaderboards/:id/entries", "GET", 200, 20*time.Millisecond)
	r.ObserveRequest("/v1/leaderboards/:id/entries", "GET", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("/v1/leaderboards/:id/entries", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("/v1/leaderboards/:id/entries", "GET", "404")))
}
