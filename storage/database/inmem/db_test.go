package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/storage/database/inmem"
	"github.com/trezcool/cheo/tests"
)

var errBoom = errors.New("boom")

func TestDB_InTx(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)
	mathG7 := ranking.CohortKey(ranking.Cohort{SubjectID: "math", GradeLevelID: "g7"})
	hidden := false

	tests := []struct {
		name      string
		end       func() error
		committed bool
		wantPanic bool
	}{
		{name: "commit", end: func() error { return nil }, committed: true},
		{name: "error", end: func() error { return errBoom }},
		{name: "panic", end: func() error { panic(errBoom) }, wantPanic: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.OpenInMemDB(t)
			rankings := inmemdb.NewRankingRepository(db)
			boards := inmemdb.NewLeaderboardRepository(db)

			a := db.CreateLeaderboard(testutil.Board("A", leaderboard.ScopeSite, "", leaderboard.PeriodAllTime, true))
			b := db.CreateLeaderboard(testutil.Board("B", leaderboard.ScopeSite, "", leaderboard.PeriodAllTime, true))
			for _, id := range []int{a.ID, b.ID} {
				_, _, err := boards.ReplaceEntries(ctx, id, []leaderboard.Entry{{UserID: "u1", Score: 10, Rank: 1, IsVisible: true, UpdatedAt: now}})
				require.NoError(t, err)
			}
			_, err := rankings.ReplaceRankings(ctx, mathG7, []ranking.Ranking{{StudentID: "s1", Type: mathG7.Type, GradeLevelID: "g7", Rank: 1}})
			require.NoError(t, err)

			run := func() error {
				return db.InTx(ctx, func(exec core.DBExecutor) error {
					entries := []leaderboard.Entry{{UserID: "u2", Score: 30, Rank: 1, IsVisible: true, UpdatedAt: now}}
					if _, _, err := boards.ReplaceEntries(ctx, a.ID, entries, exec); err != nil {
						return err
					}
					if err := boards.TouchLeaderboard(ctx, a.ID, now, exec); err != nil {
						return err
					}
					if _, err := rankings.DeleteRankingsExcept(ctx, nil, exec); err != nil {
						return err
					}

					// writes of other callers while the transaction runs
					if _, err := boards.SetEntryVisibility(ctx, b.ID, "u1", hidden); err != nil {
						return err
					}
					db.InsertPointEvents(testutil.Event("u3", 5, now))
					return tt.end()
				})
			}

			switch {
			case tt.wantPanic:
				assert.Panics(t, func() { _ = run() })
			case tt.committed:
				require.NoError(t, run())
			default:
				assert.Equal(t, errBoom, run())
			}

			onA, err := boards.QueryEntries(ctx, a.ID, leaderboard.EntryFilter{})
			require.NoError(t, err)
			require.Len(t, onA, 1)
			lb, err := boards.GetLeaderboard(ctx, a.ID)
			require.NoError(t, err)
			left, err := rankings.QueryRankings(ctx, ranking.QueryFilter{}, nil)
			require.NoError(t, err)
			if tt.committed {
				assert.Equal(t, "u2", onA[0].UserID)
				assert.True(t, lb.LastUpdatedAt.Valid)
				assert.Empty(t, left)
			} else {
				assert.Equal(t, "u1", onA[0].UserID)
				assert.False(t, lb.LastUpdatedAt.Valid)
				assert.Len(t, left, 1)
			}

			// kept either way
			onB, err := boards.QueryEntries(ctx, b.ID, leaderboard.EntryFilter{})
			require.NoError(t, err)
			require.Len(t, onB, 1)
			assert.False(t, onB[0].IsVisible)
			totals, err := boards.SumPoints(ctx, b, leaderboard.Window{To: now.Add(time.Hour)})
			require.NoError(t, err)
			assert.Equal(t, []leaderboard.Total{{UserID: "u3", Score: 5}}, totals)
		})
	}
}

func TestLeaderboardRepository_visibilityPreference(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)
	db := testutil.OpenInMemDB(t)
	repo := inmemdb.NewLeaderboardRepository(db)
	lb := db.CreateLeaderboard(testutil.Board("A", leaderboard.ScopeSite, "", leaderboard.PeriodDaily, true))
	entry := leaderboard.Entry{UserID: "u1", Score: 10, Rank: 1, IsVisible: true, UpdatedAt: now}

	_, _, err := repo.ReplaceEntries(ctx, lb.ID, []leaderboard.Entry{entry})
	require.NoError(t, err)
	_, err = repo.SetEntryVisibility(ctx, lb.ID, "u1", false)
	require.NoError(t, err)

	_, removed, err := repo.ReplaceEntries(ctx, lb.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = repo.SetEntryVisibility(ctx, lb.ID, "u1", true)
	assert.Equal(t, leaderboard.ErrEntryNotFound, err)

	_, _, err = repo.ReplaceEntries(ctx, lb.ID, []leaderboard.Entry{entry})
	require.NoError(t, err)
	visible, err := repo.QueryEntries(ctx, lb.ID, leaderboard.EntryFilter{VisibleOnly: true})
	require.NoError(t, err)
	assert.Empty(t, visible)
}
