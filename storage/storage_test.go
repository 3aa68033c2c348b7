package storage_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/storage"
	"github.com/trezcool/cheo/storage/database/inmem"
	"github.com/trezcool/cheo/tests"
)

// seeder writes the rows the repositories only ever read.
type seeder interface {
	records(t *testing.T, recs ...ranking.PerformanceRecord)
	events(t *testing.T, evs ...leaderboard.PointEvent)
	board(t *testing.T, lb leaderboard.Leaderboard) leaderboard.Leaderboard
}

type memSeeder struct{ mem *inmemdb.DB }

func (s memSeeder) records(_ *testing.T, recs ...ranking.PerformanceRecord) {
	s.mem.InsertPerformanceRecords(recs...)
}
func (s memSeeder) events(_ *testing.T, evs ...leaderboard.PointEvent) { s.mem.InsertPointEvents(evs...) }
func (s memSeeder) board(_ *testing.T, lb leaderboard.Leaderboard) leaderboard.Leaderboard {
	return s.mem.CreateLeaderboard(lb)
}

type sqlSeeder struct{ db *sql.DB }

func (s sqlSeeder) records(t *testing.T, recs ...ranking.PerformanceRecord) {
	testutil.InsertRecords(t, s.db, recs...)
}
func (s sqlSeeder) events(t *testing.T, evs ...leaderboard.PointEvent) { testutil.InsertEvents(t, s.db, evs...) }
func (s sqlSeeder) board(t *testing.T, lb leaderboard.Leaderboard) leaderboard.Leaderboard {
	return testutil.CreateBoard(t, s.db, lb)
}

type backend struct {
	name string
	open func(t *testing.T) (*storage.Store, seeder)
}

func sqlBackend(repos string) backend {
	return backend{
		name: "postgres/" + repos,
		open: func(t *testing.T) (*storage.Store, seeder) {
			db := testutil.PrepareDB(t)
			store, err := storage.NewSQLStore(db, repos)
			require.NoError(t, err)
			return store, sqlSeeder{db: db}
		},
	}
}

// eachBackend runs fn against every repositories implementation.
// The postgres ones are skipped unless testutil.DatabaseURLEnv is set.
func eachBackend(t *testing.T, fn func(t *testing.T, store *storage.Store, seed seeder)) {
	backends := []backend{{
		name: "inmem",
		open: func(t *testing.T) (*storage.Store, seeder) {
			mem := testutil.OpenInMemDB(t)
			return storage.NewInMemStore(mem), memSeeder{mem: mem}
		},
	}}
	if os.Getenv(testutil.DatabaseURLEnv) != "" {
		backends = append(backends, sqlBackend(storage.ReposSqlx), sqlBackend(storage.ReposSqlboiler))
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store, seed := b.open(t)
			fn(t, store, seed)
		})
	}
}

func TestNewSQLStore_unknownRepos(t *testing.T) {
	_, err := storage.NewSQLStore(nil, "gorm")
	assert.EqualError(t, err, `unknown repositories "gorm"`)
}

func TestStore_rankings(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	ctx := context.Background()

	eachBackend(t, func(t *testing.T, store *storage.Store, seed seeder) {
		svc := ranking.NewService(store.Tx, store.RankingRepo, logger, conf)
		seed.records(t,
			testutil.Record("s1", "math", "g7", 90),
			testutil.Record("s2", "math", "g7", 80),
			testutil.Record("s3", "math", "g7", 80),
			testutil.Record("s1", "english", "g7", 70),
			testutil.Record("s2", "english", "g7", 75),
			testutil.UnscoredRecord("s3", "english", "g7"),
			testutil.Record("s9", "math", "g8", 50),
		)

		for i := 0; i < 2; i++ { // the second run replaces the first one's snapshot
			batch, err := svc.RankAll(ctx)
			require.NoError(t, err)
			require.Empty(t, batch.Failures)
			assert.Len(t, batch.Scopes, 5) // 3 cohorts, 2 grade levels
			assert.Equal(t, 2, batch.Total().Errors) // the unscored record, in its cohort and overall
		}

		all, err := svc.Query(ctx, ranking.QueryFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3+2+1+3+1) // math:g7, english:g7, math:g8, overall g7, overall g8

		overall, err := svc.Query(ctx, ranking.QueryFilter{Type: ranking.TypeOverall, GradeLevelID: "g7"})
		require.NoError(t, err)
		require.Len(t, overall, 3)

		type row struct {
			student string
			rank    int
			score   float64
		}
		got := make([]row, 0, len(overall))
		for _, r := range overall {
			got = append(got, row{r.StudentID, r.Rank, r.Score})
			assert.Equal(t, 3, r.CohortSize)
			assert.False(t, r.SubjectID.Valid)
		}
		assert.Equal(t, []row{{"s1", 1, 80}, {"s3", 1, 80}, {"s2", 3, 77.5}}, got)

		mine, err := svc.Query(ctx, ranking.QueryFilter{StudentID: "s2", SubjectID: "english"})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, 1, mine[0].Rank)
		assert.Equal(t, "english", mine[0].SubjectID.String)

		keep := []ranking.Key{
			ranking.CohortKey(ranking.Cohort{SubjectID: "math", GradeLevelID: "g7"}),
			ranking.CohortKey(ranking.Cohort{SubjectID: "english", GradeLevelID: "g7"}),
			ranking.OverallKey("g7"),
		}
		n, err := store.RankingRepo.DeleteRankingsExcept(ctx, keep)
		require.NoError(t, err)
		assert.Equal(t, 2, n) // s9 in math:g8 and overall g8
		g8, err := svc.Query(ctx, ranking.QueryFilter{GradeLevelID: "g8"})
		require.NoError(t, err)
		assert.Empty(t, g8)

		n, err = store.RankingRepo.DeleteRankingsExcept(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3+2+3, n)
	})
}

func TestStore_leaderboards(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	ctx := context.Background()

	day1 := time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)
	setNow := func(now time.Time) { leaderboard.NowFunc = func() time.Time { return now } }
	t.Cleanup(func() { leaderboard.NowFunc = time.Now })

	eachBackend(t, func(t *testing.T, store *storage.Store, seed seeder) {
		svc := leaderboard.NewService(store.Tx, store.LeaderboardRepo, logger)
		site := seed.board(t, testutil.Board("Site", leaderboard.ScopeSite, "", leaderboard.PeriodAllTime, true))
		daily := seed.board(t, testutil.Board("Today", leaderboard.ScopeSite, "", leaderboard.PeriodDaily, true))
		course := seed.board(t, testutil.Board("Go 101", leaderboard.ScopeCourse, "go101", leaderboard.PeriodWeekly, true))
		seed.board(t, testutil.Board("Old", leaderboard.ScopeSite, "", leaderboard.PeriodAllTime, false))
		seed.events(t,
			testutil.Event("u1", 10, day1.Add(-3*time.Hour)),
			testutil.Event("u1", 5, day1.AddDate(0, 0, -30)),
			testutil.CourseEvent("u2", "go101", 20, day1.Add(-time.Hour)),
			testutil.CourseEvent("u3", "py101", 40, day1.AddDate(0, 0, -1)),
			testutil.Event("", 99, day1.Add(-time.Hour)),
		)

		setNow(day1)
		batch, err := svc.UpdateAllActive(ctx)
		require.NoError(t, err)
		require.Empty(t, batch.Failures)
		assert.Equal(t, 3, batch.Succeeded())

		entries := func(id int) map[string][2]int64 {
			t.Helper()
			top, err := svc.Top(ctx, id, 0)
			require.NoError(t, err)
			out := make(map[string][2]int64, len(top))
			for _, e := range top {
				out[e.UserID] = [2]int64{e.Score, int64(e.Rank)}
			}
			return out
		}
		assert.Equal(t, map[string][2]int64{"u3": {40, 1}, "u2": {20, 2}, "u1": {15, 3}}, entries(site.ID))
		assert.Equal(t, map[string][2]int64{"u2": {20, 1}, "u1": {10, 2}}, entries(daily.ID))
		assert.Equal(t, map[string][2]int64{"u2": {20, 1}}, entries(course.ID))

		visible := false
		hidden, err := svc.SetVisibility(ctx, leaderboard.VisibilityUpdate{LeaderboardID: site.ID, UserID: "u2", IsVisible: &visible})
		require.NoError(t, err)
		assert.False(t, hidden.IsVisible)
		assert.Equal(t, 2, hidden.Rank)

		_, err = svc.SetVisibility(ctx, leaderboard.VisibilityUpdate{LeaderboardID: site.ID, UserID: "nobody", IsVisible: &visible})
		assert.ErrorIs(t, err, leaderboard.ErrEntryNotFound)

		_, err = svc.SetVisibility(ctx, leaderboard.VisibilityUpdate{LeaderboardID: daily.ID, UserID: "u1", IsVisible: &visible})
		require.NoError(t, err)

		// the next day, yesterday's points leave the daily board
		day2 := day1.AddDate(0, 0, 1)
		setNow(day2)
		res, err := svc.Update(ctx, daily.ID)
		require.NoError(t, err)
		assert.Zero(t, res.EntriesWritten)
		assert.Equal(t, 2, res.EntriesRemoved)
		assert.Empty(t, entries(daily.ID))

		res, err = svc.Update(ctx, site.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, res.EntriesWritten)
		assert.Equal(t, map[string][2]int64{"u3": {40, 1}, "u1": {15, 3}}, entries(site.ID), "u2 stays hidden")

		// u1 comes back to the daily board still hidden
		seed.events(t, testutil.Event("u1", 5, day2.Add(-time.Hour)))
		res, err = svc.Update(ctx, daily.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, res.EntriesWritten)
		assert.Empty(t, entries(daily.ID))
		back, err := store.LeaderboardRepo.QueryEntries(ctx, daily.ID, leaderboard.EntryFilter{})
		require.NoError(t, err)
		require.Len(t, back, 1)
		assert.Equal(t, "u1", back[0].UserID)
		assert.False(t, back[0].IsVisible)

		_, err = svc.Update(ctx, 999)
		assert.ErrorIs(t, err, leaderboard.ErrNotFound)
	})
}
