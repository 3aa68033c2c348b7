package echoapi_test

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/tests"
)

func TestServer_home(t *testing.T) {
	app := setup(t)

	rec := app.do(t, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Cheo API!", rec.Body.String())
}

func TestServer_rankings(t *testing.T) {
	app := setup(t)
	app.mem.InsertPerformanceRecords(
		testutil.Record("s1", "math", "g7", 90),
		testutil.Record("s2", "math", "g7", 80),
		testutil.Record("s3", "math", "g7", 80),
	)

	t.Run("refresh", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/v1/rankings/refresh")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var run struct {
			Scopes   []ranking.Summary `json:"scopes"`
			Failures []interface{}     `json:"failures"`
		}
		decode(t, rec, &run)
		assert.Len(t, run.Scopes, 2) // math:g7 & overall g7
		assert.Empty(t, run.Failures)
	})

	t.Run("query", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/v1/rankings?type=subject_grade&subject=math&grade=g7")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rankings []ranking.Ranking
		decode(t, rec, &rankings)
		require.Len(t, rankings, 3)
		got := make(map[string]int, len(rankings))
		for _, r := range rankings {
			got[r.StudentID] = r.Rank
		}
		assert.Equal(t, map[string]int{"s1": 1, "s2": 2, "s3": 2}, got)
	})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "query by student",
			method:   http.MethodGet,
			path:     "/v1/rankings?student=nobody",
			wantCode: http.StatusOK,
			wantData: []interface{}{},
		},
		{
			name:     "query by unknown type",
			method:   http.MethodGet,
			path:     "/v1/rankings?type=weekly",
			wantCode: http.StatusBadRequest,
		},
	})
}

func TestServer_leaderboards(t *testing.T) {
	app := setup(t)
	now := time.Now().UTC()

	site := app.mem.CreateLeaderboard(testutil.Board("Site", leaderboard.ScopeSite, "", leaderboard.PeriodAllTime, true))
	inactive := app.mem.CreateLeaderboard(testutil.Board("Old", leaderboard.ScopeSite, "", leaderboard.PeriodAllTime, false))
	app.mem.InsertPointEvents(
		testutil.Event("u1", 10, now.Add(-time.Hour)),
		testutil.Event("u2", 30, now.Add(-time.Hour)),
		testutil.Event("u3", 30, now.Add(-time.Hour)),
	)
	sitePath := "/v1/leaderboards/" + strconv.Itoa(site.ID)

	t.Run("refresh", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, sitePath+"/refresh")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res leaderboard.Result
		decode(t, rec, &res)
		assert.Equal(t, site.ID, res.LeaderboardID)
		assert.Equal(t, 3, res.EntriesWritten)
	})

	t.Run("top", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, sitePath+"/entries?limit=2")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entries []leaderboard.Entry
		decode(t, rec, &entries)
		require.Len(t, entries, 2)
		assert.Equal(t, []string{"u2", "u3"}, []string{entries[0].UserID, entries[1].UserID})
		assert.Equal(t, []int{1, 1}, []int{entries[0].Rank, entries[1].Rank})
	})

	t.Run("hide", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, sitePath+"/entries/u2/visibility", []byte(`{"is_visible": false}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entry leaderboard.Entry
		decode(t, rec, &entry)
		assert.False(t, entry.IsVisible)

		// hidden entries keep their rank but are not listed
		rec = app.do(t, http.MethodGet, sitePath+"/entries")
		var entries []leaderboard.Entry
		decode(t, rec, &entries)
		require.Len(t, entries, 2)
		assert.Equal(t, "u3", entries[0].UserID)
		assert.Equal(t, "u1", entries[1].UserID)
		assert.Equal(t, 3, entries[1].Rank)
	})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "refresh inactive",
			method:   http.MethodPost,
			path:     "/v1/leaderboards/" + strconv.Itoa(inactive.ID) + "/refresh",
			wantCode: http.StatusConflict,
			wantData: httpErr{Error: leaderboard.ErrInactive.Error()},
		},
		{
			name:     "refresh unknown",
			method:   http.MethodPost,
			path:     "/v1/leaderboards/99/refresh",
			wantCode: http.StatusNotFound,
			wantData: httpErr{Error: leaderboard.ErrNotFound.Error()},
		},
		{
			name:     "malformed id",
			method:   http.MethodGet,
			path:     "/v1/leaderboards/lol/entries",
			wantCode: http.StatusNotFound,
			wantData: httpErr{Error: "not found"},
		},
		{
			name:     "malformed limit",
			method:   http.MethodGet,
			path:     sitePath + "/entries?limit=lol",
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"limit": "must be an integer"},
		},
		{
			name:     "visibility without is_visible",
			method:   http.MethodPut,
			path:     sitePath + "/entries/u1/visibility",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"is_visible": "this field is required"},
		},
		{
			name:     "visibility of unranked user",
			method:   http.MethodPut,
			path:     sitePath + "/entries/nobody/visibility",
			body:     []byte(`{"is_visible": false}`),
			wantCode: http.StatusNotFound,
			wantData: httpErr{Error: leaderboard.ErrEntryNotFound.Error()},
		},
	})
}

func TestServer_metrics(t *testing.T) {
	app := setup(t)

	app.do(t, http.MethodGet, "/")
	app.do(t, http.MethodPost, "/v1/leaderboards/99/refresh")

	rec := app.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, want := range []string{
		`cheo_http_requests_total{method="GET",path="/",status="200"} 1`,
		`cheo_http_requests_total{method="POST",path="/v1/leaderboards/:id/refresh",status="404"} 1`,
		`cheo_leaderboard_runs_total{status="failed"} 1`,
	} {
		assert.True(t, strings.Contains(body, want), "missing %s", want)
	}
}

func TestServer_refreshCooldown(t *testing.T) {
	app := setup(t, func(conf *core.Config) { conf.Server.RefreshCooldown = time.Hour })
	lb := app.mem.CreateLeaderboard(testutil.Board("Site", leaderboard.ScopeSite, "", leaderboard.PeriodAllTime, true))

	runHTTPTests(t, app, []httpTest{
		{name: "first refresh", method: http.MethodPost, path: "/v1/rankings/refresh", wantCode: http.StatusOK},
		{
			name:     "any refresh within the cooldown",
			method:   http.MethodPost,
			path:     "/v1/leaderboards/" + strconv.Itoa(lb.ID) + "/refresh",
			wantCode: http.StatusTooManyRequests,
			wantData: httpErr{Error: "a refresh was requested recently, try again later"},
		},
		{name: "reads are not limited", method: http.MethodGet, path: "/v1/leaderboards/" + strconv.Itoa(lb.ID) + "/entries", wantCode: http.StatusOK},
	})
}
