package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/services/metrics"
)

type leaderboardApi struct {
	svc     LeaderboardService
	metrics *metricsvc.Recorder
}

func registerLeaderboardAPI(g *echo.Group, limiter echo.MiddlewareFunc, svc LeaderboardService, metrics *metricsvc.Recorder) {
	api := leaderboardApi{
		svc:     svc,
		metrics: metrics,
	}

	lg := g.Group("/leaderboards/:id")
	lg.GET("/entries", api.top)
	lg.PUT("/entries/:user/visibility", api.setVisibility)
	lg.POST("/refresh", api.refresh, limiter)
}

// Handlers

func (api *leaderboardApi) top(ctx echo.Context) error {
	id, err := bindID(ctx, "id")
	if err != nil {
		return err
	}
	limit, err := bindLimit(ctx)
	if err != nil {
		return err
	}

	entries, err := api.svc.Top(ctx.Request().Context(), id, limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *leaderboardApi) setVisibility(ctx echo.Context) error {
	id, err := bindID(ctx, "id")
	if err != nil {
		return err
	}

	var data leaderboard.VisibilityUpdate
	if err = (&echo.DefaultBinder{}).BindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to leaderboard.VisibilityUpdate")
	}
	data.LeaderboardID = id
	data.UserID = ctx.Param("user")

	entry, err := api.svc.SetVisibility(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *leaderboardApi) refresh(ctx echo.Context) error {
	id, err := bindID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := api.svc.Update(ctx.Request().Context(), id)
	api.metrics.ObserveLeaderboard(res, err)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
