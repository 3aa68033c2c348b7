package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/services/metrics"
)

type (
	rankingApi struct {
		svc     RankingService
		metrics *metricsvc.Recorder
	}

	scopeFailure struct {
		Scope core.Scope `json:"scope"`
		Error string     `json:"error"`
	}

	rankingRun struct {
		Scopes   []ranking.Summary `json:"scopes"`
		Failures []scopeFailure    `json:"failures"`
	}
)

func registerRankingAPI(g *echo.Group, limiter echo.MiddlewareFunc, svc RankingService, metrics *metricsvc.Recorder) {
	api := rankingApi{
		svc:     svc,
		metrics: metrics,
	}

	rg := g.Group("/rankings")
	rg.GET("", api.query)
	rg.POST("/refresh", api.refresh, limiter)
}

func newScopeFailures(errs []*core.ScopeError) []scopeFailure {
	out := make([]scopeFailure, 0, len(errs))
	for _, e := range errs {
		out = append(out, scopeFailure{Scope: e.Scope, Error: e.Err.Error()})
	}
	return out
}

// Handlers

func (api *rankingApi) query(ctx echo.Context) error {
	var filter ranking.QueryFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to ranking.QueryFilter")
	}

	rankings, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	if rankings == nil {
		rankings = []ranking.Ranking{}
	}
	return ctx.JSON(http.StatusOK, rankings)
}

func (api *rankingApi) refresh(ctx echo.Context) error {
	start := time.Now()
	batch, err := api.svc.RankAll(ctx.Request().Context())
	api.metrics.ObserveRanking(batch, time.Since(start))
	if err != nil {
		return err
	}

	run := rankingRun{Scopes: batch.Scopes, Failures: newScopeFailures(batch.Failures)}
	if run.Scopes == nil {
		run.Scopes = []ranking.Summary{}
	}
	return ctx.JSON(http.StatusOK, run)
}
