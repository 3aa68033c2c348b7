package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/trezcool/cheo/services/metrics"
)

var errTooManyRefreshes = echo.NewHTTPError(http.StatusTooManyRequests, "a refresh was requested recently, try again later")

// metricsMiddleware records every request under its route template, so /v1/leaderboards/:id stays one series.
func metricsMiddleware(recorder *metricsvc.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}

			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			recorder.ObserveRequest(path, ctx.Request().Method, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}

// refreshLimiter lets one manual refresh through per cooldown, across every refresh route.
func refreshLimiter(cooldown time.Duration) echo.MiddlewareFunc {
	if cooldown <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	limiter := rate.NewLimiter(rate.Every(cooldown), 1)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !limiter.Allow() {
				return errTooManyRefreshes
			}
			return next(ctx)
		}
	}
}
