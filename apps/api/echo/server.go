package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/services/metrics"
)

type (
	RankingService interface {
		Query(ctx context.Context, filter ranking.QueryFilter) ([]ranking.Ranking, error)
		RankAll(ctx context.Context) (ranking.BatchSummary, error)
	}

	LeaderboardService interface {
		Update(ctx context.Context, id int) (leaderboard.Result, error)
		Top(ctx context.Context, id, limit int) ([]leaderboard.Entry, error)
		SetVisibility(ctx context.Context, data leaderboard.VisibilityUpdate) (leaderboard.Entry, error)
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		RankingSvc     RankingService
		LeaderboardSvc LeaderboardService
		Metrics        *metricsvc.Recorder // a private one is created when nil
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metricsvc.NewRecorder()
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Logger.SetPrefix("API")
	s.app.Logger.SetLevel(log.INFO)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(metricsMiddleware(s.deps.Metrics))
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home(conf.AppName))
	s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))

	v1 := s.app.Group("/v1")
	limiter := refreshLimiter(conf.Server.RefreshCooldown)

	registerRankingAPI(v1, limiter, s.deps.RankingSvc, s.deps.Metrics)
	registerLeaderboardAPI(v1, limiter, s.deps.LeaderboardSvc, s.deps.Metrics)
}

// Start listens on conf.Server.Host. Listening errors are sent to Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(appName string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+appName+" API!")
	}
}
