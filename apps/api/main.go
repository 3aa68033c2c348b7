package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/trezcool/cheo/apps/api/echo"
	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/core/report"
	"github.com/trezcool/cheo/services/email"
	"github.com/trezcool/cheo/services/logger"
	"github.com/trezcool/cheo/services/metrics"
	"github.com/trezcool/cheo/storage"
	"github.com/trezcool/cheo/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	store, err := setUpStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = store.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	mailSvc := emailsvc.NewService(logger, conf)
	recorder := metricsvc.NewRecorder()
	rankingSvc := ranking.NewService(store.Tx, store.RankingRepo, logger, conf)
	lbSvc := leaderboard.NewService(store.Tx, store.LeaderboardRepo, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q, database %q", conf.Build, conf.Database.Engine))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Refresher

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	worker := &refresher{
		interval:   conf.Server.RefreshInterval,
		rankingSvc: rankingSvc,
		lbSvc:      lbSvc,
		reportSvc:  report.NewService(mailSvc, logger, conf),
		metrics:    recorder,
		logger:     logger,
	}
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.run(workerCtx)
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			RankingSvc:     rankingSvc,
			LeaderboardSvc: lbSvc,
			Metrics:        recorder,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// a refresh in flight stops at its next scope
		stopWorker()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}

		select {
		case <-workerDone:
		case <-ctx.Done():
			logger.Warn("refresher did not stop in time")
		}
	}
}

func setUpStore(conf *core.Config) (*storage.Store, error) {
	if conf.Database.Engine == database.EngineInMem {
		return storage.Open(conf)
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	store, err := storage.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(store.DB); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
