package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/core/report"
	"github.com/trezcool/cheo/services/metrics"
)

type (
	rankAller interface {
		RankAll(ctx context.Context) (ranking.BatchSummary, error)
	}

	activeUpdater interface {
		UpdateAllActive(ctx context.Context) (leaderboard.BatchSummary, error)
	}

	// refresher recomputes every ranking and active leaderboard on a fixed interval.
	refresher struct {
		interval   time.Duration // <= 0 disables
		rankingSvc rankAller
		lbSvc      activeUpdater
		reportSvc  *report.Service
		metrics    *metricsvc.Recorder
		logger     core.Logger
	}
)

// run blocks until ctx is done.
func (r *refresher) run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("refresher disabled")
		return
	}
	r.logger.Info(fmt.Sprintf("refresher started: every %s", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *refresher) refresh(ctx context.Context) {
	start := time.Now()
	rankings, err := r.rankingSvc.RankAll(ctx)
	elapsed := time.Since(start)
	r.metrics.ObserveRanking(rankings, elapsed)
	if err != nil {
		r.logger.Error(fmt.Sprintf("refreshing rankings: %v", err), err)
	} else {
		r.reportSvc.Send(report.FromRanking(start, elapsed, rankings), false)
	}

	if ctx.Err() != nil {
		return
	}

	start = time.Now()
	boards, err := r.lbSvc.UpdateAllActive(ctx)
	elapsed = time.Since(start)
	r.metrics.ObserveLeaderboards(boards, elapsed)
	if err != nil {
		r.logger.Error(fmt.Sprintf("refreshing leaderboards: %v", err), err)
	} else {
		r.reportSvc.Send(report.FromLeaderboards(start, elapsed, boards), false)
	}
}
