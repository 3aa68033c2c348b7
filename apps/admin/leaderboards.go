package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/report"
)

type lbParams struct {
	id       int
	schedule leaderboard.Period
	report   bool
}

// updateLeaderboards recomputes one leaderboard, the active ones of a period, or every active one.
func (cli *commandLine) updateLeaderboards(ctx context.Context, p lbParams) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	svc := cli.leaderboardService(store)

	startedAt := time.Now()
	var batch leaderboard.BatchSummary
	switch {
	case p.id != 0:
		res, err := svc.Update(ctx, p.id)
		if err != nil {
			return err
		}
		batch.Results = append(batch.Results, res)
	case p.schedule != "":
		if batch, err = svc.UpdateSchedule(ctx, p.schedule); err != nil {
			return err
		}
	default:
		if batch, err = svc.UpdateAllActive(ctx); err != nil {
			return err
		}
	}

	cli.printLeaderboardBatch(batch)
	cli.reportService().Send(report.FromLeaderboards(startedAt, time.Since(startedAt), batch), p.report)

	if batch.Failed() {
		return errors.Errorf("%d of %d leaderboards failed", len(batch.Failures), batch.Processed())
	}
	return nil
}

func (cli *commandLine) printLeaderboardBatch(batch leaderboard.BatchSummary) {
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEADERBOARD\tUSERS\tWRITTEN\tREMOVED")
	for _, r := range batch.Results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.Scope, r.Users, r.EntriesWritten, r.EntriesRemoved)
	}
	printFailures(w, batch.Failures)
	_ = w.Flush()
}
