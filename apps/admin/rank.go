package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/core/report"
)

type rankParams struct {
	subject string
	grade   string
	overall bool
	report  bool
}

// rank recomputes one cohort, one grade level overall, or everything when no scope is given.
func (cli *commandLine) rank(ctx context.Context, p rankParams) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	svc := cli.rankingService(store)

	startedAt := time.Now()
	var batch ranking.BatchSummary
	switch {
	case p.subject != "":
		s, err := svc.RankCohort(ctx, ranking.CohortParams{SubjectID: p.subject, GradeLevelID: p.grade})
		if err != nil {
			return err
		}
		batch.Scopes = append(batch.Scopes, s)
	case p.overall:
		s, err := svc.RankOverall(ctx, p.grade)
		if err != nil {
			return err
		}
		batch.Scopes = append(batch.Scopes, s)
	default:
		if batch, err = svc.RankAll(ctx); err != nil {
			return err
		}
	}

	cli.printRankingBatch(batch)
	cli.reportService().Send(report.FromRanking(startedAt, time.Since(startedAt), batch), p.report)

	if batch.Failed() {
		return errors.Errorf("%d of %d ranking scopes failed", len(batch.Failures), len(batch.Scopes)+len(batch.Failures))
	}
	return nil
}

func (cli *commandLine) printRankingBatch(batch ranking.BatchSummary) {
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tSTUDENTS\tPROCESSED\tWRITTEN\tERRORS")
	for _, s := range batch.Scopes {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", s.Scope, s.TotalStudents, s.Processed, s.RankingsWritten, s.Errors)
	}
	printFailures(w, batch.Failures)
	_ = w.Flush()
}

func printFailures(w *tabwriter.Writer, failures []*core.ScopeError) {
	for _, f := range failures {
		fmt.Fprintf(w, "%s\tFAILED: %v\n", f.Scope, f.Err)
	}
}
