package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/core/report"
	"github.com/trezcool/cheo/storage"
	"github.com/trezcool/cheo/storage/database"
)

var (
	openStoreFunc = storage.Open              // mockable
	createDBFunc  = database.CreateIfNotExist // mockable

	errHelp          = errors.New("help provided")
	errNoSQLDatabase = errors.New("the inmem engine has no migrations")
)

type commandLine struct {
	conf    *core.Config
	logger  core.Logger
	mailSvc core.EmailService
	store   *storage.Store // opened on first use
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  createdb - create the app database and its user if they do not exist")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  rank [-subject SUBJECT -grade GRADE | -overall -grade GRADE] [-report] - recompute student rankings")
	fmt.Fprintln(cli.out, "  leaderboards [-id ID | -schedule PERIOD] [-report] - recompute leaderboards")
}

func (cli *commandLine) openStore() (*storage.Store, error) {
	if cli.store != nil {
		return cli.store, nil
	}
	store, err := openStoreFunc(cli.conf)
	if err != nil {
		return nil, err
	}
	cli.store = store
	return store, nil
}

func (cli *commandLine) close() {
	if cli.store != nil {
		_ = cli.store.Close()
		cli.store = nil
	}
}

func (cli *commandLine) rankingService(store *storage.Store) *ranking.Service {
	return ranking.NewService(store.Tx, store.RankingRepo, cli.logger, cli.conf)
}

func (cli *commandLine) leaderboardService(store *storage.Store) *leaderboard.Service {
	return leaderboard.NewService(store.Tx, store.LeaderboardRepo, cli.logger)
}

func (cli *commandLine) reportService() *report.Service {
	return report.NewService(cli.mailSvc, cli.logger, cli.conf)
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	rankCmd := flag.NewFlagSet("rank", flag.ExitOnError)
	rankSubject := rankCmd.String("subject", "", "Rank a single subject cohort. Requires -grade.")
	rankGrade := rankCmd.String("grade", "", "The grade level of the cohort, or of the overall ranking. Requires -subject or -overall.")
	rankOverall := rankCmd.Bool("overall", false, "Rank a single grade level overall. Requires -grade.")
	rankReport := rankCmd.Bool("report", false, "Mail the run report even when no scope failed.")

	lbCmd := flag.NewFlagSet("leaderboards", flag.ExitOnError)
	lbID := lbCmd.Int("id", 0, "Recompute a single leaderboard.")
	lbSchedule := lbCmd.String("schedule", "", "Recompute the active leaderboards of a period: all_time, daily, weekly, monthly.")
	lbReport := lbCmd.Bool("report", false, "Mail the run report even when no leaderboard failed.")

	ctx := context.Background()

	switch args[1] {
	case "createdb":
		return createDBFunc(cli.conf)
	case "migrate":
		if len(args) < 3 {
			fmt.Fprintln(cli.out, "Usage: migrate COMMAND [ARGS]")
			return errHelp
		}
		return cli.migrate(args[2:])
	case "rank":
		if err := rankCmd.Parse(args[2:]); err != nil {
			return err
		}
		scoped := *rankSubject != "" || *rankOverall
		if (*rankSubject != "" && *rankOverall) || scoped != (*rankGrade != "") {
			rankCmd.Usage()
			return errHelp
		}
		return cli.rank(ctx, rankParams{
			subject: *rankSubject,
			grade:   *rankGrade,
			overall: *rankOverall,
			report:  *rankReport,
		})
	case "leaderboards":
		if err := lbCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *lbID != 0 && *lbSchedule != "" {
			lbCmd.Usage()
			return errHelp
		}
		return cli.updateLeaderboards(ctx, lbParams{
			id:       *lbID,
			schedule: leaderboard.Period(*lbSchedule),
			report:   *lbReport,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}
