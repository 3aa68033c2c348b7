package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/standing"
)

const (
	DefaultTopLimit = 50
	MaxTopLimit     = 500
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound      = errors.New("leaderboard not found")
	ErrEntryNotFound = errors.New("leaderboard entry not found")
	ErrInactive      = errors.New("leaderboard is inactive")
)

type (
	Repository interface {
		// GetLeaderboard returns ErrNotFound when id does not exist.
		GetLeaderboard(ctx context.Context, id int, exec ...core.DBExecutor) (Leaderboard, error)
		QueryLeaderboards(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Leaderboard, error)
		// SumPoints returns the summed points per user of the events matching lb within window.
		SumPoints(ctx context.Context, lb Leaderboard, window Window, exec ...core.DBExecutor) ([]Total, error)
		// ReplaceEntries swaps the entries of a leaderboard and deletes users absent from entries.
		// A user's stored visibility preference overrides Entry.IsVisible, even after their entry was deleted.
		// It returns the written and removed counts.
		ReplaceEntries(ctx context.Context, leaderboardID int, entries []Entry, exec ...core.DBExecutor) (int, int, error)
		QueryEntries(ctx context.Context, leaderboardID int, filter EntryFilter, exec ...core.DBExecutor) ([]Entry, error)
		// SetEntryVisibility updates the user's entry and stores their preference for later recomputations.
		// It returns ErrEntryNotFound when the user has no entry on the leaderboard.
		SetEntryVisibility(ctx context.Context, leaderboardID int, userID string, visible bool, exec ...core.DBExecutor) (Entry, error)
		TouchLeaderboard(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error
	}

	Service struct {
		tx     core.Transactor
		repo   Repository
		logger core.Logger
	}
)

func NewService(tx core.Transactor, repo Repository, logger core.Logger) *Service {
	return &Service{
		tx:     tx,
		repo:   repo,
		logger: logger,
	}
}

// Update recomputes the entries of one active leaderboard.
func (svc *Service) Update(ctx context.Context, id int) (Result, error) {
	lb, err := svc.repo.GetLeaderboard(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !lb.IsActive {
		return Result{Scope: lb.CoreScope(), LeaderboardID: lb.ID}, ErrInactive
	}
	return svc.update(ctx, lb)
}

// UpdateAllActive recomputes every active leaderboard.
// A failing leaderboard is recorded in the BatchSummary and does not stop the others.
func (svc *Service) UpdateAllActive(ctx context.Context) (BatchSummary, error) {
	return svc.updateMany(ctx, QueryFilter{IsActive: &active})
}

// UpdateSchedule recomputes the active leaderboards of one period.
func (svc *Service) UpdateSchedule(ctx context.Context, period Period) (BatchSummary, error) {
	period = Period(core.CleanString(string(period), true /* lower */))
	if !IsValidPeriod(period) {
		return BatchSummary{}, core.NewValidationError(
			errors.Errorf("invalid schedule %q", period),
			core.FieldError{Field: "schedule", Error: periodText},
		)
	}
	return svc.updateMany(ctx, QueryFilter{IsActive: &active, Period: period})
}

// Top returns the visible entries of a leaderboard in rank order.
// limit is clamped to [1, MaxTopLimit] and defaults to DefaultTopLimit.
func (svc *Service) Top(ctx context.Context, id, limit int) ([]Entry, error) {
	if _, err := svc.repo.GetLeaderboard(ctx, id); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultTopLimit
	case limit > MaxTopLimit:
		limit = MaxTopLimit
	}
	return svc.repo.QueryEntries(ctx, id, EntryFilter{VisibleOnly: true, Limit: limit})
}

// SetVisibility shows or hides a user on a leaderboard.
// The choice survives recomputation, including the user dropping out of the window and coming back.
func (svc *Service) SetVisibility(ctx context.Context, data VisibilityUpdate) (Entry, error) {
	if err := data.Validate(); err != nil {
		return Entry{}, err
	}
	if _, err := svc.repo.GetLeaderboard(ctx, data.LeaderboardID); err != nil {
		return Entry{}, err
	}

	var entry Entry
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) (err error) {
		entry, err = svc.repo.SetEntryVisibility(ctx, data.LeaderboardID, data.UserID, *data.IsVisible, execs(exec)...)
		return err
	})
	return entry, err
}

var active = true

func (svc *Service) updateMany(ctx context.Context, filter QueryFilter) (BatchSummary, error) {
	var batch BatchSummary

	boards, err := svc.repo.QueryLeaderboards(ctx, filter)
	if err != nil {
		return batch, errors.Wrap(err, "querying leaderboards")
	}

	for _, lb := range boards {
		if err = ctx.Err(); err != nil {
			return batch, err
		}
		res, err := svc.update(ctx, lb)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("updating %s: %v", lb.CoreScope(), err), err, lb.CoreScope())
			batch.fail(lb.CoreScope(), err)
			continue
		}
		batch.add(res)
	}
	return batch, nil
}

// update sums the points of lb's window, ranks its users and replaces its entries in one transaction.
func (svc *Service) update(ctx context.Context, lb Leaderboard) (Result, error) {
	scope := lb.CoreScope()
	res := Result{Scope: scope, LeaderboardID: lb.ID}

	if err := lb.Validate(); err != nil {
		return res, err
	}

	now := NowFunc().UTC()
	totals, err := svc.repo.SumPoints(ctx, lb, WindowFor(lb.Period, now))
	if err != nil {
		return res, errors.Wrap(err, "summing points")
	}
	res.Users = len(totals)

	items := make([]standing.Entry, 0, len(totals))
	for _, tot := range totals {
		items = append(items, standing.Entry{ID: tot.UserID, Score: float64(tot.Score)})
	}
	standings := standing.Compete(items)

	entries := make([]Entry, 0, len(standings))
	for _, st := range standings {
		entries = append(entries, Entry{
			LeaderboardID: lb.ID,
			UserID:        st.ID,
			Score:         int64(st.Score),
			Rank:          st.Rank,
			IsVisible:     true,
			UpdatedAt:     now,
		})
	}

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		written, removed, err := svc.repo.ReplaceEntries(ctx, lb.ID, entries, execs(exec)...)
		if err != nil {
			return err
		}
		if err = svc.repo.TouchLeaderboard(ctx, lb.ID, now, execs(exec)...); err != nil {
			return err
		}
		res.EntriesWritten, res.EntriesRemoved = written, removed
		return nil
	})
	if err != nil {
		res.EntriesWritten, res.EntriesRemoved = 0, 0
		return res, errors.Wrap(err, "replacing entries")
	}

	svc.logger.Info(fmt.Sprintf(
		"updated %s (%s): users=%d written=%d removed=%d",
		scope, lb.Period, res.Users, res.EntriesWritten, res.EntriesRemoved,
	), scope)
	return res, nil
}

func execs(exec core.DBExecutor) []core.DBExecutor {
	if exec == nil {
		return nil
	}
	return []core.DBExecutor{exec}
}
