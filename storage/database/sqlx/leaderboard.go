package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
)

const (
	leaderboardColumns = `id, name, scope, scope_id, period, is_active, last_updated_at`
	entryColumns       = `leaderboard_id, user_id, score, rank, is_visible, updated_at`
)

type leaderboardRepository struct {
	repository
}

var _ leaderboard.Repository = (*leaderboardRepository)(nil) // interface compliance check

func NewLeaderboardRepository(db *sqlx.DB) leaderboard.Repository {
	return &leaderboardRepository{repository{db: db}}
}

func (repo leaderboardRepository) GetLeaderboard(ctx context.Context, id int, exec ...core.DBExecutor) (leaderboard.Leaderboard, error) {
	boards := make([]leaderboard.Leaderboard, 0, 1)
	q := `SELECT ` + leaderboardColumns + ` FROM leaderboard WHERE id = ?`
	if err := repo.selectContext(ctx, repo.getExec(exec), &boards, q, id); err != nil {
		return leaderboard.Leaderboard{}, errors.Wrap(err, "finding leaderboard by ID")
	}
	if len(boards) == 0 {
		return leaderboard.Leaderboard{}, leaderboard.ErrNotFound
	}
	return boards[0], nil
}

func (repo leaderboardRepository) QueryLeaderboards(
	ctx context.Context,
	filter leaderboard.QueryFilter,
	exec ...core.DBExecutor,
) ([]leaderboard.Leaderboard, error) {
	q := `SELECT ` + leaderboardColumns + ` FROM leaderboard WHERE TRUE`
	var args []interface{}
	if filter.IsActive != nil {
		q += ` AND is_active = ?`
		args = append(args, *filter.IsActive)
	}
	if filter.Period != "" {
		q += ` AND period = ?`
		args = append(args, filter.Period)
	}
	q += ` ORDER BY id`

	boards := make([]leaderboard.Leaderboard, 0)
	if err := repo.selectContext(ctx, repo.getExec(exec), &boards, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying leaderboards")
	}
	return boards, nil
}

func (repo leaderboardRepository) SumPoints(
	ctx context.Context,
	lb leaderboard.Leaderboard,
	window leaderboard.Window,
	exec ...core.DBExecutor,
) ([]leaderboard.Total, error) {
	q := `SELECT user_id, SUM(points) AS score FROM point_event WHERE user_id <> '' AND created_at < ?`
	args := []interface{}{window.To.UTC()}
	if !window.From.IsZero() {
		q += ` AND created_at >= ?`
		args = append(args, window.From.UTC())
	}
	switch lb.Scope {
	case leaderboard.ScopeCourse:
		q += ` AND course_id = ?`
		args = append(args, lb.ScopeID)
	case leaderboard.ScopeCategory:
		q += ` AND category = ?`
		args = append(args, lb.ScopeID)
	}
	q += ` GROUP BY user_id ORDER BY user_id`

	totals := make([]leaderboard.Total, 0)
	if err := repo.selectContext(ctx, repo.getExec(exec), &totals, q, args...); err != nil {
		return nil, errors.Wrap(err, "summing points")
	}
	return totals, nil
}

func (repo leaderboardRepository) ReplaceEntries(
	ctx context.Context,
	leaderboardID int,
	entries []leaderboard.Entry,
	exec ...core.DBExecutor,
) (int, int, error) {
	exe := repo.getExec(exec)

	// drop users who left the window
	var (
		removed int
		err     error
	)
	if len(entries) == 0 {
		removed, err = repo.execContext(ctx, exe, `DELETE FROM leaderboard_entry WHERE leaderboard_id = ?`, leaderboardID)
	} else {
		userIDs := make([]string, 0, len(entries))
		for _, e := range entries {
			userIDs = append(userIDs, e.UserID)
		}
		var (
			q    string
			args []interface{}
		)
		q, args, err = sqlx.In(`DELETE FROM leaderboard_entry WHERE leaderboard_id = ? AND user_id NOT IN (?)`, leaderboardID, userIDs)
		if err == nil {
			removed, err = repo.execContext(ctx, exe, q, args...)
		}
	}
	if err != nil {
		return 0, 0, errors.Wrap(err, "deleting stale entries")
	}
	if len(entries) == 0 {
		return 0, removed, nil
	}

	rows := make([]leaderboard.Entry, 0, len(entries))
	for _, e := range entries {
		e.LeaderboardID = leaderboardID
		e.UpdatedAt = e.UpdatedAt.UTC()
		rows = append(rows, e)
	}
	// is_visible is only set on insert: a user's choice survives recomputation
	ins := `INSERT INTO leaderboard_entry (` + entryColumns + `) VALUES (
		:leaderboard_id, :user_id, :score, :rank, :is_visible, :updated_at
	) ON CONFLICT (leaderboard_id, user_id) DO UPDATE
		SET score = EXCLUDED.score, rank = EXCLUDED.rank, updated_at = EXCLUDED.updated_at`
	written, err := namedExecBatch(ctx, repo.repository, exe, ins, rows)
	if err != nil {
		return 0, 0, errors.Wrap(err, "upserting entries")
	}

	// users re-entering the window get back the visibility they chose
	prefs := `UPDATE leaderboard_entry AS e SET is_visible = v.is_visible
		FROM leaderboard_visibility AS v
		WHERE v.leaderboard_id = e.leaderboard_id AND v.user_id = e.user_id
			AND e.leaderboard_id = ? AND e.is_visible <> v.is_visible`
	if _, err = repo.execContext(ctx, exe, prefs, leaderboardID); err != nil {
		return 0, 0, errors.Wrap(err, "applying visibility preferences")
	}
	return written, removed, nil
}

func (repo leaderboardRepository) QueryEntries(
	ctx context.Context,
	leaderboardID int,
	filter leaderboard.EntryFilter,
	exec ...core.DBExecutor,
) ([]leaderboard.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM leaderboard_entry WHERE leaderboard_id = ?`
	args := []interface{}{leaderboardID}
	if filter.VisibleOnly {
		q += ` AND is_visible`
	}
	q += ` ORDER BY rank, user_id`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	entries := make([]leaderboard.Entry, 0)
	if err := repo.selectContext(ctx, repo.getExec(exec), &entries, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying entries")
	}
	return entries, nil
}

func (repo leaderboardRepository) SetEntryVisibility(
	ctx context.Context,
	leaderboardID int,
	userID string,
	visible bool,
	exec ...core.DBExecutor,
) (leaderboard.Entry, error) {
	exe := repo.getExec(exec)

	entries := make([]leaderboard.Entry, 0, 1)
	q := `UPDATE leaderboard_entry SET is_visible = ? WHERE leaderboard_id = ? AND user_id = ? RETURNING ` + entryColumns
	if err := repo.selectContext(ctx, exe, &entries, q, visible, leaderboardID, userID); err != nil {
		return leaderboard.Entry{}, errors.Wrap(err, "updating entry visibility")
	}
	if len(entries) == 0 {
		return leaderboard.Entry{}, leaderboard.ErrEntryNotFound
	}

	pref := `INSERT INTO leaderboard_visibility (leaderboard_id, user_id, is_visible) VALUES (?, ?, ?)
		ON CONFLICT (leaderboard_id, user_id) DO UPDATE SET is_visible = EXCLUDED.is_visible`
	if _, err := repo.execContext(ctx, exe, pref, leaderboardID, userID, visible); err != nil {
		return leaderboard.Entry{}, errors.Wrap(err, "storing visibility preference")
	}
	return entries[0], nil
}

func (repo leaderboardRepository) TouchLeaderboard(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error {
	n, err := repo.execContext(ctx, repo.getExec(exec), `UPDATE leaderboard SET last_updated_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "touching leaderboard")
	}
	if n == 0 {
		return leaderboard.ErrNotFound
	}
	return nil
}
