package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
)

var (
	leaderboardColumns = []string{"id", "name", "scope", "scope_id", "period", "is_active", "last_updated_at"}
	entryColumns       = []string{"leaderboard_id", "user_id", "score", "rank", "is_visible", "updated_at"}
)

type leaderboardRepository struct {
	repository
}

var _ leaderboard.Repository = (*leaderboardRepository)(nil) // interface compliance check

func NewLeaderboardRepository(exec core.DBExecutor) leaderboard.Repository {
	return &leaderboardRepository{repository{exec: exec}}
}

func (repo leaderboardRepository) GetLeaderboard(ctx context.Context, id int, exec ...core.DBExecutor) (leaderboard.Leaderboard, error) {
	boards := make([]leaderboard.Leaderboard, 0, 1)
	err := newQuery(
		qm.Select(leaderboardColumns...),
		qm.From("leaderboard"),
		qm.Where("id = ?", id),
	).Bind(ctx, repo.getExec(exec), &boards)
	if err != nil {
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
	mods := []qm.QueryMod{qm.Select(leaderboardColumns...), qm.From("leaderboard")}
	if filter.IsActive != nil {
		mods = append(mods, qm.Where("is_active = ?", *filter.IsActive))
	}
	if filter.Period != "" {
		mods = append(mods, qm.Where("period = ?", filter.Period))
	}
	mods = append(mods, qm.OrderBy("id"))

	boards := make([]leaderboard.Leaderboard, 0)
	if err := newQuery(mods...).Bind(ctx, repo.getExec(exec), &boards); err != nil {
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
	mods := []qm.QueryMod{
		qm.Select("user_id", "SUM(points) AS score"),
		qm.From("point_event"),
		qm.Where("user_id <> ''"),
		qm.Where("created_at < ?", window.To.UTC()),
	}
	if !window.From.IsZero() {
		mods = append(mods, qm.Where("created_at >= ?", window.From.UTC()))
	}
	switch lb.Scope {
	case leaderboard.ScopeCourse:
		mods = append(mods, qm.Where("course_id = ?", lb.ScopeID))
	case leaderboard.ScopeCategory:
		mods = append(mods, qm.Where("category = ?", lb.ScopeID))
	}
	mods = append(mods, qm.GroupBy("user_id"), qm.OrderBy("user_id"))

	totals := make([]leaderboard.Total, 0)
	if err := newQuery(mods...).Bind(ctx, repo.getExec(exec), &totals); err != nil {
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
	mods := []qm.QueryMod{qm.From("leaderboard_entry"), qm.Where("leaderboard_id = ?", leaderboardID)}
	if len(entries) > 0 {
		userIDs := make([]interface{}, 0, len(entries))
		for _, e := range entries {
			userIDs = append(userIDs, e.UserID)
		}
		mods = append(mods, qm.WhereNotIn("user_id NOT IN ?", userIDs...))
	}
	del := newQuery(mods...)
	queries.SetDelete(del)
	res, err := del.ExecContext(ctx, exe)
	if err != nil {
		return 0, 0, errors.Wrap(err, "deleting stale entries")
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, 0, errors.Wrap(err, "deleting stale entries")
	}

	// is_visible is only set on insert: a user's choice survives recomputation
	onConflict := `ON CONFLICT (leaderboard_id, user_id) DO UPDATE
		SET score = EXCLUDED.score, rank = EXCLUDED.rank, updated_at = EXCLUDED.updated_at`

	var written int
	for _, b := range batches(len(entries)) {
		batch := entries[b[0]:b[1]]
		args := make([]interface{}, 0, len(batch)*len(entryColumns))
		for _, e := range batch {
			args = append(args, leaderboardID, e.UserID, e.Score, e.Rank, e.IsVisible, e.UpdatedAt.UTC())
		}
		res, err := queries.Raw(insertQuery("leaderboard_entry", entryColumns, len(batch), onConflict), args...).ExecContext(ctx, exe)
		if err != nil {
			return 0, 0, errors.Wrap(err, "upserting entries")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, errors.Wrap(err, "upserting entries")
		}
		written += int(n)
	}

	// users re-entering the window get back the visibility they chose
	prefs := `UPDATE leaderboard_entry AS e SET is_visible = v.is_visible
		FROM leaderboard_visibility AS v
		WHERE v.leaderboard_id = e.leaderboard_id AND v.user_id = e.user_id
			AND e.leaderboard_id = $1 AND e.is_visible <> v.is_visible`
	if _, err = queries.Raw(prefs, leaderboardID).ExecContext(ctx, exe); err != nil {
		return 0, 0, errors.Wrap(err, "applying visibility preferences")
	}
	return written, int(removed), nil
}

func (repo leaderboardRepository) QueryEntries(
	ctx context.Context,
	leaderboardID int,
	filter leaderboard.EntryFilter,
	exec ...core.DBExecutor,
) ([]leaderboard.Entry, error) {
	mods := []qm.QueryMod{
		qm.Select(entryColumns...),
		qm.From("leaderboard_entry"),
		qm.Where("leaderboard_id = ?", leaderboardID),
	}
	if filter.VisibleOnly {
		mods = append(mods, qm.Where("is_visible = ?", true))
	}
	mods = append(mods, qm.OrderBy("rank, user_id"))
	if filter.Limit > 0 {
		mods = append(mods, qm.Limit(filter.Limit))
	}

	entries := make([]leaderboard.Entry, 0)
	if err := newQuery(mods...).Bind(ctx, repo.getExec(exec), &entries); err != nil {
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
	q := `UPDATE leaderboard_entry SET is_visible = $1 WHERE leaderboard_id = $2 AND user_id = $3
		RETURNING leaderboard_id, user_id, score, rank, is_visible, updated_at`
	if err := queries.Raw(q, visible, leaderboardID, userID).Bind(ctx, exe, &entries); err != nil {
		return leaderboard.Entry{}, errors.Wrap(err, "updating entry visibility")
	}
	if len(entries) == 0 {
		return leaderboard.Entry{}, leaderboard.ErrEntryNotFound
	}

	pref := insertQuery("leaderboard_visibility", []string{"leaderboard_id", "user_id", "is_visible"}, 1,
		`ON CONFLICT (leaderboard_id, user_id) DO UPDATE SET is_visible = EXCLUDED.is_visible`)
	if _, err := queries.Raw(pref, leaderboardID, userID, visible).ExecContext(ctx, exe); err != nil {
		return leaderboard.Entry{}, errors.Wrap(err, "storing visibility preference")
	}
	return entries[0], nil
}

func (repo leaderboardRepository) TouchLeaderboard(ctx context.Context, id int, at time.Time, exec ...core.DBExecutor) error {
	upd := newQuery(qm.From("leaderboard"), qm.Where("id = ?", id))
	queries.SetUpdate(upd, map[string]interface{}{"last_updated_at": at.UTC()})
	res, err := upd.ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return errors.Wrap(err, "touching leaderboard")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "touching leaderboard")
	}
	if n == 0 {
		return leaderboard.ErrNotFound
	}
	return nil
}
