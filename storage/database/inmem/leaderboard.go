package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
)

type leaderboardRepository struct {
	db *DB
}

func NewLeaderboardRepository(db *DB) leaderboard.Repository {
	return &leaderboardRepository{db: db}
}

func (repo *leaderboardRepository) GetLeaderboard(_ context.Context, id int, _ ...core.DBExecutor) (leaderboard.Leaderboard, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if lb, ok := repo.db.leaderboard.boards[id]; ok {
		return lb, nil
	}
	return leaderboard.Leaderboard{}, leaderboard.ErrNotFound
}

func (repo *leaderboardRepository) QueryLeaderboards(
	_ context.Context,
	filter leaderboard.QueryFilter,
	_ ...core.DBExecutor,
) ([]leaderboard.Leaderboard, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	boards := make([]leaderboard.Leaderboard, 0)
	for _, lb := range repo.db.leaderboard.boards {
		if filter.IsActive != nil && lb.IsActive != *filter.IsActive {
			continue
		}
		if filter.Period != "" && lb.Period != filter.Period {
			continue
		}
		boards = append(boards, lb)
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].ID < boards[j].ID })
	return boards, nil
}

func (repo *leaderboardRepository) SumPoints(
	_ context.Context,
	lb leaderboard.Leaderboard,
	window leaderboard.Window,
	_ ...core.DBExecutor,
) ([]leaderboard.Total, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sums := make(map[string]int64)
	for _, ev := range repo.db.leaderboard.events {
		if ev.UserID == "" || !lb.Matches(ev) || !window.Contains(ev.CreatedAt) {
			continue
		}
		sums[ev.UserID] += int64(ev.Points)
	}

	totals := make([]leaderboard.Total, 0, len(sums))
	for userID, score := range sums {
		totals = append(totals, leaderboard.Total{UserID: userID, Score: score})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].UserID < totals[j].UserID })
	return totals, nil
}

func (repo *leaderboardRepository) ReplaceEntries(
	_ context.Context,
	leaderboardID int,
	entries []leaderboard.Entry,
	exec ...core.DBExecutor,
) (int, int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	old := repo.db.leaderboard.entries[leaderboardID]
	prefs := repo.db.leaderboard.visibility[leaderboardID]
	fresh := make(map[string]leaderboard.Entry, len(entries))
	for _, e := range entries {
		if visible, ok := prefs[e.UserID]; ok {
			e.IsVisible = visible
		}
		e.LeaderboardID = leaderboardID
		fresh[e.UserID] = e
	}

	var removed int
	for userID := range old {
		if _, ok := fresh[userID]; !ok {
			removed++
		}
	}
	setRow(txOf(exec), repo.db.leaderboard.entries, leaderboardID, fresh, false)
	return len(entries), removed, nil
}

func (repo *leaderboardRepository) QueryEntries(
	_ context.Context,
	leaderboardID int,
	filter leaderboard.EntryFilter,
	_ ...core.DBExecutor,
) ([]leaderboard.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]leaderboard.Entry, 0)
	for _, e := range repo.db.leaderboard.entries[leaderboardID] {
		if filter.VisibleOnly && !e.IsVisible {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		return entries[i].UserID < entries[j].UserID
	})
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

func (repo *leaderboardRepository) SetEntryVisibility(
	_ context.Context,
	leaderboardID int,
	userID string,
	visible bool,
	exec ...core.DBExecutor,
) (leaderboard.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	users := repo.db.leaderboard.entries[leaderboardID]
	e, ok := users[userID]
	if !ok {
		return leaderboard.Entry{}, leaderboard.ErrEntryNotFound
	}
	t := txOf(exec)
	e.IsVisible = visible
	setRow(t, users, userID, e, false)

	prefs, ok := repo.db.leaderboard.visibility[leaderboardID]
	if !ok {
		prefs = make(map[string]bool)
		setRow(t, repo.db.leaderboard.visibility, leaderboardID, prefs, false)
	}
	setRow(t, prefs, userID, visible, false)
	return e, nil
}

func (repo *leaderboardRepository) TouchLeaderboard(_ context.Context, id int, at time.Time, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	lb, ok := repo.db.leaderboard.boards[id]
	if !ok {
		return leaderboard.ErrNotFound
	}
	lb.LastUpdatedAt.SetValid(at.UTC())
	setRow(txOf(exec), repo.db.leaderboard.boards, id, lb, false)
	return nil
}
