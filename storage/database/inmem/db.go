package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
)

type (
	// DB is a process local store. It backs tests and the "inmem" database engine.
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex // one transaction at a time

		ranking     rankingTables
		leaderboard leaderboardTables
	}

	rankingTables struct {
		records  map[string]ranking.PerformanceRecord
		rankings map[string]ranking.Ranking
	}

	leaderboardTables struct {
		pkCount    int
		boards     map[int]leaderboard.Leaderboard
		events     map[string]leaderboard.PointEvent
		entries    map[int]map[string]leaderboard.Entry // {leaderboard: {user: entry}}
		visibility map[int]map[string]bool              // {leaderboard: {user: visible}}
	}

	// tx journals the rows written through it so a rollback reverts those rows only.
	// Writes made outside the transaction are kept.
	tx struct {
		core.DBExecutor // nil: no SQL runs in memory
		undo            []func()
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		ranking: rankingTables{
			records:  make(map[string]ranking.PerformanceRecord),
			rankings: make(map[string]ranking.Ranking),
		},
		leaderboard: leaderboardTables{
			boards:     make(map[int]leaderboard.Leaderboard),
			events:     make(map[string]leaderboard.PointEvent),
			entries:    make(map[int]map[string]leaderboard.Entry),
			visibility: make(map[int]map[string]bool),
		},
	}
	return db, nil
}

// InTx runs fn with an executor the repositories of db journal their writes on.
// The rows fn wrote are restored if it fails or panics.
func (db *DB) InTx(ctx context.Context, fn core.TxFunc) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err = ctx.Err(); err != nil {
		return err
	}

	t := &tx{}
	rollback := func() {
		db.mu.Lock()
		defer db.mu.Unlock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(t); err != nil {
		rollback()
	}
	return err
}

// txOf returns the transaction exec belongs to, or nil outside of one.
func txOf(exec []core.DBExecutor) *tx {
	if len(exec) > 0 {
		if t, ok := exec[0].(*tx); ok {
			return t
		}
	}
	return nil
}

// setRow writes m[k] = v, or deletes k when del is set. The previous row is journaled on t.
// Callers hold db.mu.
func setRow[K comparable, V any](t *tx, m map[K]V, k K, v V, del bool) {
	if t != nil {
		prev, had := m[k]
		t.undo = append(t.undo, func() {
			if had {
				m[k] = prev
			} else {
				delete(m, k)
			}
		})
	}
	if del {
		delete(m, k)
	} else {
		m[k] = v
	}
}

// InsertPerformanceRecords stores recs, generating missing IDs.
func (db *DB) InsertPerformanceRecords(recs ...ranking.PerformanceRecord) []ranking.PerformanceRecord {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]ranking.PerformanceRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		db.ranking.records[rec.ID] = rec
		out = append(out, rec)
	}
	return out
}

// InsertPointEvents stores evs, generating missing IDs.
func (db *DB) InsertPointEvents(evs ...leaderboard.PointEvent) []leaderboard.PointEvent {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]leaderboard.PointEvent, 0, len(evs))
	for _, ev := range evs {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		db.leaderboard.events[ev.ID] = ev
		out = append(out, ev)
	}
	return out
}

// CreateLeaderboard stores lb under a new ID.
func (db *DB) CreateLeaderboard(lb leaderboard.Leaderboard) leaderboard.Leaderboard {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.leaderboard.pkCount++
	lb.ID = db.leaderboard.pkCount
	db.leaderboard.boards[lb.ID] = lb
	return lb
}
