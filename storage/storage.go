package storage

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/storage/database"
	"github.com/trezcool/cheo/storage/database/inmem"
	"github.com/trezcool/cheo/storage/database/sqlboiler"
	"github.com/trezcool/cheo/storage/database/sqlx"
)

// repository implementations
const (
	ReposSqlx      = "sqlx"
	ReposSqlboiler = "sqlboiler"
)

// Store bundles what the engines persist through.
type Store struct {
	DB              *sql.DB // nil for the inmem engine
	Tx              core.Transactor
	RankingRepo     ranking.Repository
	LeaderboardRepo leaderboard.Repository
}

// Open opens the configured database engine and builds its repositories.
func Open(conf *core.Config) (*Store, error) {
	if conf.Database.Engine == database.EngineInMem {
		mem, err := inmemdb.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening in-memory database")
		}
		return NewInMemStore(mem), nil
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLStore(db, conf.Database.Repos)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore builds the repos implementation of a postgres db.
func NewSQLStore(db *sql.DB, repos string) (*Store, error) {
	store := &Store{DB: db, Tx: database.NewTransactor(db)}

	switch repos {
	case ReposSqlboiler, "":
		store.RankingRepo = boiledrepos.NewRankingRepository(db)
		store.LeaderboardRepo = boiledrepos.NewLeaderboardRepository(db)
	case ReposSqlx:
		xdb := sqlx.NewDb(db, database.EnginePostgres)
		store.RankingRepo = sqlxrepos.NewRankingRepository(xdb)
		store.LeaderboardRepo = sqlxrepos.NewLeaderboardRepository(xdb)
	default:
		return nil, errors.Errorf("unknown repositories %q", repos)
	}
	return store, nil
}

func NewInMemStore(mem *inmemdb.DB) *Store {
	return &Store{
		Tx:              mem,
		RankingRepo:     inmemdb.NewRankingRepository(mem),
		LeaderboardRepo: inmemdb.NewLeaderboardRepository(mem),
	}
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
