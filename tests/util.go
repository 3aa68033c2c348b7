package testutil

import (
	"context"
	"database/sql"
	"io"
	"log"
	"net/mail"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	logsvc "github.com/trezcool/cheo/services/logger"
	"github.com/trezcool/cheo/storage/database"
	"github.com/trezcool/cheo/storage/database/inmem"
)

// DatabaseURLEnv names the DSN of the postgres database integration tests run against.
const DatabaseURLEnv = "TEST_DATABASE_URL"

func NewConfig() *core.Config {
	conf := &core.Config{
		AppName:          "Cheo",
		Env:              "TEST",
		TestMode:         true,
		DefaultFromEmail: mail.Address{Name: "Cheo", Address: "noreply@cheo.test"},
	}
	conf.Database.Engine = database.EngineInMem
	conf.Ranking.MinScore = 0
	conf.Ranking.MaxScore = 100
	conf.Report.Recipients = []mail.Address{{Name: "Admin", Address: "admin@cheo.test"}}
	return conf
}

// NewLogger returns a silent logger. Set TEST_VERBOSE to see its output.
func NewLogger(conf *core.Config) core.Logger {
	var out io.Writer = io.Discard
	if os.Getenv("TEST_VERBOSE") != "" {
		out = os.Stdout
	}
	logger := logsvc.NewRollbarLogger(log.New(out, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)
	return logger
}

func OpenInMemDB(t *testing.T) *inmemdb.DB {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	return db
}

// PrepareDB opens, migrates and empties the integration database. The test is skipped when none is configured.
func PrepareDB(t *testing.T) *sql.DB {
	dsn := os.Getenv(DatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s not set", DatabaseURLEnv)
	}

	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("database.OpenURL() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	if err = database.Truncate(context.Background(), db); err != nil {
		t.Fatalf("database.Truncate() failed: %v", err)
	}
	return db
}

// Record returns a scored performance record.
func Record(student, subject, grade string, pct float64) ranking.PerformanceRecord {
	return ranking.PerformanceRecord{
		ID:           uuid.New().String(),
		StudentID:    student,
		SubjectID:    subject,
		GradeLevelID: grade,
		Percentage:   null.Float64From(pct),
		RecordedAt:   time.Now().UTC(),
	}
}

// UnscoredRecord returns a performance record without a percentage.
func UnscoredRecord(student, subject, grade string) ranking.PerformanceRecord {
	rec := Record(student, subject, grade, 0)
	rec.Percentage = null.Float64{}
	return rec
}

// Event returns a site wide point event.
func Event(user string, points int, at time.Time) leaderboard.PointEvent {
	return leaderboard.PointEvent{
		ID:        uuid.New().String(),
		UserID:    user,
		Points:    points,
		CreatedAt: at.UTC(),
	}
}

func CourseEvent(user, course string, points int, at time.Time) leaderboard.PointEvent {
	ev := Event(user, points, at)
	ev.CourseID = null.StringFrom(course)
	return ev
}

func CategoryEvent(user, category string, points int, at time.Time) leaderboard.PointEvent {
	ev := Event(user, points, at)
	ev.Category = category
	return ev
}

func Board(name string, scope leaderboard.Scope, scopeID string, period leaderboard.Period, isActive bool) leaderboard.Leaderboard {
	return leaderboard.Leaderboard{
		Name:     name,
		Scope:    scope,
		ScopeID:  scopeID,
		Period:   period,
		IsActive: isActive,
	}
}

// InsertRecords writes recs to a postgres db, bypassing the repositories which never write them.
func InsertRecords(t *testing.T, db *sql.DB, recs ...ranking.PerformanceRecord) {
	q := `INSERT INTO performance_record (id, student_id, subject_id, grade_level_id, percentage, level, recorded_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)`
	for _, rec := range recs {
		if _, err := db.Exec(q, rec.ID, rec.StudentID, rec.SubjectID, rec.GradeLevelID, rec.Percentage, rec.Level, rec.RecordedAt); err != nil {
			t.Fatalf("InsertRecords() failed: %v", err)
		}
	}
}

// InsertEvents writes evs to a postgres db.
func InsertEvents(t *testing.T, db *sql.DB, evs ...leaderboard.PointEvent) {
	q := `INSERT INTO point_event (id, user_id, points, category, course_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	for _, ev := range evs {
		if _, err := db.Exec(q, ev.ID, ev.UserID, ev.Points, ev.Category, ev.CourseID, ev.CreatedAt); err != nil {
			t.Fatalf("InsertEvents() failed: %v", err)
		}
	}
}

// CreateBoard writes lb to a postgres db and returns it with its ID.
func CreateBoard(t *testing.T, db *sql.DB, lb leaderboard.Leaderboard) leaderboard.Leaderboard {
	q := `INSERT INTO leaderboard (name, scope, scope_id, period, is_active) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := db.QueryRow(q, lb.Name, lb.Scope, lb.ScopeID, lb.Period, lb.IsActive).Scan(&lb.ID); err != nil {
		t.Fatalf("CreateBoard() failed: %v", err)
	}
	return lb
}
