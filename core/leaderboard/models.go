package leaderboard

import (
	"strconv"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cheo/core"
)

// Scope is what point events a Leaderboard aggregates.
type Scope string

const (
	ScopeSite     Scope = "site"     // every point event
	ScopeCourse   Scope = "course"   // events of the course ScopeID
	ScopeCategory Scope = "category" // events of the category ScopeID
)

var Scopes = []Scope{ScopeSite, ScopeCourse, ScopeCategory}

// Period is the time window policy of a Leaderboard. It doubles as the schedule identifier of periodic runs.
type Period string

const (
	PeriodAllTime Period = "all_time"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

var Periods = []Period{PeriodAllTime, PeriodDaily, PeriodWeekly, PeriodMonthly}

func IsValidScope(s Scope) bool {
	for _, sc := range Scopes {
		if s == sc {
			return true
		}
	}
	return false
}

func IsValidPeriod(p Period) bool {
	for _, pr := range Periods {
		if p == pr {
			return true
		}
	}
	return false
}

type Leaderboard struct {
	ID            int       `json:"id" db:"id" boil:"id"`
	Name          string    `json:"name" db:"name" boil:"name" validate:"required,notblank"`
	Scope         Scope     `json:"scope" db:"scope" boil:"scope" validate:"required,lbscope"`
	ScopeID       string    `json:"scope_id" db:"scope_id" boil:"scope_id"`
	Period        Period    `json:"period" db:"period" boil:"period" validate:"required,lbperiod"`
	IsActive      bool      `json:"is_active" db:"is_active" boil:"is_active"`
	LastUpdatedAt null.Time `json:"last_updated_at" db:"last_updated_at" boil:"last_updated_at"` // UTC
}

func (lb Leaderboard) CoreScope() core.Scope {
	return core.Scope{Engine: core.EngineLeaderboard, Kind: string(lb.Scope), ID: strconv.Itoa(lb.ID)}
}

// Validate checks the definition is computable.
func (lb *Leaderboard) Validate() error {
	lb.Name = core.CleanString(lb.Name)
	lb.Scope = Scope(core.CleanString(string(lb.Scope), true /* lower */))
	lb.ScopeID = core.CleanString(lb.ScopeID)
	lb.Period = Period(core.CleanString(string(lb.Period), true /* lower */))
	return validate(lb)
}

// Matches reports whether ev counts towards lb, regardless of time.
func (lb Leaderboard) Matches(ev PointEvent) bool {
	switch lb.Scope {
	case ScopeSite:
		return true
	case ScopeCourse:
		return ev.CourseID.Valid && ev.CourseID.String == lb.ScopeID
	case ScopeCategory:
		return ev.Category == lb.ScopeID
	default:
		return false
	}
}

// PointEvent is an append-only gameplay/engagement reward.
type PointEvent struct {
	ID        string      `json:"id" db:"id" boil:"id"`
	UserID    string      `json:"user_id" db:"user_id" boil:"user_id"`
	Points    int         `json:"points" db:"points" boil:"points"`
	Category  string      `json:"category" db:"category" boil:"category"`
	CourseID  null.String `json:"course_id" db:"course_id" boil:"course_id"`
	CreatedAt time.Time   `json:"created_at" db:"created_at" boil:"created_at"` // UTC
}

// Window is the half-open time range [From, To). A zero From is unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	return t.Before(w.To)
}

// Total is the summed points of one user.
type Total struct {
	UserID string `db:"user_id" boil:"user_id"`
	Score  int64  `db:"score" boil:"score"`
}

type Entry struct {
	LeaderboardID int       `json:"leaderboard_id" db:"leaderboard_id" boil:"leaderboard_id"`
	UserID        string    `json:"user_id" db:"user_id" boil:"user_id"`
	Score         int64     `json:"score" db:"score" boil:"score"`
	Rank          int       `json:"rank" db:"rank" boil:"rank"`
	IsVisible     bool      `json:"is_visible" db:"is_visible" boil:"is_visible"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at" boil:"updated_at"` // UTC
}

// Result of one leaderboard's run.
type Result struct {
	Scope          core.Scope `json:"scope"`
	LeaderboardID  int        `json:"leaderboard_id"`
	Users          int        `json:"users"`
	EntriesWritten int        `json:"entries_written"`
	EntriesRemoved int        `json:"entries_removed"`
}

// BatchSummary of a run over several leaderboards.
type BatchSummary struct {
	Results  []Result           `json:"results"`
	Failures []*core.ScopeError `json:"-"`
}

func (b *BatchSummary) add(r Result) { b.Results = append(b.Results, r) }

func (b *BatchSummary) fail(scope core.Scope, err error) {
	b.Failures = append(b.Failures, core.NewScopeError(scope, err))
}

func (b BatchSummary) Processed() int { return len(b.Results) + len(b.Failures) }
func (b BatchSummary) Succeeded() int { return len(b.Results) }
func (b BatchSummary) Failed() bool   { return len(b.Failures) > 0 }

// Total sums the counts of all successful leaderboards.
func (b BatchSummary) Total() Result {
	var tot Result
	for _, r := range b.Results {
		tot.Users += r.Users
		tot.EntriesWritten += r.EntriesWritten
		tot.EntriesRemoved += r.EntriesRemoved
	}
	return tot
}

// QueryFilter applies AND operation on its set fields.
type QueryFilter struct {
	IsActive *bool
	Period   Period
}

// EntryFilter selects the entries of one leaderboard, in rank order.
type EntryFilter struct {
	VisibleOnly bool
	Limit       int // 0 = no limit
}

// VisibilityUpdate is a user showing or hiding themselves on a leaderboard.
type VisibilityUpdate struct {
	LeaderboardID int    `json:"-" validate:"required,gt=0"`
	UserID        string `json:"-" validate:"required,notblank"`
	IsVisible     *bool  `json:"is_visible" validate:"required"`
}

func (vu *VisibilityUpdate) Validate() error {
	vu.UserID = core.CleanString(vu.UserID)
	return validate(vu)
}

func validate(s interface{}) error {
	if err := core.Validate.Struct(s); err != nil {
		return core.NewValidationError(err, core.TranslateErrors(err)...)
	}
	return nil
}
