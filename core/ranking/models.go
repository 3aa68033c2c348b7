package ranking

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cheo/core"
)

// Type is the kind of scope a Ranking is computed over.
type Type string

const (
	TypeOverall      Type = "overall"       // all subjects of a grade level
	TypeSubjectGrade Type = "subject_grade" // one subject of a grade level
)

// Level is the qualitative band of a percentage score.
type Level string

const (
	LevelExcellent    Level = "excellent"
	LevelVeryGood     Level = "very_good"
	LevelGood         Level = "good"
	LevelSatisfactory Level = "satisfactory"
	LevelPass         Level = "pass"
	LevelFail         Level = "fail"
)

var levelThresholds = []struct {
	min   float64
	level Level
}{
	{90, LevelExcellent},
	{80, LevelVeryGood},
	{70, LevelGood},
	{60, LevelSatisfactory},
	{50, LevelPass},
}

// LevelFor returns the Level of a percentage score.
func LevelFor(pct float64) Level {
	for _, th := range levelThresholds {
		if pct >= th.min {
			return th.level
		}
	}
	return LevelFail
}

// PerformanceRecord is a graded result of a student. It is produced by the grading pipeline and never written here.
type PerformanceRecord struct {
	ID           string       `json:"id" db:"id" boil:"id"`
	StudentID    string       `json:"student_id" db:"student_id" boil:"student_id"`
	SubjectID    string       `json:"subject_id" db:"subject_id" boil:"subject_id"`
	GradeLevelID string       `json:"grade_level_id" db:"grade_level_id" boil:"grade_level_id"`
	Percentage   null.Float64 `json:"percentage" db:"percentage" boil:"percentage"`
	Level        string       `json:"level" db:"level" boil:"level"`
	RecordedAt   time.Time    `json:"recorded_at" db:"recorded_at" boil:"recorded_at"` // UTC
}

// Cohort is the set of students sharing a subject and a grade level.
type Cohort struct {
	SubjectID    string `json:"subject_id" db:"subject_id" boil:"subject_id"`
	GradeLevelID string `json:"grade_level_id" db:"grade_level_id" boil:"grade_level_id"`
}

// Key identifies one ranking snapshot. SubjectID is empty for TypeOverall.
type Key struct {
	Type         Type
	SubjectID    string
	GradeLevelID string
}

func CohortKey(c Cohort) Key {
	return Key{Type: TypeSubjectGrade, SubjectID: c.SubjectID, GradeLevelID: c.GradeLevelID}
}

func OverallKey(gradeLevelID string) Key {
	return Key{Type: TypeOverall, GradeLevelID: gradeLevelID}
}

func (k Key) Scope() core.Scope {
	id := k.GradeLevelID
	if k.SubjectID != "" {
		id = k.SubjectID + ":" + k.GradeLevelID
	}
	return core.Scope{Engine: core.EngineRanking, Kind: string(k.Type), ID: id}
}

// Ranking is the latest rank of a student within a Key. No history is kept.
type Ranking struct {
	ID           string      `json:"id" db:"id" boil:"id"`
	StudentID    string      `json:"student_id" db:"student_id" boil:"student_id"`
	Type         Type        `json:"ranking_type" db:"ranking_type" boil:"ranking_type"`
	SubjectID    null.String `json:"subject_id" db:"subject_id" boil:"subject_id"`
	GradeLevelID string      `json:"grade_level_id" db:"grade_level_id" boil:"grade_level_id"`
	Rank         int         `json:"rank" db:"rank" boil:"rank"`
	Score        float64     `json:"score" db:"score" boil:"score"`
	Percentile   float64     `json:"percentile" db:"percentile" boil:"percentile"`
	Level        Level       `json:"level" db:"level" boil:"level"`
	CohortSize   int         `json:"cohort_size" db:"cohort_size" boil:"cohort_size"`
	CalculatedAt time.Time   `json:"calculated_at" db:"calculated_at" boil:"calculated_at"` // UTC
}

func (r Ranking) Key() Key {
	return Key{Type: r.Type, SubjectID: r.SubjectID.String, GradeLevelID: r.GradeLevelID}
}

// Summary of one scope's run.
type Summary struct {
	Scope           core.Scope `json:"scope"`
	TotalStudents   int        `json:"total_students"`
	Processed       int        `json:"processed"`
	RankingsWritten int        `json:"rankings_written"`
	Errors          int        `json:"errors"`
}

// BatchSummary of a run over several scopes.
type BatchSummary struct {
	Scopes   []Summary          `json:"scopes"`
	Failures []*core.ScopeError `json:"-"`
}

func (b *BatchSummary) add(s Summary) { b.Scopes = append(b.Scopes, s) }

func (b *BatchSummary) fail(scope core.Scope, err error) {
	b.Failures = append(b.Failures, core.NewScopeError(scope, err))
}

// Total sums the counts of all successful scopes.
func (b BatchSummary) Total() Summary {
	var tot Summary
	for _, s := range b.Scopes {
		tot.TotalStudents += s.TotalStudents
		tot.Processed += s.Processed
		tot.RankingsWritten += s.RankingsWritten
		tot.Errors += s.Errors
	}
	return tot
}

func (b BatchSummary) Failed() bool { return len(b.Failures) > 0 }

// CohortParams selects one cohort to rank.
type CohortParams struct {
	SubjectID    string `json:"subject" validate:"required,notblank"`
	GradeLevelID string `json:"grade" validate:"required,notblank"`
}

func (p *CohortParams) Validate() error {
	p.SubjectID = core.CleanString(p.SubjectID)
	p.GradeLevelID = core.CleanString(p.GradeLevelID)
	return validate(p)
}

func (p CohortParams) Cohort() Cohort {
	return Cohort{SubjectID: p.SubjectID, GradeLevelID: p.GradeLevelID}
}

// QueryFilter applies AND operation on its set fields.
type QueryFilter struct {
	StudentID    string `json:"student" query:"student"`
	Type         Type   `json:"type" query:"type" validate:"omitempty,oneof=overall subject_grade"`
	SubjectID    string `json:"subject" query:"subject"`
	GradeLevelID string `json:"grade" query:"grade"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Type = Type(core.CleanString(string(qf.Type), true /* lower */))
	qf.SubjectID = core.CleanString(qf.SubjectID)
	qf.GradeLevelID = core.CleanString(qf.GradeLevelID)
}

func (qf *QueryFilter) Validate() error {
	qf.Clean()
	return validate(qf)
}

func (qf QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.Type == "" && qf.SubjectID == "" && qf.GradeLevelID == ""
}

// Match reports whether r satisfies the filter.
func (qf QueryFilter) Match(r Ranking) bool {
	return (qf.StudentID == "" || r.StudentID == qf.StudentID) &&
		(qf.Type == "" || r.Type == qf.Type) &&
		(qf.SubjectID == "" || r.SubjectID.String == qf.SubjectID) &&
		(qf.GradeLevelID == "" || r.GradeLevelID == qf.GradeLevelID)
}

func validate(s interface{}) error {
	if err := core.Validate.Struct(s); err != nil {
		return core.NewValidationError(err, core.TranslateErrors(err)...)
	}
	return nil
}
