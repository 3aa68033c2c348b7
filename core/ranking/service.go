package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/standing"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrMissingScore   = errors.New("performance record has no score")
	ErrInvalidScore   = errors.New("performance record score out of range")
	ErrMissingStudent = errors.New("performance record has no student")
)

type (
	Repository interface {
		// QueryCohortRecords returns every performance record of a subject & grade level.
		QueryCohortRecords(ctx context.Context, cohort Cohort, exec ...core.DBExecutor) ([]PerformanceRecord, error)
		// QueryGradeRecords returns every performance record of a grade level, all subjects.
		QueryGradeRecords(ctx context.Context, gradeLevelID string, exec ...core.DBExecutor) ([]PerformanceRecord, error)
		// QueryCohorts returns the distinct cohorts having performance records.
		QueryCohorts(ctx context.Context, exec ...core.DBExecutor) ([]Cohort, error)
		// QueryGradeLevels returns the distinct grade levels having performance records.
		QueryGradeLevels(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
		// ReplaceRankings swaps the snapshot of a Key for rankings and returns the number of rows written.
		ReplaceRankings(ctx context.Context, key Key, rankings []Ranking, exec ...core.DBExecutor) (int, error)
		// DeleteRankingsExcept drops the snapshots of every Key missing from keep and returns the number of rows deleted.
		DeleteRankingsExcept(ctx context.Context, keep []Key, exec ...core.DBExecutor) (int, error)
		QueryRankings(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Ranking, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		logger   core.Logger
		minScore float64
		maxScore float64
	}
)

func NewService(tx core.Transactor, repo Repository, logger core.Logger, conf *core.Config) *Service {
	svc := &Service{
		tx:       tx,
		repo:     repo,
		logger:   logger,
		minScore: 0,
		maxScore: 100,
	}
	if conf != nil && conf.Ranking.MaxScore > conf.Ranking.MinScore {
		svc.minScore = conf.Ranking.MinScore
		svc.maxScore = conf.Ranking.MaxScore
	}
	return svc
}

// RankCohort ranks every student of one subject & grade level.
func (svc *Service) RankCohort(ctx context.Context, params CohortParams) (Summary, error) {
	if err := params.Validate(); err != nil {
		return Summary{}, err
	}
	key := CohortKey(params.Cohort())

	records, err := svc.repo.QueryCohortRecords(ctx, params.Cohort())
	if err != nil {
		return Summary{Scope: key.Scope()}, errors.Wrap(err, "querying cohort records")
	}
	return svc.rank(ctx, key, records)
}

// RankOverall ranks every student of a grade level across all subjects.
func (svc *Service) RankOverall(ctx context.Context, gradeLevelID string) (Summary, error) {
	gradeLevelID = core.CleanString(gradeLevelID)
	if gradeLevelID == "" {
		return Summary{}, core.NewValidationError(
			errors.New("grade level is required"),
			core.FieldError{Field: "grade", Error: "this field is required"},
		)
	}
	key := OverallKey(gradeLevelID)

	records, err := svc.repo.QueryGradeRecords(ctx, gradeLevelID)
	if err != nil {
		return Summary{Scope: key.Scope()}, errors.Wrap(err, "querying grade records")
	}
	return svc.rank(ctx, key, records)
}

// RankAll drops the snapshots of scopes left without performance records,
// then ranks every cohort and every grade level overall.
// A failing scope is recorded in the BatchSummary and does not stop its siblings.
// An error is returned only when the scopes cannot be listed or pruned, or ctx is done.
func (svc *Service) RankAll(ctx context.Context) (BatchSummary, error) {
	var batch BatchSummary

	cohorts, err := svc.repo.QueryCohorts(ctx)
	if err != nil {
		return batch, errors.Wrap(err, "querying cohorts")
	}
	grades, err := svc.repo.QueryGradeLevels(ctx)
	if err != nil {
		return batch, errors.Wrap(err, "querying grade levels")
	}
	if err = ctx.Err(); err != nil {
		return batch, err
	}
	if err = svc.prune(ctx, cohorts, grades); err != nil {
		return batch, err
	}

	for _, c := range cohorts {
		if err = ctx.Err(); err != nil {
			return batch, err
		}
		s, err := svc.RankCohort(ctx, CohortParams{SubjectID: c.SubjectID, GradeLevelID: c.GradeLevelID})
		if err != nil {
			svc.logger.Error(fmt.Sprintf("ranking %s: %v", CohortKey(c).Scope(), err), err, CohortKey(c).Scope())
			batch.fail(CohortKey(c).Scope(), err)
			continue
		}
		batch.add(s)
	}

	for _, g := range grades {
		if err = ctx.Err(); err != nil {
			return batch, err
		}
		s, err := svc.RankOverall(ctx, g)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("ranking %s: %v", OverallKey(g).Scope(), err), err, OverallKey(g).Scope())
			batch.fail(OverallKey(g).Scope(), err)
			continue
		}
		batch.add(s)
	}
	return batch, nil
}

// prune deletes the rankings of every Key other than those of cohorts and grades.
func (svc *Service) prune(ctx context.Context, cohorts []Cohort, grades []string) error {
	keep := make([]Key, 0, len(cohorts)+len(grades))
	for _, c := range cohorts {
		keep = append(keep, CohortKey(c))
	}
	for _, g := range grades {
		keep = append(keep, OverallKey(g))
	}

	var deleted int
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) (err error) {
		deleted, err = svc.repo.DeleteRankingsExcept(ctx, keep, execs(exec)...)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "deleting stale rankings")
	}
	if deleted > 0 {
		svc.logger.Info(fmt.Sprintf("deleted %d stale rankings", deleted))
	}
	return nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Ranking, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	ordering := []core.DBOrdering{
		{Field: "grade_level_id", Ascending: true},
		{Field: "ranking_type", Ascending: true},
		{Field: "subject_id", Ascending: true},
		{Field: "rank", Ascending: true},
		{Field: "student_id", Ascending: true},
	}
	return svc.repo.QueryRankings(ctx, filter, ordering)
}

// rank scores the students of records, orders them and replaces the snapshot of key in one transaction.
func (svc *Service) rank(ctx context.Context, key Key, records []PerformanceRecord) (Summary, error) {
	scope := key.Scope()
	summary := Summary{Scope: scope}

	scores, considered, errCount := svc.score(key, records)
	summary.TotalStudents = considered
	summary.Errors = errCount
	summary.Processed = len(scores)

	entries := make([]standing.Entry, 0, len(scores))
	for studentID, score := range scores {
		entries = append(entries, standing.Entry{ID: studentID, Score: core.Round(score, 2)})
	}
	standings := standing.Compete(entries)

	now := nowFunc().UTC()
	rankings := make([]Ranking, 0, len(standings))
	for _, st := range standings {
		r := Ranking{
			StudentID:    st.ID,
			Type:         key.Type,
			GradeLevelID: key.GradeLevelID,
			Rank:         st.Rank,
			Score:        st.Score,
			Percentile:   core.Round(st.Percentile, 2),
			Level:        LevelFor(st.Score),
			CohortSize:   len(standings),
			CalculatedAt: now,
		}
		if key.SubjectID != "" {
			r.SubjectID.SetValid(key.SubjectID)
		}
		rankings = append(rankings, r)
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		n, err := svc.repo.ReplaceRankings(ctx, key, rankings, execs(exec)...)
		if err != nil {
			return err
		}
		summary.RankingsWritten = n
		return nil
	})
	if err != nil {
		summary.RankingsWritten = 0
		return summary, errors.Wrap(err, "replacing rankings")
	}

	svc.logger.Info(fmt.Sprintf(
		"ranked %s: students=%d processed=%d written=%d errors=%d",
		scope, summary.TotalStudents, summary.Processed, summary.RankingsWritten, summary.Errors,
	), scope)
	return summary, nil
}

// score returns the representative score of every student with at least one valid record,
// the number of distinct students seen and the number of skipped records.
// A student's score is the mean of their per-subject means, so each subject weighs the same in the overall scope.
func (svc *Service) score(key Key, records []PerformanceRecord) (map[string]float64, int, int) {
	var errCount int
	students := make(map[string]struct{})
	valid := make(map[string]map[string][]float64) // {student: {subject: [pct]}}

	for _, rec := range records {
		rec.StudentID = core.CleanString(rec.StudentID)
		if err := svc.check(rec); err != nil {
			errCount++
			svc.logger.Warn(
				fmt.Sprintf("skipping performance record %q of %s: %v", rec.ID, key.Scope(), err),
				map[string]interface{}{"record_id": rec.ID, "student_id": rec.StudentID},
				key.Scope(),
			)
			if rec.StudentID != "" {
				students[rec.StudentID] = struct{}{}
			}
			continue
		}
		students[rec.StudentID] = struct{}{}
		subjects, ok := valid[rec.StudentID]
		if !ok {
			subjects = make(map[string][]float64)
			valid[rec.StudentID] = subjects
		}
		subjects[rec.SubjectID] = append(subjects[rec.SubjectID], rec.Percentage.Float64)
	}

	scores := make(map[string]float64, len(valid))
	for studentID, subjects := range valid {
		// iterate subjects in order for a reproducible float sum
		names := make([]string, 0, len(subjects))
		for name := range subjects {
			names = append(names, name)
		}
		sort.Strings(names)
		means := make([]float64, 0, len(names))
		for _, name := range names {
			means = append(means, standing.Mean(subjects[name]))
		}
		scores[studentID] = standing.Mean(means)
	}
	return scores, len(students), errCount
}

func (svc *Service) check(rec PerformanceRecord) error {
	if rec.StudentID == "" {
		return ErrMissingStudent
	}
	if !rec.Percentage.Valid {
		return ErrMissingScore
	}
	pct := rec.Percentage.Float64
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct < svc.minScore || pct > svc.maxScore {
		return ErrInvalidScore
	}
	return nil
}

func execs(exec core.DBExecutor) []core.DBExecutor {
	if exec == nil {
		return nil
	}
	return []core.DBExecutor{exec}
}
