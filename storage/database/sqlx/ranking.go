package sqlxrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/ranking"
)

const (
	recordColumns  = `id, COALESCE(student_id, '') AS student_id, subject_id, grade_level_id, percentage, level, recorded_at`
	rankingColumns = `id, student_id, ranking_type, subject_id, grade_level_id, rank, score, percentile, level, cohort_size, calculated_at`
)

var rankingOrderFields = map[string]bool{
	"student_id":     true,
	"ranking_type":   true,
	"subject_id":     true,
	"grade_level_id": true,
	"rank":           true,
	"score":          true,
}

type rankingRepository struct {
	repository
}

var _ ranking.Repository = (*rankingRepository)(nil) // interface compliance check

func NewRankingRepository(db *sqlx.DB) ranking.Repository {
	return &rankingRepository{repository{db: db}}
}

func (repo rankingRepository) QueryCohortRecords(
	ctx context.Context,
	cohort ranking.Cohort,
	exec ...core.DBExecutor,
) ([]ranking.PerformanceRecord, error) {
	recs := make([]ranking.PerformanceRecord, 0)
	q := `SELECT ` + recordColumns + ` FROM performance_record WHERE subject_id = ? AND grade_level_id = ? ORDER BY id`
	if err := repo.selectContext(ctx, repo.getExec(exec), &recs, q, cohort.SubjectID, cohort.GradeLevelID); err != nil {
		return nil, errors.Wrap(err, "querying cohort records")
	}
	return recs, nil
}

func (repo rankingRepository) QueryGradeRecords(
	ctx context.Context,
	gradeLevelID string,
	exec ...core.DBExecutor,
) ([]ranking.PerformanceRecord, error) {
	recs := make([]ranking.PerformanceRecord, 0)
	q := `SELECT ` + recordColumns + ` FROM performance_record WHERE grade_level_id = ? ORDER BY id`
	if err := repo.selectContext(ctx, repo.getExec(exec), &recs, q, gradeLevelID); err != nil {
		return nil, errors.Wrap(err, "querying grade records")
	}
	return recs, nil
}

func (repo rankingRepository) QueryCohorts(ctx context.Context, exec ...core.DBExecutor) ([]ranking.Cohort, error) {
	cohorts := make([]ranking.Cohort, 0)
	q := `SELECT DISTINCT subject_id, grade_level_id FROM performance_record
		WHERE subject_id <> '' AND grade_level_id <> ''
		ORDER BY grade_level_id, subject_id`
	if err := repo.selectContext(ctx, repo.getExec(exec), &cohorts, q); err != nil {
		return nil, errors.Wrap(err, "querying cohorts")
	}
	return cohorts, nil
}

func (repo rankingRepository) QueryGradeLevels(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	var grades []struct {
		GradeLevelID string `db:"grade_level_id"`
	}
	q := `SELECT DISTINCT grade_level_id FROM performance_record WHERE grade_level_id <> '' ORDER BY grade_level_id`
	if err := repo.selectContext(ctx, repo.getExec(exec), &grades, q); err != nil {
		return nil, errors.Wrap(err, "querying grade levels")
	}
	ids := make([]string, 0, len(grades))
	for _, g := range grades {
		ids = append(ids, g.GradeLevelID)
	}
	return ids, nil
}

func (repo rankingRepository) ReplaceRankings(
	ctx context.Context,
	key ranking.Key,
	rankings []ranking.Ranking,
	exec ...core.DBExecutor,
) (int, error) {
	exe := repo.getExec(exec)

	del := `DELETE FROM ranking WHERE ranking_type = ? AND COALESCE(subject_id, '') = ? AND grade_level_id = ?`
	if _, err := repo.execContext(ctx, exe, del, key.Type, key.SubjectID, key.GradeLevelID); err != nil {
		return 0, errors.Wrap(err, "deleting rankings")
	}
	if len(rankings) == 0 {
		return 0, nil
	}

	rows := make([]ranking.Ranking, 0, len(rankings))
	for _, r := range rankings {
		r.ID = uuid.New().String()
		r.CalculatedAt = r.CalculatedAt.UTC()
		rows = append(rows, r)
	}
	ins := `INSERT INTO ranking (` + rankingColumns + `) VALUES (
		:id, :student_id, :ranking_type, :subject_id, :grade_level_id, :rank,
		:score, :percentile, :level, :cohort_size, :calculated_at
	)`
	n, err := namedExecBatch(ctx, repo.repository, exe, ins, rows)
	if err != nil {
		return 0, errors.Wrap(err, "inserting rankings")
	}
	return n, nil
}

func (repo rankingRepository) DeleteRankingsExcept(ctx context.Context, keep []ranking.Key, exec ...core.DBExecutor) (int, error) {
	q := `DELETE FROM ranking`
	args := make([]interface{}, 0, len(keep)*3)
	if len(keep) > 0 {
		tuples := make([]string, 0, len(keep))
		for _, k := range keep {
			tuples = append(tuples, "(?, ?, ?)")
			args = append(args, k.Type, k.SubjectID, k.GradeLevelID)
		}
		q += ` WHERE (ranking_type, COALESCE(subject_id, ''), grade_level_id) NOT IN (` + strings.Join(tuples, ", ") + `)`
	}
	n, err := repo.execContext(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting stale rankings")
	}
	return n, nil
}

func (repo rankingRepository) QueryRankings(
	ctx context.Context,
	filter ranking.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]ranking.Ranking, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.StudentID != "" {
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Type != "" {
		where = append(where, "ranking_type = ?")
		args = append(args, filter.Type)
	}
	if filter.SubjectID != "" {
		where = append(where, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.GradeLevelID != "" {
		where = append(where, "grade_level_id = ?")
		args = append(args, filter.GradeLevelID)
	}

	q := `SELECT ` + rankingColumns + ` FROM ranking`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += orderBy(ordering, rankingOrderFields)

	rankings := make([]ranking.Ranking, 0)
	if err := repo.selectContext(ctx, repo.getExec(exec), &rankings, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying rankings")
	}
	return rankings, nil
}
