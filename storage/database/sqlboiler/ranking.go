package boiledrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/ranking"
)

var (
	recordColumns = []string{
		"id", "COALESCE(student_id, '') AS student_id", "subject_id", "grade_level_id", "percentage", "level", "recorded_at",
	}
	rankingColumns = []string{
		"id", "student_id", "ranking_type", "subject_id", "grade_level_id", "rank",
		"score", "percentile", "level", "cohort_size", "calculated_at",
	}
	rankingOrderFields = map[string]bool{
		"student_id":     true,
		"ranking_type":   true,
		"subject_id":     true,
		"grade_level_id": true,
		"rank":           true,
		"score":          true,
	}
)

type rankingRepository struct {
	repository
}

var _ ranking.Repository = (*rankingRepository)(nil) // interface compliance check

func NewRankingRepository(exec core.DBExecutor) ranking.Repository {
	return &rankingRepository{repository{exec: exec}}
}

func (repo rankingRepository) queryRecords(ctx context.Context, exe core.DBExecutor, mods ...qm.QueryMod) ([]ranking.PerformanceRecord, error) {
	mods = append([]qm.QueryMod{qm.Select(recordColumns...), qm.From("performance_record")}, mods...)
	mods = append(mods, qm.OrderBy("id"))

	recs := make([]ranking.PerformanceRecord, 0)
	if err := newQuery(mods...).Bind(ctx, exe, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (repo rankingRepository) QueryCohortRecords(
	ctx context.Context,
	cohort ranking.Cohort,
	exec ...core.DBExecutor,
) ([]ranking.PerformanceRecord, error) {
	recs, err := repo.queryRecords(ctx, repo.getExec(exec),
		qm.Where("subject_id = ?", cohort.SubjectID),
		qm.And("grade_level_id = ?", cohort.GradeLevelID),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying cohort records")
	}
	return recs, nil
}

func (repo rankingRepository) QueryGradeRecords(
	ctx context.Context,
	gradeLevelID string,
	exec ...core.DBExecutor,
) ([]ranking.PerformanceRecord, error) {
	recs, err := repo.queryRecords(ctx, repo.getExec(exec), qm.Where("grade_level_id = ?", gradeLevelID))
	if err != nil {
		return nil, errors.Wrap(err, "querying grade records")
	}
	return recs, nil
}

func (repo rankingRepository) QueryCohorts(ctx context.Context, exec ...core.DBExecutor) ([]ranking.Cohort, error) {
	cohorts := make([]ranking.Cohort, 0)
	err := newQuery(
		qm.Select("subject_id", "grade_level_id"),
		qm.From("performance_record"),
		qm.Where("subject_id <> ''"),
		qm.And("grade_level_id <> ''"),
		qm.GroupBy("subject_id, grade_level_id"),
		qm.OrderBy("grade_level_id, subject_id"),
	).Bind(ctx, repo.getExec(exec), &cohorts)
	if err != nil {
		return nil, errors.Wrap(err, "querying cohorts")
	}
	return cohorts, nil
}

func (repo rankingRepository) QueryGradeLevels(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	var grades []struct {
		GradeLevelID string `boil:"grade_level_id"`
	}
	err := newQuery(
		qm.Select("grade_level_id"),
		qm.From("performance_record"),
		qm.Where("grade_level_id <> ''"),
		qm.GroupBy("grade_level_id"),
		qm.OrderBy("grade_level_id"),
	).Bind(ctx, repo.getExec(exec), &grades)
	if err != nil {
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

	del := newQuery(
		qm.From("ranking"),
		qm.Where("ranking_type = ?", key.Type),
		qm.And("COALESCE(subject_id, '') = ?", key.SubjectID),
		qm.And("grade_level_id = ?", key.GradeLevelID),
	)
	queries.SetDelete(del)
	if _, err := del.ExecContext(ctx, exe); err != nil {
		return 0, errors.Wrap(err, "deleting rankings")
	}

	var written int
	for _, b := range batches(len(rankings)) {
		batch := rankings[b[0]:b[1]]
		args := make([]interface{}, 0, len(batch)*len(rankingColumns))
		for _, r := range batch {
			args = append(args,
				uuid.New().String(), r.StudentID, r.Type, r.SubjectID, r.GradeLevelID, r.Rank,
				r.Score, r.Percentile, r.Level, r.CohortSize, r.CalculatedAt.UTC(),
			)
		}
		res, err := queries.Raw(insertQuery("ranking", rankingColumns, len(batch), ""), args...).ExecContext(ctx, exe)
		if err != nil {
			return 0, errors.Wrap(err, "inserting rankings")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "inserting rankings")
		}
		written += int(n)
	}
	return written, nil
}

func (repo rankingRepository) DeleteRankingsExcept(ctx context.Context, keep []ranking.Key, exec ...core.DBExecutor) (int, error) {
	mods := []qm.QueryMod{qm.From("ranking")}
	if len(keep) > 0 {
		tuples := make([]string, 0, len(keep))
		args := make([]interface{}, 0, len(keep)*3)
		for _, k := range keep {
			tuples = append(tuples, "(?, ?, ?)")
			args = append(args, k.Type, k.SubjectID, k.GradeLevelID)
		}
		clause := "(ranking_type, COALESCE(subject_id, ''), grade_level_id) NOT IN (" + strings.Join(tuples, ", ") + ")"
		mods = append(mods, qm.Where(clause, args...))
	}
	del := newQuery(mods...)
	queries.SetDelete(del)
	res, err := del.ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return 0, errors.Wrap(err, "deleting stale rankings")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting stale rankings")
	}
	return int(n), nil
}

func (repo rankingRepository) QueryRankings(
	ctx context.Context,
	filter ranking.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]ranking.Ranking, error) {
	mods := []qm.QueryMod{qm.Select(rankingColumns...), qm.From("ranking")}

	if filter.StudentID != "" {
		mods = append(mods, qm.Where("student_id = ?", filter.StudentID))
	}
	if filter.Type != "" {
		mods = append(mods, qm.Where("ranking_type = ?", filter.Type))
	}
	if filter.SubjectID != "" {
		mods = append(mods, qm.Where("subject_id = ?", filter.SubjectID))
	}
	if filter.GradeLevelID != "" {
		mods = append(mods, qm.Where("grade_level_id = ?", filter.GradeLevelID))
	}
	if ord := orderBy(ordering, rankingOrderFields); ord != nil {
		mods = append(mods, ord)
	}

	rankings := make([]ranking.Ranking, 0)
	if err := newQuery(mods...).Bind(ctx, repo.getExec(exec), &rankings); err != nil {
		return nil, errors.Wrap(err, "querying rankings")
	}
	return rankings, nil
}
