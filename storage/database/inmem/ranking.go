package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/ranking"
)

type rankingRepository struct {
	db *DB
}

func NewRankingRepository(db *DB) ranking.Repository {
	return &rankingRepository{db: db}
}

func (repo *rankingRepository) queryRecords(match func(ranking.PerformanceRecord) bool) []ranking.PerformanceRecord {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	recs := make([]ranking.PerformanceRecord, 0)
	for _, rec := range repo.db.ranking.records {
		if match(rec) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs
}

func (repo *rankingRepository) QueryCohortRecords(
	_ context.Context,
	cohort ranking.Cohort,
	_ ...core.DBExecutor,
) ([]ranking.PerformanceRecord, error) {
	return repo.queryRecords(func(rec ranking.PerformanceRecord) bool {
		return rec.SubjectID == cohort.SubjectID && rec.GradeLevelID == cohort.GradeLevelID
	}), nil
}

func (repo *rankingRepository) QueryGradeRecords(
	_ context.Context,
	gradeLevelID string,
	_ ...core.DBExecutor,
) ([]ranking.PerformanceRecord, error) {
	return repo.queryRecords(func(rec ranking.PerformanceRecord) bool {
		return rec.GradeLevelID == gradeLevelID
	}), nil
}

func (repo *rankingRepository) QueryCohorts(_ context.Context, _ ...core.DBExecutor) ([]ranking.Cohort, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	seen := make(map[ranking.Cohort]struct{})
	cohorts := make([]ranking.Cohort, 0)
	for _, rec := range repo.db.ranking.records {
		c := ranking.Cohort{SubjectID: rec.SubjectID, GradeLevelID: rec.GradeLevelID}
		if _, ok := seen[c]; ok || c.SubjectID == "" || c.GradeLevelID == "" {
			continue
		}
		seen[c] = struct{}{}
		cohorts = append(cohorts, c)
	}
	sort.Slice(cohorts, func(i, j int) bool {
		if cohorts[i].GradeLevelID != cohorts[j].GradeLevelID {
			return cohorts[i].GradeLevelID < cohorts[j].GradeLevelID
		}
		return cohorts[i].SubjectID < cohorts[j].SubjectID
	})
	return cohorts, nil
}

func (repo *rankingRepository) QueryGradeLevels(_ context.Context, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	seen := make(map[string]struct{})
	grades := make([]string, 0)
	for _, rec := range repo.db.ranking.records {
		if _, ok := seen[rec.GradeLevelID]; ok || rec.GradeLevelID == "" {
			continue
		}
		seen[rec.GradeLevelID] = struct{}{}
		grades = append(grades, rec.GradeLevelID)
	}
	sort.Strings(grades)
	return grades, nil
}

func (repo *rankingRepository) ReplaceRankings(
	_ context.Context,
	key ranking.Key,
	rankings []ranking.Ranking,
	exec ...core.DBExecutor,
) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t, table := txOf(exec), repo.db.ranking.rankings
	for id, r := range table {
		if r.Key() == key {
			setRow(t, table, id, r, true)
		}
	}
	for _, r := range rankings {
		r.ID = uuid.New().String()
		setRow(t, table, r.ID, r, false)
	}
	return len(rankings), nil
}

func (repo *rankingRepository) DeleteRankingsExcept(_ context.Context, keep []ranking.Key, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	kept := make(map[ranking.Key]struct{}, len(keep))
	for _, k := range keep {
		kept[k] = struct{}{}
	}
	var n int
	t, table := txOf(exec), repo.db.ranking.rankings
	for id, r := range table {
		if _, ok := kept[r.Key()]; !ok {
			setRow(t, table, id, r, true)
			n++
		}
	}
	return n, nil
}

func (repo *rankingRepository) QueryRankings(
	_ context.Context,
	filter ranking.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]ranking.Ranking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rankings := make([]ranking.Ranking, 0)
	for _, r := range repo.db.ranking.rankings {
		if filter.Match(r) {
			rankings = append(rankings, r)
		}
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareRankings(rankings[i], rankings[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return rankings[i].ID < rankings[j].ID
	})
	return rankings, nil
}

func compareRankings(a, b ranking.Ranking, field string) int {
	switch field {
	case "student_id":
		return strings.Compare(a.StudentID, b.StudentID)
	case "ranking_type":
		return strings.Compare(string(a.Type), string(b.Type))
	case "subject_id":
		return strings.Compare(a.SubjectID.String, b.SubjectID.String)
	case "grade_level_id":
		return strings.Compare(a.GradeLevelID, b.GradeLevelID)
	case "rank":
		return a.Rank - b.Rank
	case "score":
		switch {
		case a.Score < b.Score:
			return -1
		case a.Score > b.Score:
			return 1
		}
	}
	return 0
}
