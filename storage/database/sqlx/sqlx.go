package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
)

// batchSize keeps bulk inserts well under the 65535 bind parameters Postgres accepts.
const batchSize = 1000

type repository struct {
	db *sqlx.DB
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.db
}

// selectContext runs a ?-placeholder query on exe and scans all rows into dest, a pointer to a slice.
func (repo repository) selectContext(ctx context.Context, exe core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exe.QueryContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

// execContext runs a ?-placeholder statement on exe and returns the number of affected rows.
func (repo repository) execContext(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (int, error) {
	res, err := exe.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// namedExecBatch inserts rows (a slice of structs) in batches with a named multi-values query.
func namedExecBatch[T any](ctx context.Context, repo repository, exe core.DBExecutor, query string, rows []T) (int, error) {
	var total int
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		q, args, err := sqlx.Named(query, rows[start:end])
		if err != nil {
			return total, errors.Wrap(err, "binding named query")
		}
		n, err := repo.execContext(ctx, exe, q, args...)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func orderBy(ordering []core.DBOrdering, allowed map[string]bool) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
