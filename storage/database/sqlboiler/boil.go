package boiledrepos

import (
	"fmt"
	"strings"

	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/cheo/core"
)

// batchSize keeps bulk inserts well under the 65535 bind parameters Postgres accepts.
const batchSize = 1000

var dialect = drivers.Dialect{
	LQ:                   '"',
	RQ:                   '"',
	UseIndexPlaceholders: true,
	UseDefaultKeyword:    true,
}

// newQuery builds a postgres query from mods, the way generated models do.
func newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return q
}

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// insertQuery returns a multi-values INSERT of n rows of cols, numbered from $1.
func insertQuery(table string, cols []string, n int, suffix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*len(cols)+j+1)
		}
		b.WriteString(")")
	}
	if suffix != "" {
		b.WriteString(" " + suffix)
	}
	return b.String()
}

func batches(n int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func orderBy(ordering []core.DBOrdering, allowed map[string]bool) qm.QueryMod {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		return nil
	}
	return qm.OrderBy(strings.Join(orderList, ", "))
}
