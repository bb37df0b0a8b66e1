// Package job runs uploaded spreadsheets through the enrichment engine and
// records their lifecycle in the job store.
package job

import (
	"context"

	"github.com/sells-group/skiptrace/internal/columns"
	"github.com/sells-group/skiptrace/internal/model"
)

// Runner enriches a batch of rows. *enrich.Engine satisfies it.
type Runner interface {
	ProcessAllRows(ctx context.Context, jobID string, rows []model.RowFields) map[int]*model.RowUpdates
}

// EnrichRecords runs every data row of records (the header at index 0 is
// skipped) and returns a copy with the updates applied. A positive limit
// caps the number of data rows processed; the rest pass through untouched.
// It also returns how many rows received updates.
func EnrichRecords(ctx context.Context, r Runner, table *columns.Table, jobID string, records [][]string, limit int) ([][]string, int) {
	out := make([][]string, len(records))
	copy(out, records)
	if len(records) <= 1 {
		return out, 0
	}

	last := len(records)
	if limit > 0 && limit+1 < last {
		last = limit + 1
	}
	fields := make([]model.RowFields, 0, last-1)
	for i := 1; i < last; i++ {
		fields = append(fields, table.Fields(i, records[i]))
	}

	updated := 0
	for i, u := range r.ProcessAllRows(ctx, jobID, fields) {
		if u.Len() == 0 || i <= 0 || i >= len(records) {
			continue
		}
		row := append([]string(nil), records[i]...)
		out[i] = table.Apply(row, u)
		updated++
	}
	return out, updated
}
