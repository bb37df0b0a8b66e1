package enrich

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/skiptrace/internal/model"
)

// Control lets the job runner observe and steer a running job.
type Control interface {
	// IsCancelled reports whether the job was cancelled. Implementations
	// should return true when the job's state cannot be read.
	IsCancelled(ctx context.Context, jobID string) bool
	// ReportProgress is called after every processed row.
	ReportProgress(ctx context.Context, jobID string, p model.Progress)
}

type nopControl struct{}

func (nopControl) IsCancelled(context.Context, string) bool { return false }
func (nopControl) ReportProgress(context.Context, string, model.Progress) {}

type jobKey struct{}

// WithJobID tags ctx with the job whose cancellation ProcessRow polls.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobKey{}, jobID)
}

func jobIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(jobKey{}).(string)
	return id
}

func (e *Engine) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	id := jobIDFrom(ctx)
	if id == "" {
		return false
	}
	return e.deps.Control.IsCancelled(ctx, id)
}

// ProcessAllRows enriches rows with at most RowConcurrency in flight and
// returns the updates keyed by RowFields.Index. Rows not started before
// cancellation are absent from the result. A panic inside a row is logged
// and yields empty updates for that row.
func (e *Engine) ProcessAllRows(ctx context.Context, jobID string, rows []model.RowFields) map[int]*model.RowUpdates {
	ctx = WithJobID(ctx, jobID)
	start := e.now()

	var (
		mu        sync.Mutex
		results   = make(map[int]*model.RowUpdates, len(rows))
		processed atomic.Int64
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.RowConcurrency)

	for _, row := range rows {
		g.Go(func() error {
			if e.cancelled(gCtx) {
				return nil
			}
			updates := e.safeProcessRow(gCtx, row)

			mu.Lock()
			results[row.Index] = updates
			mu.Unlock()

			n := processed.Add(1)
			e.deps.Control.ReportProgress(gCtx, jobID, model.Progress{
				RowsProcessed:  int(n),
				TotalRows:      len(rows),
				RequestCount:   e.deps.Search.Requests(),
				ProcessingTime: e.now().Sub(start),
			})
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("enrich: rows processed",
		zap.String("job_id", jobID),
		zap.Int64("rows", processed.Load()),
		zap.Int("total", len(rows)),
		zap.Int64("requests", e.deps.Search.Requests()),
		zap.Duration("elapsed", e.now().Sub(start)),
	)
	return results
}

func (e *Engine) safeProcessRow(ctx context.Context, row model.RowFields) (updates *model.RowUpdates) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("enrich: row panicked",
				zap.Int("row", row.Index),
				zap.String("panic", fmt.Sprint(r)),
			)
			updates = model.NewRowUpdates()
		}
	}()
	return e.ProcessRow(ctx, row)
}
