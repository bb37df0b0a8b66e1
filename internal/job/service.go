package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/columns"
	"github.com/sells-group/skiptrace/internal/enrich"
	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/internal/sheet"
	"github.com/sells-group/skiptrace/internal/store"
	"github.com/sells-group/skiptrace/pkg/slack"
)

// ErrInvalidUpload is returned by Submit when the file cannot be parsed.
var ErrInvalidUpload = eris.New("job: invalid upload")

// EngineFactory builds a fresh Runner for one job. Each job gets its own
// fetcher so request counts and breakers never leak across jobs.
type EngineFactory func(ctl enrich.Control) (Runner, error)

// Service accepts uploads and processes them in the background.
type Service struct {
	store     store.Store
	table     *columns.Table
	newEngine EngineFactory
	notifier  slack.Notifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service. A nil notifier drops notices.
func NewService(st store.Store, table *columns.Table, factory EngineFactory, notifier slack.Notifier) *Service {
	if notifier == nil {
		notifier = slack.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     st,
		table:     table,
		newEngine: factory,
		notifier:  notifier,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit stores an uploaded CSV or XLSX as a new job and starts processing
// it. XLSX uploads are stored as CSV.
func (s *Service) Submit(ctx context.Context, fileName string, data []byte) (*model.Job, error) {
	content := string(data)
	if sheet.IsXLSX(fileName, data) {
		rows, err := sheet.ReadXLSX(data)
		if err != nil {
			return nil, eris.Wrapf(ErrInvalidUpload, "%v", err)
		}
		out, err := sheet.WriteCSV(rows)
		if err != nil {
			return nil, eris.Wrap(err, "job: convert upload")
		}
		content = string(out)
	} else if _, err := sheet.ReadCSV(strings.NewReader(content)); err != nil {
		return nil, eris.Wrapf(ErrInvalidUpload, "%v", err)
	}

	j, err := s.store.CreateJob(ctx, fileName, content)
	if err != nil {
		return nil, eris.Wrap(err, "job: create")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Run(s.ctx, j); err != nil {
			zap.L().Error("job: run failed", zap.String("job_id", j.ID), zap.Error(err))
		}
	}()
	return j, nil
}

// Run processes a stored job to completion. A cancelled job saves nothing.
func (s *Service) Run(ctx context.Context, j *model.Job) error {
	log := zap.L().With(zap.String("job_id", j.ID))
	s.notify(ctx, fmt.Sprintf("skiptrace: started %s (%s)", j.FileName, j.ID))

	records, err := sheet.ReadCSV(strings.NewReader(j.Content))
	if err != nil {
		return s.fail(ctx, j, err)
	}
	if len(records) <= 1 {
		log.Info("job: nothing to process")
		return s.complete(ctx, j, j.Content, 0)
	}

	engine, err := s.newEngine(s)
	if err != nil {
		return s.fail(ctx, j, err)
	}

	out, updated := EnrichRecords(ctx, engine, s.table, j.ID, records, 0)
	if s.IsCancelled(ctx, j.ID) {
		log.Info("job: cancelled, discarding results")
		s.notify(ctx, fmt.Sprintf("skiptrace: cancelled %s (%s)", j.FileName, j.ID))
		return nil
	}

	data, err := sheet.WriteCSV(out)
	if err != nil {
		return s.fail(ctx, j, err)
	}
	return s.complete(ctx, j, string(data), updated)
}

func (s *Service) complete(ctx context.Context, j *model.Job, content string, updated int) error {
	err := s.store.CompleteJob(ctx, j.ID, content)
	if errors.Is(err, store.ErrFinished) {
		zap.L().Info("job: cancelled before save", zap.String("job_id", j.ID))
		s.notify(ctx, fmt.Sprintf("skiptrace: cancelled %s (%s)", j.FileName, j.ID))
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "job: complete")
	}
	zap.L().Info("job: completed", zap.String("job_id", j.ID), zap.Int("rows_updated", updated))
	s.notify(ctx, fmt.Sprintf("skiptrace: completed %s (%s), %d rows updated", j.FileName, j.ID, updated))
	return nil
}

func (s *Service) fail(ctx context.Context, j *model.Job, cause error) error {
	s.notify(ctx, fmt.Sprintf("skiptrace: failed %s (%s): %v", j.FileName, j.ID, cause))
	if err := s.store.FailJob(ctx, j.ID, cause.Error()); err != nil && !errors.Is(err, store.ErrFinished) {
		zap.L().Warn("job: could not record failure", zap.String("job_id", j.ID), zap.Error(err))
	}
	return eris.Wrap(cause, "job: run")
}

// Cancel marks a job cancelled. It returns store.ErrNotFound or
// store.ErrCompleted when the job cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.store.CancelJob(ctx, id)
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, id string) (*model.Job, error) {
	return s.store.GetJob(ctx, id)
}

// List returns jobs newest first.
func (s *Service) List(ctx context.Context, filter store.JobFilter) ([]model.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

// IsCancelled implements enrich.Control. A job whose status cannot be read
// counts as cancelled.
func (s *Service) IsCancelled(ctx context.Context, jobID string) bool {
	status, err := s.store.Status(ctx, jobID)
	if err != nil {
		zap.L().Warn("job: status check failed, treating as cancelled", zap.String("job_id", jobID), zap.Error(err))
		return true
	}
	return status == model.JobStatusCancelled
}

// ReportProgress implements enrich.Control.
func (s *Service) ReportProgress(ctx context.Context, jobID string, p model.Progress) {
	if err := s.store.UpdateProgress(ctx, jobID, p); err != nil {
		zap.L().Warn("job: progress update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// Shutdown cancels running jobs and waits for them to return, or for ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "job: shutdown")
	}
}

// Wait blocks until every submitted job has returned.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) notify(ctx context.Context, text string) {
	if err := s.notifier.Notify(ctx, text); err != nil {
		zap.L().Warn("job: slack notice failed", zap.Error(err))
	}
}
