package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/skiptrace/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx, "owners.csv", "a,b\n1,2\n")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusProcessing, job.Status)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "owners.csv", got.FileName)
	assert.Equal(t, "a,b\n1,2\n", got.Content)
	assert.Equal(t, model.JobStatusProcessing, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestSQLite_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetJob(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = st.Status(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ProgressAndComplete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job, err := st.CreateJob(ctx, "f.csv", "raw")
	require.NoError(t, err)

	require.NoError(t, st.UpdateProgress(ctx, job.ID, model.Progress{
		RowsProcessed:  3,
		TotalRows:      10,
		RequestCount:   42,
		ProcessingTime: 1500 * time.Millisecond,
	}))
	require.NoError(t, st.CompleteJob(ctx, job.ID, "enriched"))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, "enriched", got.Content)
	assert.Equal(t, 3, got.RowsProcessed)
	assert.Equal(t, 10, got.TotalRows)
	assert.Equal(t, int64(42), got.RequestCount)
	assert.Equal(t, int64(1500), got.ProcessingTimeMs)
	require.NotNil(t, got.CompletedAt)

	err = st.UpdateProgress(ctx, "missing", model.Progress{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_CancelRules(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	running, err := st.CreateJob(ctx, "a.csv", "x")
	require.NoError(t, err)
	require.NoError(t, st.CancelJob(ctx, running.ID))
	status, err := st.Status(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, status)

	// A cancelled job can no longer complete.
	assert.True(t, errors.Is(st.CompleteJob(ctx, running.ID, "y"), ErrFinished))

	done, err := st.CreateJob(ctx, "b.csv", "x")
	require.NoError(t, err)
	require.NoError(t, st.CompleteJob(ctx, done.ID, "y"))
	assert.True(t, errors.Is(st.CancelJob(ctx, done.ID), ErrCompleted))

	assert.True(t, errors.Is(st.CancelJob(ctx, "missing"), ErrNotFound))
}

func TestSQLite_FailJob(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	job, err := st.CreateJob(ctx, "a.csv", "x")
	require.NoError(t, err)

	require.NoError(t, st.FailJob(ctx, job.ID, "parse: bad quote"))
	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, "parse: bad quote", got.Error)
}

func TestSQLite_ListNewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"one.csv", "two.csv", "three.csv"} {
		j, err := st.CreateJob(ctx, name, "x")
		require.NoError(t, err)
		ids = append(ids, j.ID)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, st.CancelJob(ctx, ids[1]))

	jobs, err := st.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "three.csv", jobs[0].FileName)
	assert.Equal(t, "one.csv", jobs[2].FileName)

	jobs, err = st.ListJobs(ctx, JobFilter{Status: model.JobStatusCancelled})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, ids[1], jobs[0].ID)

	jobs, err = st.ListJobs(ctx, JobFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "two.csv", jobs[0].FileName)
}

func TestSQLite_MarkStaleAndDeleteAll(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	old, err := st.CreateJob(ctx, "old.csv", "x")
	require.NoError(t, err)
	done, err := st.CreateJob(ctx, "done.csv", "x")
	require.NoError(t, err)
	require.NoError(t, st.CompleteJob(ctx, done.ID, "y"))

	stale, err := st.ListJobs(ctx, JobFilter{Status: model.JobStatusProcessing, UpdatedBefore: time.Now().Add(time.Minute)})
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	n, err := st.MarkStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetJob(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, staleMessage, got.Error)

	n, err = st.MarkStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = st.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	jobs, err := st.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongo", "", PoolConfig{})
	assert.Error(t, err)

	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "o.db"), PoolConfig{})
	require.NoError(t, err)
	assert.NoError(t, st.Close())
}
