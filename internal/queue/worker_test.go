package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/models"
)

// fakeHistory records job outcomes in memory
type fakeHistory struct {
	records []*models.JobRecord
}

func (h *fakeHistory) RecordJob(ctx context.Context, record *models.JobRecord) error {
	h.records = append(h.records, record)
	return nil
}

func (h *fakeHistory) ListJobs(ctx context.Context, status string, limit int) ([]*models.JobRecord, error) {
	return h.records, nil
}

func newTestWorker(t *testing.T, maxAttempts int) (*Worker, *BadgerManager, *fakeHistory) {
	t.Helper()

	opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// maxReceive above the worker's budget so the worker policy decides
	mgr, err := NewBadgerManager(db, arbor.NewLogger(), "test_queue", time.Minute, maxAttempts+1)
	require.NoError(t, err)

	history := &fakeHistory{}
	worker := NewWorker(mgr, history, WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  maxAttempts,
		RetryBackoff: time.Millisecond,
	}, arbor.NewLogger())

	return worker, mgr, history
}

func TestWorkerProcessesJob(t *testing.T) {
	worker, mgr, history := newTestWorker(t, 3)
	ctx := context.Background()

	var handled int
	worker.RegisterHandler(models.JobTypeRunAudit, func(ctx context.Context, msg *models.JobMessage) error {
		handled++
		return nil
	})

	require.NoError(t, mgr.Enqueue(ctx, testMessage(t, "audit-1")))
	require.NoError(t, worker.processOne())

	assert.Equal(t, 1, handled)

	count, err := mgr.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.Len(t, history.records, 1)
	assert.Equal(t, "completed", history.records[0].Status)
	assert.Equal(t, 1, history.records[0].Attempts)
}

func TestWorkerRetriesWithBackoff(t *testing.T) {
	worker, mgr, history := newTestWorker(t, 3)
	ctx := context.Background()

	attempts := 0
	worker.RegisterHandler(models.JobTypeRunAudit, func(ctx context.Context, msg *models.JobMessage) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient failure")
		}
		return nil
	})

	require.NoError(t, mgr.Enqueue(ctx, testMessage(t, "audit-1")))

	// First attempt fails; the retry is scheduled and absorbed, so the loop
	// keeps draining without logging a worker-level error
	require.NoError(t, worker.processOne())

	// Backoff is 1ms in the test config; wait for visibility
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, worker.processOne())
	assert.Equal(t, 2, attempts)

	require.Len(t, history.records, 1)
	assert.Equal(t, "completed", history.records[0].Status)
	assert.Equal(t, 2, history.records[0].Attempts)
}

func TestWorkerExhaustsAttempts(t *testing.T) {
	worker, mgr, history := newTestWorker(t, 2)
	ctx := context.Background()

	jobErr := errors.New("permanent failure")
	worker.RegisterHandler(models.JobTypeRunAudit, func(ctx context.Context, msg *models.JobMessage) error {
		return jobErr
	})

	var failureHookErr error
	worker.RegisterFailureHandler(models.JobTypeRunAudit, func(ctx context.Context, msg *models.JobMessage, err error) {
		failureHookErr = err
	})

	require.NoError(t, mgr.Enqueue(ctx, testMessage(t, "audit-1")))

	// First failure only schedules a retry; the exhausting attempt surfaces
	// the job error
	require.NoError(t, worker.processOne())
	time.Sleep(20 * time.Millisecond)
	assert.ErrorIs(t, worker.processOne(), jobErr)

	// Attempts exhausted: message dropped, hook fired, failure recorded
	assert.Equal(t, jobErr, failureHookErr)

	count, err := mgr.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.Len(t, history.records, 1)
	assert.Equal(t, "failed", history.records[0].Status)
	assert.Equal(t, 2, history.records[0].Attempts)
	assert.Contains(t, history.records[0].Error, "permanent failure")
}

func TestWorkerDropsUnknownJobType(t *testing.T) {
	worker, mgr, _ := newTestWorker(t, 3)
	ctx := context.Background()

	msg, err := models.NewJobMessage("unknown_type", struct{}{})
	require.NoError(t, err)
	require.NoError(t, mgr.Enqueue(ctx, msg))

	assert.Error(t, worker.processOne())

	count, err := mgr.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWorkerStartStop(t *testing.T) {
	worker, _, _ := newTestWorker(t, 3)

	require.NoError(t, worker.Start())
	require.NoError(t, worker.Stop())
}
