package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/common"
	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
	badgerstore "github.com/seolens/seolens/internal/storage/badger"
)

func startRequest(projectID, siteURL string, patch *models.AuditOptionsPatch) interfaces.StartAuditRequest {
	return interfaces.StartAuditRequest{
		ProjectID: projectID,
		SiteURL:   siteURL,
		Options:   patch,
	}
}

// fakeQueue records enqueued messages and can simulate a broken queue
type fakeQueue struct {
	messages   []models.JobMessage
	enqueueErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, msg models.JobMessage) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.messages = append(q.messages, msg)
	return nil
}

func (q *fakeQueue) Receive(ctx context.Context) (*interfaces.QueueDelivery, error) {
	return nil, models.ErrNoMessage
}

func (q *fakeQueue) Delete(ctx context.Context, deliveryID string) error { return nil }
func (q *fakeQueue) Release(ctx context.Context, deliveryID string, delay time.Duration) error {
	return nil
}
func (q *fakeQueue) Count(ctx context.Context) (int, error) { return len(q.messages), nil }
func (q *fakeQueue) Close() error                           { return nil }

func newTestService(t *testing.T) (*Service, *fakeQueue, *badgerstore.Manager) {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")

	logger := arbor.NewLogger()
	storage, err := badgerstore.NewManager(logger, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	queue := &fakeQueue{}
	return NewService(storage, queue, logger), queue, storage
}

func TestStartAudit(t *testing.T) {
	svc, queue, storage := newTestService(t)
	ctx := context.Background()

	auditID, err := svc.StartAudit(ctx, startRequest("project-1", "https://example.com", nil))
	require.NoError(t, err)
	require.NotEmpty(t, auditID)

	audit, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	assert.Equal(t, models.AuditStatusPending, audit.Status)
	assert.Equal(t, "https://example.com", audit.SiteURL)
	assert.Equal(t, models.DefaultAuditOptions(), audit.Options)

	require.Len(t, queue.messages, 1)
	assert.Equal(t, models.JobTypeRunAudit, queue.messages[0].Type)
}

func TestStartAuditWithOptionOverrides(t *testing.T) {
	svc, _, storage := newTestService(t)
	ctx := context.Background()

	maxPages := 10
	singleURL := true
	auditID, err := svc.StartAudit(ctx, startRequest("project-1", "https://example.com", &models.AuditOptionsPatch{
		MaxPages:       &maxPages,
		CrawlSingleURL: &singleURL,
	}))
	require.NoError(t, err)

	audit, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	assert.Equal(t, 10, audit.Options.MaxPages)
	assert.True(t, audit.Options.CrawlSingleURL)
	assert.Equal(t, 3, audit.Options.MaxDepth) // default untouched
}

func TestStartAuditInvalidOptions(t *testing.T) {
	svc, queue, _ := newTestService(t)

	maxPages := 0
	_, err := svc.StartAudit(context.Background(), startRequest("project-1", "https://example.com", &models.AuditOptionsPatch{
		MaxPages: &maxPages,
	}))
	assert.Error(t, err)
	assert.Empty(t, queue.messages)
}

func TestStartAuditQueueUnavailable(t *testing.T) {
	svc, queue, storage := newTestService(t)
	ctx := context.Background()
	queue.enqueueErr = errors.New("queue write failed")

	auditID, err := svc.StartAudit(ctx, startRequest("project-1", "https://example.com", nil))
	assert.ErrorIs(t, err, ErrQueueUnavailable)
	require.NotEmpty(t, auditID)

	// The record survives as a failed audit so the attempt stays visible
	audit, getErr := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, getErr)
	assert.Equal(t, models.AuditStatusFailed, audit.Status)
	assert.Contains(t, audit.ErrorMessage, "failed to enqueue audit job")
	require.NotNil(t, audit.CompletedAt)
}

func TestStartAuditResolvesProjectURL(t *testing.T) {
	svc, _, storage := newTestService(t)
	ctx := context.Background()

	project := models.NewProject("Example", "https://example.org")
	require.NoError(t, storage.ProjectStorage().SaveProject(ctx, project))

	auditID, err := svc.StartAudit(ctx, startRequest(project.ID, "", nil))
	require.NoError(t, err)

	audit, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", audit.SiteURL)
}

func TestStartAuditUnknownProject(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.StartAudit(context.Background(), startRequest("missing", "", nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAudit(t *testing.T) {
	svc, _, storage := newTestService(t)
	ctx := context.Background()

	auditID, err := svc.StartAudit(ctx, startRequest("project-1", "https://example.com", nil))
	require.NoError(t, err)

	maxDepth := 5
	require.NoError(t, svc.UpdateAudit(ctx, auditID, &models.AuditOptionsPatch{MaxDepth: &maxDepth}))

	audit, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	assert.Equal(t, 5, audit.Options.MaxDepth)
}

func TestUpdateAuditRejectedWhileRunning(t *testing.T) {
	svc, _, storage := newTestService(t)
	ctx := context.Background()

	auditID, err := svc.StartAudit(ctx, startRequest("project-1", "https://example.com", nil))
	require.NoError(t, err)

	audit, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	audit.MarkStarted()
	require.NoError(t, storage.AuditStorage().UpdateAudit(ctx, audit))

	maxDepth := 5
	err = svc.UpdateAudit(ctx, auditID, &models.AuditOptionsPatch{MaxDepth: &maxDepth})
	assert.ErrorIs(t, err, ErrInvalidState)

	// Options unchanged
	stored, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Options.MaxDepth)
}

func TestRestartAudit(t *testing.T) {
	svc, queue, storage := newTestService(t)
	ctx := context.Background()

	auditID, err := svc.StartAudit(ctx, startRequest("project-1", "https://example.com", nil))
	require.NoError(t, err)

	audit, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	audit.MarkStarted()
	audit.TotalPages = 7
	audit.MarkFailed("boom")
	require.NoError(t, storage.AuditStorage().UpdateAudit(ctx, audit))

	require.NoError(t, svc.RestartAudit(ctx, auditID))

	restarted, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	assert.Equal(t, models.AuditStatusPending, restarted.Status)
	assert.Zero(t, restarted.TotalPages)
	assert.Empty(t, restarted.ErrorMessage)
	assert.Nil(t, restarted.CompletedAt)

	// Start + restart both enqueued
	assert.Len(t, queue.messages, 2)
}

func TestRestartAuditRejectedWhileRunning(t *testing.T) {
	svc, _, storage := newTestService(t)
	ctx := context.Background()

	auditID, err := svc.StartAudit(ctx, startRequest("project-1", "https://example.com", nil))
	require.NoError(t, err)

	audit, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	audit.MarkStarted()
	require.NoError(t, storage.AuditStorage().UpdateAudit(ctx, audit))

	assert.ErrorIs(t, svc.RestartAudit(ctx, auditID), ErrInvalidState)
}

func TestGenerateReportRequiresCompletedAudit(t *testing.T) {
	svc, queue, storage := newTestService(t)
	ctx := context.Background()

	auditID, err := svc.StartAudit(ctx, startRequest("project-1", "https://example.com", nil))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.GenerateReport(ctx, auditID, "pdf"), ErrInvalidState)

	audit, err := storage.AuditStorage().GetAudit(ctx, auditID)
	require.NoError(t, err)
	audit.MarkStarted()
	audit.MarkCompleted()
	require.NoError(t, storage.AuditStorage().UpdateAudit(ctx, audit))

	require.NoError(t, svc.GenerateReport(ctx, auditID, "pdf"))
	last := queue.messages[len(queue.messages)-1]
	assert.Equal(t, models.JobTypeGenerateReport, last.Type)
}

func TestDeleteAudit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	auditID, err := svc.StartAudit(ctx, startRequest("project-1", "https://example.com", nil))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAudit(ctx, auditID))

	_, err = svc.GetAudit(ctx, auditID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.DeleteAudit(ctx, auditID), ErrNotFound)
}

func TestProgressForMissingAudit(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Progress(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
