package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/seolens/seolens/internal/interfaces"
	"github.com/seolens/seolens/internal/models"
)

// FailureHandler runs after a job exhausts its attempts, before the message
// is dropped. Used to finalize dependent records.
type FailureHandler func(ctx context.Context, msg *models.JobMessage, jobErr error)

// WorkerConfig holds worker loop settings
type WorkerConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Worker is the single consumer loop for the job queue. It dispatches
// messages to registered handlers and applies the retry policy: a failed
// attempt is released back with exponential backoff, and a job that exhausts
// MaxAttempts is dropped and recorded as failed.
type Worker struct {
	queue           interfaces.QueueManager
	history         interfaces.JobHistoryStorage
	handlers        map[string]interfaces.JobHandler
	failureHandlers map[string]FailureHandler
	config          WorkerConfig
	logger          arbor.ILogger
	ctx             context.Context
	cancel          context.CancelFunc
	done            chan struct{}
}

// NewWorker creates a new queue worker
func NewWorker(queue interfaces.QueueManager, history interfaces.JobHistoryStorage, config WorkerConfig, logger arbor.ILogger) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		queue:           queue,
		history:         history,
		handlers:        make(map[string]interfaces.JobHandler),
		failureHandlers: make(map[string]FailureHandler),
		config:          config,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
}

// RegisterHandler registers a job type handler
func (w *Worker) RegisterHandler(jobType string, handler interfaces.JobHandler) {
	w.handlers[jobType] = handler
	w.logger.Debug().Str("job_type", jobType).Msg("Job handler registered")
}

// RegisterFailureHandler registers a hook invoked when a job of the given
// type exhausts its attempts
func (w *Worker) RegisterFailureHandler(jobType string, handler FailureHandler) {
	w.failureHandlers[jobType] = handler
}

// Start starts the worker loop
func (w *Worker) Start() error {
	w.logger.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int("max_attempts", w.config.MaxAttempts).
		Msg("Starting queue worker")

	go w.run()
	return nil
}

// Stop stops the worker loop and waits for the in-flight job to finish
func (w *Worker) Stop() error {
	w.logger.Info().Msg("Stopping queue worker")
	w.cancel()
	<-w.done
	return nil
}

func (w *Worker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug().Msg("Queue worker stopped")
			return
		case <-ticker.C:
			// Drain everything that is ready before sleeping again
			for {
				if err := w.processOne(); err != nil {
					if err != models.ErrNoMessage {
						w.logger.Warn().Err(err).Msg("Error processing queue message")
					}
					break
				}
				if w.ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processOne receives and processes a single message
func (w *Worker) processOne() error {
	delivery, err := w.queue.Receive(w.ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message

	handler, exists := w.handlers[msg.Type]
	if !exists {
		w.logger.Error().
			Str("type", msg.Type).
			Str("message_id", delivery.ID).
			Msg("No handler registered for job type")
		if delErr := w.queue.Delete(w.ctx, delivery.ID); delErr != nil {
			w.logger.Warn().Err(delErr).Msg("Failed to delete unknown job type message")
		}
		return fmt.Errorf("no handler for job type: %s", msg.Type)
	}

	startTime := time.Now()
	handlerErr := handler(w.ctx, &msg)
	duration := time.Since(startTime)

	if handlerErr == nil {
		w.logger.Info().
			Str("message_id", delivery.ID).
			Str("type", msg.Type).
			Int("attempt", delivery.Attempt).
			Dur("duration", duration).
			Msg("Job completed")

		if err := w.queue.Delete(w.ctx, delivery.ID); err != nil {
			w.logger.Warn().Err(err).Str("message_id", delivery.ID).Msg("Failed to acknowledge message")
			return err
		}
		w.recordOutcome(delivery, &msg, "completed", "", duration)
		return nil
	}

	if delivery.Attempt >= w.config.MaxAttempts {
		w.logger.Error().
			Err(handlerErr).
			Str("message_id", delivery.ID).
			Str("type", msg.Type).
			Int("attempt", delivery.Attempt).
			Msg("Job failed, attempts exhausted")

		if fh, ok := w.failureHandlers[msg.Type]; ok {
			fh(w.ctx, &msg, handlerErr)
		}
		if err := w.queue.Delete(w.ctx, delivery.ID); err != nil {
			w.logger.Warn().Err(err).Str("message_id", delivery.ID).Msg("Failed to drop exhausted message")
			return err
		}
		w.recordOutcome(delivery, &msg, "failed", handlerErr.Error(), duration)
		return handlerErr
	}

	// Exponential backoff: backoff * 2^(attempt-1)
	delay := w.config.RetryBackoff << (delivery.Attempt - 1)
	w.logger.Warn().
		Err(handlerErr).
		Str("message_id", delivery.ID).
		Str("type", msg.Type).
		Int("attempt", delivery.Attempt).
		Dur("retry_in", delay).
		Msg("Job failed, scheduling retry")

	if err := w.queue.Release(w.ctx, delivery.ID, delay); err != nil {
		// Message stays invisible until the visibility timeout lapses,
		// which still gets it retried, just later.
		w.logger.Warn().Err(err).Str("message_id", delivery.ID).Msg("Failed to release message for retry")
		return handlerErr
	}
	// A scheduled retry is the normal outcome for a failed attempt; the loop
	// keeps draining and the error surfaces only if the job exhausts attempts.
	return nil
}

func (w *Worker) recordOutcome(delivery *interfaces.QueueDelivery, msg *models.JobMessage, status, errMsg string, duration time.Duration) {
	record := &models.JobRecord{
		ID:         uuid.New().String(),
		MessageID:  delivery.ID,
		Type:       msg.Type,
		Status:     status,
		Attempts:   delivery.Attempt,
		Error:      errMsg,
		EnqueuedAt: delivery.EnqueuedAt,
		FinishedAt: time.Now(),
		Duration:   duration,
	}
	if err := w.history.RecordJob(w.ctx, record); err != nil {
		w.logger.Warn().Err(err).Str("message_id", delivery.ID).Msg("Failed to record job history")
	}
}
