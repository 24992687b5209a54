package common

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/exp/rand"

	"github.com/sushihentaime/blogcms/internal/events"
)

type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// JobHandler processes one job. A returned error makes the worker retry the
// job until its attempts are used up.
type JobHandler func(ctx context.Context, job *events.Job) error

// Worker consumes one lane and runs every job through its handler in
// delivery order.
type Worker struct {
	lane      events.Lane
	mc        MessageConsumer
	mp        MessageProducer
	handler   JobHandler
	logger    Logger
	baseDelay time.Duration
}

func NewWorker(lane events.Lane, mc MessageConsumer, mp MessageProducer, handler JobHandler, logger Logger) *Worker {
	return &Worker{
		lane:      lane,
		mc:        mc,
		mp:        mp,
		handler:   handler,
		logger:    logger,
		baseDelay: 500 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled or the delivery channel closes.
func (w *Worker) Run(ctx context.Context) error {
	queue, key := LaneQueue(w.lane)

	msgs, err := w.mc.Consume(key, PostExchange, queue)
	if err != nil {
		return err
	}

	w.logger.Info("worker started", slog.String("lane", string(w.lane)))

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			w.process(ctx, msg)

		case <-ctx.Done():
			w.logger.Info("stopping worker due to context cancellation", slog.String("lane", string(w.lane)))
			return nil
		}
	}
}

func (w *Worker) process(ctx context.Context, msg amqp.Delivery) {
	var job events.Job

	err := json.Unmarshal(msg.Body, &job)
	if err != nil {
		w.logger.Error("could not unmarshal job", slog.String("lane", string(w.lane)), slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}

	if job.MaxAttempts < 1 {
		job.MaxAttempts = events.DefaultMaxAttempts
	}

	for job.Attempts < job.MaxAttempts {
		job.Attempts++

		err = w.handler(ctx, &job)
		if err == nil {
			w.logger.Info("job processed", slog.String("lane", string(w.lane)), slog.String("job", job.ID), slog.Int("attempt", job.Attempts))
			_ = msg.Ack(false)
			return
		}

		w.logger.Warn("job attempt failed", slog.String("lane", string(w.lane)), slog.String("job", job.ID), slog.Int("attempt", job.Attempts), slog.String("error", err.Error()))

		if job.Attempts >= job.MaxAttempts {
			break
		}

		if !w.sleep(ctx, job.Attempts) {
			// shutting down: hand the message back to the broker
			_ = msg.Nack(false, true)
			return
		}
	}

	if err := w.fail(ctx, &job, err); err != nil {
		// the job is not parked anywhere yet, so let the broker redeliver it
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// sleep waits using exponential backoff with jitter. It returns false if ctx
// ends first.
func (w *Worker) sleep(ctx context.Context, attempt int) bool {
	if ctx.Err() != nil {
		return false
	}

	if w.baseDelay <= 0 {
		return true
	}

	delay := time.Duration(rand.Int63n(int64(w.baseDelay) << uint(attempt-1)))

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// fail moves the job to the failed jobs queue.
func (w *Worker) fail(ctx context.Context, job *events.Job, cause error) error {
	now := time.Now().UTC()
	job.FailedAt = &now
	if cause != nil {
		job.LastError = cause.Error()
	}

	w.logger.Error("job failed permanently", slog.String("lane", string(w.lane)), slog.String("job", job.ID), slog.Int("attempts", job.Attempts), slog.String("error", job.LastError))

	body, err := json.Marshal(job)
	if err != nil {
		w.logger.Error("could not marshal failed job", slog.String("job", job.ID), slog.String("error", err.Error()))
		return err
	}

	err = w.mp.Publish(ctx, body, FailedJobsKey, PostExchange)
	if err != nil {
		w.logger.Error("could not publish failed job", slog.String("job", job.ID), slog.String("error", err.Error()))
		return err
	}

	return nil
}
