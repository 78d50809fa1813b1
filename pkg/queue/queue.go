// Package queue provides a Redis-backed dispatch queue. Trigger events are
// enqueued once and claimed by exactly one worker, so two processes never run
// the same pending execution.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DispatchJob is one (tenant, event) pair waiting to be dispatched against
// the tenant's eligible workflows.
type DispatchJob struct {
	TenantID    string         `json:"tenant_id"`
	TriggeredBy string         `json:"triggered_by"`
	EventType   string         `json:"event_type"`
	TicketID    string         `json:"ticket_id"`
	EventData   map[string]any `json:"event_data,omitempty"`
	EnqueuedAt  time.Time      `json:"enqueued_at"`
}

// JobHandler processes one claimed job. Returning an error leaves the job
// unacknowledged so another consumer can claim it later.
type JobHandler func(ctx context.Context, job DispatchJob) error

// Options configure the Redis connection and queue identity.
type Options struct {
	Addr          string
	Password      string
	DB            int
	Stream        string
	ConsumerGroup string
	ConsumerName  string
}

// Queue is a Redis streams consumer-group queue.
type Queue struct {
	client redis.UniversalClient
	opts   Options
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New connects to Redis and ensures the stream and consumer group exist.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Queue, error) {
	if opts.Stream == "" {
		return nil, errors.New("queue stream name is required")
	}

	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}

	if opts.ConsumerGroup == "" {
		opts.ConsumerGroup = "slaflow-dispatchers"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	err = client.XGroupCreateMkStream(ctx, opts.Stream, opts.ConsumerGroup, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Queue{
		client: client,
		opts:   opts,
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "dispatch_queue",
			"stream", opts.Stream,
			"consumer_group", opts.ConsumerGroup,
		),
	}, nil
}

// Enqueue appends a job to the stream.
func (q *Queue) Enqueue(ctx context.Context, job DispatchJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch job: %w", err)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]any{"job": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue dispatch job: %w", err)
	}

	return nil
}

// Consume claims jobs for this consumer until the context is cancelled or
// Close is called. Each successfully handled job is acknowledged; failed jobs
// stay pending for redelivery.
func (q *Queue) Consume(ctx context.Context, handler JobHandler) {
	q.wg.Add(1)

	go func() {
		defer q.wg.Done()

		q.logger.InfoContext(ctx, "Starting queue consumer", "consumer", q.opts.ConsumerName)

		for {
			select {
			case <-q.stopCh:
				q.logger.InfoContext(ctx, "Queue consumer stopped")

				return
			case <-ctx.Done():
				q.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

				return
			default:
				err := q.claimNext(ctx, handler)
				if err != nil {
					q.logger.ErrorContext(ctx, "Error processing dispatch job", "error", err)
					time.Sleep(time.Second)
				}
			}
		}
	}()
}

func (q *Queue) claimNext(ctx context.Context, handler JobHandler) error {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opts.ConsumerGroup,
		Consumer: q.opts.ConsumerName,
		Streams:  []string{q.opts.Stream, ">"},
		Count:    1,
		Block:    time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			raw, ok := message.Values["job"].(string)
			if !ok {
				// Malformed entry: acknowledge so it cannot wedge the group.
				q.ack(ctx, message.ID)

				continue
			}

			var job DispatchJob
			if err := json.Unmarshal([]byte(raw), &job); err != nil {
				q.logger.ErrorContext(ctx, "Discarding undecodable job", "message_id", message.ID, "error", err)
				q.ack(ctx, message.ID)

				continue
			}

			if err := handler(ctx, job); err != nil {
				q.logger.ErrorContext(ctx, "Job handler failed, leaving job pending",
					"message_id", message.ID, "tenant_id", job.TenantID, "error", err)

				continue
			}

			q.ack(ctx, message.ID)
		}
	}

	return nil
}

func (q *Queue) ack(ctx context.Context, messageID string) {
	err := q.client.XAck(ctx, q.opts.Stream, q.opts.ConsumerGroup, messageID).Err()
	if err != nil {
		q.logger.ErrorContext(ctx, "Failed to ack message", "message_id", messageID, "error", err)
	}
}

// Close stops consumers and closes the Redis connection.
func (q *Queue) Close() error {
	close(q.stopCh)
	q.wg.Wait()

	return q.client.Close()
}

func isBusyGroup(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
