package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
)

// IngestJob names one unit of background ingestion work: run the C7 state
// machine for a single source.
type IngestJob struct {
	BotID    string `json:"bot_id"`
	SourceID string `json:"source_id"`
}

// JobQueue abstracts how an ingestion job is handed off to background
// processing, detached from the HTTP request that created the source.
type JobQueue interface {
	Enqueue(ctx context.Context, job IngestJob) error
}

// SourceProcessor runs the C7 ingestion pipeline for one source.
type SourceProcessor interface {
	ProcessSource(ctx context.Context, botID, sourceID string) error
}

// LocalJobQueue runs ingestion jobs on a fixed-size in-process worker pool.
// This is the default transport: no external broker required, one source is
// ever processed by one worker at a time (matching C7's single-threaded
// per-source ordering guarantee), and any number of sources across bots run
// concurrently up to the worker count.
type LocalJobQueue struct {
	jobs      chan IngestJob
	processor SourceProcessor
}

// NewLocalJobQueue creates a LocalJobQueue and starts workerCount background
// goroutines draining it. The queue buffers up to queueSize jobs; Enqueue
// blocks if the queue is full, back-pressuring the HTTP handler rather than
// dropping a job.
func NewLocalJobQueue(ctx context.Context, processor SourceProcessor, workerCount, queueSize int) *LocalJobQueue {
	q := &LocalJobQueue{
		jobs:      make(chan IngestJob, queueSize),
		processor: processor,
	}
	for i := 0; i < workerCount; i++ {
		go q.worker(ctx)
	}
	return q
}

func (q *LocalJobQueue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			if err := q.processor.ProcessSource(ctx, job.BotID, job.SourceID); err != nil {
				slog.Error("ingestion job failed", "bot_id", job.BotID, "source_id", job.SourceID, "error", err)
			}
		}
	}
}

// Enqueue submits a job for background processing.
func (q *LocalJobQueue) Enqueue(ctx context.Context, job IngestJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PubSubJobQueue publishes ingestion jobs to a Pub/Sub topic instead of
// running them on this process's worker pool, for deployments that split
// the HTTP tier and the ingestion workers across processes.
type PubSubJobQueue struct {
	topic *pubsub.Topic
}

// NewPubSubJobQueue creates a PubSubJobQueue over an already-configured topic.
func NewPubSubJobQueue(topic *pubsub.Topic) *PubSubJobQueue {
	return &PubSubJobQueue{topic: topic}
}

// Enqueue publishes job and waits for the publish to be acknowledged by the
// broker before returning, so a 202 response to the caller implies the job
// is durably queued.
func (q *PubSubJobQueue) Enqueue(ctx context.Context, job IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("service.PubSubJobQueue.Enqueue: marshal: %w", err)
	}
	result := q.topic.Publish(ctx, &pubsub.Message{Data: payload})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("service.PubSubJobQueue.Enqueue: publish: %w", err)
	}
	return nil
}

// RunPubSubConsumer blocks, receiving ingestion jobs from sub and running
// them through processor, until ctx is cancelled.
func RunPubSubConsumer(ctx context.Context, sub *pubsub.Subscription, processor SourceProcessor) error {
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var job IngestJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			slog.Error("ingestion job undecodable, dropping", "error", err)
			msg.Ack()
			return
		}
		if err := processor.ProcessSource(ctx, job.BotID, job.SourceID); err != nil {
			slog.Error("ingestion job failed", "bot_id", job.BotID, "source_id", job.SourceID, "error", err)
		}
		msg.Ack()
	})
}
