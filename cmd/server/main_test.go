package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/singlebitxyz/gulp/internal/config"
	"github.com/singlebitxyz/gulp/internal/service"
)

func TestPortString(t *testing.T) {
	require.Equal(t, "8080", portString(8080))
	require.Equal(t, "3000", portString(3000))
}

func TestVersion(t *testing.T) {
	require.NotEmpty(t, Version)
}

type fakeProcessor struct {
	processed chan service.IngestJob
}

func (f *fakeProcessor) ProcessSource(ctx context.Context, botID, sourceID string) error {
	f.processed <- service.IngestJob{BotID: botID, SourceID: sourceID}
	return nil
}

func TestNewJobQueue_LocalTransport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &fakeProcessor{processed: make(chan service.IngestJob, 1)}
	cfg := &config.Config{IngestWorkerConcurrency: 1}

	queue, err := newJobQueue(ctx, cfg, proc)
	require.NoError(t, err)
	require.IsType(t, &service.LocalJobQueue{}, queue)

	require.NoError(t, queue.Enqueue(ctx, service.IngestJob{BotID: "bot-1", SourceID: "src-1"}))

	select {
	case job := <-proc.processed:
		require.Equal(t, "bot-1", job.BotID)
		require.Equal(t, "src-1", job.SourceID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to be processed")
	}
}
