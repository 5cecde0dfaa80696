package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureRepo struct {
	mu      sync.Mutex
	batches [][]*RequestLog
}

func (r *captureRepo) InsertRequestLogs(ctx context.Context, logs []*RequestLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := make([]*RequestLog, len(logs))
	copy(batch, logs)
	r.batches = append(r.batches, batch)
	return nil
}

func (r *captureRepo) Close() error { return nil }

func (r *captureRepo) snapshot() [][]*RequestLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]*RequestLog, len(r.batches))
	copy(out, r.batches)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestIngestor_FlushesFullBatch(t *testing.T) {
	repo := &captureRepo{}
	ing := NewIngestor(zap.NewNop(), repo).(*ingestor)
	ing.batchSize = 3
	ing.flushTime = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx)

	for i := 0; i < 3; i++ {
		ing.Log(&RequestLog{Model: "sonnet"})
	}

	waitFor(t, func() bool { return len(repo.snapshot()) == 1 })
	require.Len(t, repo.snapshot()[0], 3)
}

func TestIngestor_FlushesOnStop(t *testing.T) {
	repo := &captureRepo{}
	ing := NewIngestor(zap.NewNop(), repo).(*ingestor)
	ing.flushTime = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx)

	ing.Log(&RequestLog{Model: "sonnet", Stream: true})
	ing.Log(&RequestLog{Model: "haiku"})
	ing.Stop()

	waitFor(t, func() bool { return len(repo.snapshot()) == 1 })
	batch := repo.snapshot()[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "sonnet", batch[0].Model)
	assert.True(t, batch[0].Stream)
}

func TestIngestor_FlushesOnTimer(t *testing.T) {
	repo := &captureRepo{}
	ing := NewIngestor(zap.NewNop(), repo).(*ingestor)
	ing.flushTime = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing.Start(ctx)

	ing.Log(&RequestLog{Model: "sonnet"})

	waitFor(t, func() bool { return len(repo.snapshot()) >= 1 })
	assert.Len(t, repo.snapshot()[0], 1)
}

func TestIngestor_DropsWhenBufferFull(t *testing.T) {
	repo := &captureRepo{}
	ing := NewIngestor(zap.NewNop(), repo).(*ingestor)
	ing.logChan = make(chan *RequestLog, 1)

	// Not started: the second entry has nowhere to go and must not block.
	done := make(chan struct{})
	go func() {
		ing.Log(&RequestLog{Model: "a"})
		ing.Log(&RequestLog{Model: "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Log blocked on a full buffer")
	}
}
