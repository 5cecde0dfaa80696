// Package analytics persists per-request logs asynchronously so the hot path
// never waits on storage.
package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RequestLog is one forwarded request, streaming or not.
type RequestLog struct {
	ID              string    `db:"id"`
	Model           string    `db:"model"`
	Provider        string    `db:"provider"`
	UpstreamModelID string    `db:"upstream_model_id"`
	StatusCode      int       `db:"status_code"`
	Stream          bool      `db:"stream"`
	LatencyMS       int64     `db:"latency_ms"`
	InputTokens     int       `db:"input_tokens"`
	OutputTokens    int       `db:"output_tokens"`
	CreatedAt       time.Time `db:"created_at"`
}

// Repository is the persistence boundary for request logs.
type Repository interface {
	InsertRequestLogs(ctx context.Context, logs []*RequestLog) error
	Close() error
}

// Ingestor buffers request logs and flushes them in batches.
type Ingestor interface {
	Log(log *RequestLog)
	Start(ctx context.Context)
	Stop()
}

type ingestor struct {
	logger    *zap.Logger
	repo      Repository
	logChan   chan *RequestLog
	batchSize int
	flushTime time.Duration
}

func NewIngestor(logger *zap.Logger, repo Repository) Ingestor {
	return &ingestor{
		logger:    logger,
		repo:      repo,
		logChan:   make(chan *RequestLog, 10000),
		batchSize: 50,
		flushTime: 5 * time.Second,
	}
}

// Log enqueues without blocking; a full buffer drops the entry.
func (i *ingestor) Log(log *RequestLog) {
	select {
	case i.logChan <- log:
	default:
		i.logger.Warn("Analytics buffer full, dropping log", zap.String("model", log.Model))
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

func (i *ingestor) Stop() {
	close(i.logChan)
}

func (i *ingestor) worker(ctx context.Context) {
	batch := make([]*RequestLog, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := i.repo.InsertRequestLogs(context.Background(), batch); err != nil {
			i.logger.Error("Failed to flush request logs", zap.Error(err), zap.Int("count", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case log, ok := <-i.logChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, log)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
