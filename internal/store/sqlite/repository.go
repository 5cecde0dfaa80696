package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/luwill/Claude-Code-Model-Router/internal/analytics"
)

type repository struct {
	db *sqlx.DB
}

const insertRequestLogs = `
INSERT INTO request_logs (
	id, model, provider, upstream_model_id, status_code, stream,
	latency_ms, input_tokens, output_tokens, created_at
) VALUES (
	:id, :model, :provider, :upstream_model_id, :status_code, :stream,
	:latency_ms, :input_tokens, :output_tokens, :created_at
)`

func (r *repository) InsertRequestLogs(ctx context.Context, logs []*analytics.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}
	_, err := r.db.NamedExecContext(ctx, insertRequestLogs, logs)
	return err
}

func (r *repository) Close() error {
	return r.db.Close()
}
