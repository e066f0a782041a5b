package workflow

import (
	"context"
	"log/slog"

	"ingestor/internal/jobs"
	"ingestor/internal/logging"
	"ingestor/internal/services"
)

func withJobContext(ctx context.Context, job jobs.Job) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithKind(ctx, string(job.Kind))
	return ctx
}

func (m *Manager) jobLogger(ctx context.Context) *slog.Logger {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	return logging.WithContext(ctx, base)
}
