package workflow

import (
	"context"
	"errors"

	"ingestor/internal/jobs"
	"ingestor/internal/services"
)

// isCancellation reports whether err ended the job because its own context
// was cancelled. Collaborator timeouts are failures, not cancellations.
func isCancellation(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return ctx != nil && errors.Is(ctx.Err(), context.Canceled)
}

func cancelledLine(kind jobs.Kind) string {
	switch kind {
	case jobs.KindCrawl:
		return "Crawl cancelled by user"
	case jobs.KindFolder:
		return "Folder upload cancelled by user"
	default:
		return "Upload cancelled by user"
	}
}

func failureLine(kind jobs.Kind, err error) string {
	message := services.DisplayMessage(err)
	if message == "" {
		message = "failed without error detail"
	}
	switch kind {
	case jobs.KindCrawl:
		return "Crawling failed: " + message
	case jobs.KindFolder:
		return "Folder upload failed: " + message
	default:
		return "Upload failed: " + message
	}
}
