package logging

import (
	"context"
	"log/slog"

	"ingestor/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldKind is the standardized structured logging key for job kinds.
	FieldKind = "job_kind"
	// FieldCurrentItem is the file or URL a job is working on.
	FieldCurrentItem = "current_item"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType names the lifecycle event a log line records.
	FieldEventType = "event_type"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"

	FieldErrorKind       = "error_kind"
	FieldErrorOperation  = "error_operation"
	FieldErrorDetailPath = "error_detail_path"
	FieldErrorCode       = "error_code"
	FieldErrorHint       = "error_hint"

	FieldProgressPercent = "progress_percent"
	FieldProgressMessage = "progress_message"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if kind, ok := services.KindFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldKind, kind))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

// ErrorAttrs expands err into the standardized error fields using services.Details.
func ErrorAttrs(err error) []Attr {
	details := services.Details(err)
	attrs := []Attr{
		String(FieldErrorKind, string(details.Kind)),
	}
	if details.Operation != "" {
		attrs = append(attrs, String(FieldErrorOperation, details.Operation))
	}
	if details.DetailPath != "" {
		attrs = append(attrs, String(FieldErrorDetailPath, details.DetailPath))
	}
	if details.Code != "" {
		attrs = append(attrs, String(FieldErrorCode, details.Code))
	}
	if details.Hint != "" {
		attrs = append(attrs, String(FieldErrorHint, details.Hint))
	}
	return append(attrs, Error(err))
}
