package services

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrExtraction    = errors.New("extraction error")
	ErrStorage       = errors.New("storage error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrDuplicateJob  = errors.New("duplicate job")
	ErrShuttingDown  = errors.New("shutting down")
	ErrExternalTool  = errors.New("external tool error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind is the short classification label derived from a marker.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindExtraction    ErrorKind = "extraction"
	KindStorage       ErrorKind = "storage"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindDuplicate     ErrorKind = "duplicate"
	KindShuttingDown  ErrorKind = "shutting_down"
	KindExternalTool  ErrorKind = "external_tool"
	KindTimeout       ErrorKind = "timeout"
	KindCancelled     ErrorKind = "cancelled"
	KindTransient     ErrorKind = "transient"
	KindUnknown       ErrorKind = "unknown"
)

const maxDisplayMessage = 200

// ServiceError carries the component/operation context added by Wrap.
type ServiceError struct {
	Marker    error
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Component, e.Operation, e.Message)
	out := e.Marker.Error() + ": " + detail
	if e.Cause != nil {
		out += ": " + e.Cause.Error()
	}
	return out
}

// Unwrap exposes both the marker and the cause to errors.Is / errors.As.
func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error message that includes component context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// WithHint attaches an operator hint to a wrapped error. Errors that did not
// come from Wrap are returned unchanged.
func WithHint(err error, hint string) error {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		return err
	}
	clone := *svcErr
	clone.Hint = strings.TrimSpace(hint)
	return &clone
}

// DetailInfo is the structured view of an error used for logging and display.
type DetailInfo struct {
	Kind       ErrorKind
	Operation  string
	Message    string
	Code       string
	Hint       string
	DetailPath string
	Cause      error
}

// Details extracts the classification and context recorded by Wrap.
func Details(err error) DetailInfo {
	if err == nil {
		return DetailInfo{Kind: KindUnknown}
	}
	info := DetailInfo{Kind: KindOf(err)}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		info.Operation = svcErr.Operation
		info.Message = svcErr.Message
		info.Hint = svcErr.Hint
		info.Cause = svcErr.Cause
		if svcErr.Component != "" && svcErr.Operation != "" {
			info.DetailPath = svcErr.Component + "." + svcErr.Operation
		} else {
			info.DetailPath = svcErr.Component + svcErr.Operation
		}
		info.Code = "E_" + strings.ToUpper(string(info.Kind))
	}
	return info
}

// KindOf classifies err by its marker.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateJob):
		return KindDuplicate
	case errors.Is(err, ErrShuttingDown):
		return KindShuttingDown
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// DisplayMessage returns a short, user-safe description of err. Wrapped errors
// yield their message with the cause appended; anything else yields its text.
// The result is truncated to a fixed length.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var message string
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		message = svcErr.Message
		if svcErr.Cause != nil {
			if cause := strings.TrimSpace(svcErr.Cause.Error()); cause != "" {
				message += ": " + cause
			}
		}
	} else {
		message = strings.TrimSpace(err.Error())
	}
	if len(message) > maxDisplayMessage {
		message = strings.TrimSpace(message[:maxDisplayMessage-3]) + "..."
	}
	return message
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component != "" {
		parts = append(parts, component)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
