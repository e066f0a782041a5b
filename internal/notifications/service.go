package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ingestor/internal/config"
)

const userAgent = "ingestor/0.1.0"

// Event identifies a notification-worthy moment in a job's life.
type Event string

const (
	EventJobCompleted             Event = "job_completed"
	EventJobCompletedWithWarnings Event = "job_completed_with_warnings"
	EventJobCancelled             Event = "job_cancelled"
	EventError                    Event = "error"
	EventTest                     Event = "test"
)

// Payload carries event-specific values. Recognized keys: "title", "kind",
// "chunks", "processed", "total", "failed", "error", "context", "duration".
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobCompleted:             cfg.Notifications.Completed,
			EventJobCompletedWithWarnings: cfg.Notifications.Completed,
			EventJobCancelled:             cfg.Notifications.Cancelled,
			EventError:                    cfg.Notifications.Errors,
			EventTest:                     true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, data Payload) (payload, bool) {
	title := stringValue(data, "title")
	kind := stringValue(data, "kind")
	if kind == "" {
		kind = "job"
	}
	switch event {
	case EventJobCompleted:
		message := fmt.Sprintf("✅ Ingested %s: %s", kind, title)
		if chunks := intValue(data, "chunks"); chunks > 0 {
			message = fmt.Sprintf("%s (%d chunks)", message, chunks)
		}
		if d := durationValue(data, "duration"); d > 0 {
			message = fmt.Sprintf("%s in %s", message, d.Round(time.Second))
		}
		return payload{
			title:   "Ingestor - Complete",
			message: message,
			tags:    []string{"ingestor", kind, "completed"},
		}, true
	case EventJobCompletedWithWarnings:
		return payload{
			title: "Ingestor - Complete (with warnings)",
			message: fmt.Sprintf("⚠️ Ingested %s: %s\n%d/%d files stored, %d failed",
				kind, title, intValue(data, "processed"), intValue(data, "total"), intValue(data, "failed")),
			tags: []string{"ingestor", kind, "warning"},
		}, true
	case EventJobCancelled:
		return payload{
			title:    "Ingestor - Cancelled",
			message:  fmt.Sprintf("Cancelled %s: %s", kind, title),
			tags:     []string{"ingestor", kind, "cancelled"},
			priority: "low",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := stringValue(data, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if msg := stringValue(data, "error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "Ingestor - Error",
			message:  builder.String(),
			tags:     []string{"ingestor", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Ingestor - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"ingestor", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func stringValue(data Payload, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intValue(data Payload, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func durationValue(data Payload, key string) time.Duration {
	if v, ok := data[key].(time.Duration); ok {
		return v
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
