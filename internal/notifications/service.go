package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trialrec/internal/config"
)

const userAgent = "trialrec/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventSessionCompleted Event = "session_completed"
	EventWriteFailed      Event = "write_failed"
	EventTest             Event = "test"
)

// Payload carries event-specific values keyed by name.
type Payload map[string]any

// Service defines the notification surface exposed to the file I/O worker.
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
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		sessionEnd: cfg.Notifications.SessionEnd,
		errors:     cfg.Notifications.Errors,
	}
}

// NewNoop returns a Service that discards every event.
func NewNoop() Service { return noopService{} }

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	sessionEnd bool
	errors     bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil {
		return nil
	}
	switch event {
	case EventSessionCompleted:
		if !n.sessionEnd {
			return nil
		}
		return n.send(ctx, sessionCompletedPayload(data))
	case EventWriteFailed:
		if !n.errors {
			return nil
		}
		return n.send(ctx, writeFailedPayload(data))
	case EventTest:
		return n.send(ctx, payload{
			title:    "trialrec - Test",
			message:  "Notification system test",
			tags:     []string{"trialrec", "test"},
			priority: "low",
		})
	default:
		return nil
	}
}

func sessionCompletedPayload(data Payload) payload {
	session := stringValue(data, "sessionID")
	processed := intValue(data, "processed")
	failed := intValue(data, "failed")
	duration := durationText(data["duration"])

	title := "trialrec - Session Saved"
	message := fmt.Sprintf("Session %s saved: %d file operations in %s", session, processed, duration)
	if failed > 0 {
		title = "trialrec - Session Saved (with errors)"
		message = fmt.Sprintf("Session %s saved: %d succeeded, %d failed in %s", session, processed-failed, failed, duration)
	}
	if experiment := stringValue(data, "experiment"); experiment != "" {
		message += "\nExperiment: " + experiment
	}
	return payload{
		title:   title,
		message: message,
		tags:    []string{"trialrec", "session", "completed"},
	}
}

func writeFailedPayload(data Payload) payload {
	var builder strings.Builder
	builder.WriteString("Write failed")
	if op := stringValue(data, "operation"); op != "" {
		builder.WriteString(" during ")
		builder.WriteString(op)
	}
	if target := stringValue(data, "target"); target != "" {
		builder.WriteString(" (")
		builder.WriteString(target)
		builder.WriteString(")")
	}
	builder.WriteString(": ")
	if msg := stringValue(data, "error"); msg != "" {
		builder.WriteString(msg)
	} else {
		builder.WriteString("unknown")
	}
	if session := stringValue(data, "sessionID"); session != "" {
		builder.WriteString("\nSession: ")
		builder.WriteString(session)
	}
	return payload{
		title:    "trialrec - Write Failed",
		message:  builder.String(),
		tags:     []string{"trialrec", "error", "alert"},
		priority: "high",
	}
}

func stringValue(data Payload, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
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

func durationText(v any) string {
	d, _ := v.(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
