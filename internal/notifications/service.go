package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"merchbatch/internal/config"
)

const userAgent = "merchbatch/0.1.0"

// Service defines the notification surface exposed to the job controller.
type Service interface {
	NotifyRunStarted(ctx context.Context, total int, mode string) error
	NotifyRunCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
	NotifyRunStopped(ctx context.Context, current, total int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
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
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		runStarted:   cfg.Notifications.RunStarted,
		runCompleted: cfg.Notifications.RunCompleted,
		errors:       cfg.Notifications.Errors,
	}
}

// NewNoop returns a Service that discards every event.
func NewNoop() Service {
	return noopService{}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	runStarted   bool
	runCompleted bool
	errors       bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, total int, mode string) error {
	if !n.runStarted {
		return nil
	}
	message := fmt.Sprintf("Started batch of %d items", total)
	if mode = strings.TrimSpace(mode); mode != "" && mode != "live" {
		message = fmt.Sprintf("%s (%s mode)", message, mode)
	}
	return n.send(ctx, payload{
		title:   "merchbatch - Run Started",
		message: message,
		tags:    []string{"merchbatch", "run", "started"},
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	if !n.runCompleted {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	data := payload{tags: []string{"merchbatch", "run", "completed"}}
	if failed == 0 {
		data.title = "merchbatch - Run Complete"
		data.message = fmt.Sprintf("✅ Batch complete: %d items uploaded in %s", succeeded, durationText)
	} else {
		data.title = "merchbatch - Run Complete (with errors)"
		data.message = fmt.Sprintf("Batch complete: %d succeeded, %d failed in %s", succeeded, failed, durationText)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunStopped(ctx context.Context, current, total int) error {
	if !n.runCompleted {
		return nil
	}
	return n.send(ctx, payload{
		title:   "merchbatch - Run Stopped",
		message: fmt.Sprintf("⏹ Batch stopped after %d of %d items", current, total),
		tags:    []string{"merchbatch", "run", "stopped"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	if err != nil {
		builder.WriteString(": ")
		builder.WriteString(err.Error())
	}
	return n.send(ctx, payload{
		title:    "merchbatch - Error",
		message:  builder.String(),
		tags:     []string{"merchbatch", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "merchbatch - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"merchbatch", "test"},
		priority: "low",
	})
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

func (noopService) NotifyRunStarted(context.Context, int, string) error                { return nil }
func (noopService) NotifyRunCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyRunStopped(context.Context, int, int) error                   { return nil }
func (noopService) NotifyError(context.Context, error, string) error                   { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
