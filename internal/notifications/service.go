package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gen2brain/beeep"

	"mouthsync/internal/config"
)

const (
	userAgent = "MouthSync-Go/0.1.0"
	appName   = "MouthSync"
)

// Event identifies a notification type.
type Event string

const (
	EventRunFinished  Event = "run_finished"
	EventRunCancelled Event = "run_cancelled"
	EventRunRejected  Event = "run_rejected"
	EventTest         Event = "test"
)

// Payload carries event details. Known keys: audio, mode, cues, keys, holds,
// unmapped, duration, error.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds the notifiers enabled in cfg. With neither ntfy nor
// desktop configured a noop implementation is returned. Finished events are
// sent only with on_finish; cancelled and rejected events only with on_cancel.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	var services multiService
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		services = append(services, &ntfyService{
			endpoint: topic,
			client:   &http.Client{Timeout: timeout},
		})
	}
	if cfg.Notifications.Desktop {
		services = append(services, &desktopService{notify: desktopNotify})
	}
	var svc Service
	switch len(services) {
	case 0:
		return noopService{}
	case 1:
		svc = services[0]
	default:
		svc = services
	}
	return gatedService{
		next: svc,
		allow: map[Event]bool{
			EventRunFinished:  cfg.Notifications.OnFinish,
			EventRunCancelled: cfg.Notifications.OnCancel,
			EventRunRejected:  cfg.Notifications.OnCancel,
			EventTest:         true,
		},
	}
}

type gatedService struct {
	next  Service
	allow map[Event]bool
}

func (g gatedService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !g.allow[event] {
		return nil
	}
	return g.next.Publish(ctx, event, payload)
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

// format renders event. A false second result means the event is not sent.
func format(event Event, payload Payload) (message, bool) {
	audio := payloadString(payload, "audio")
	if audio == "" {
		audio = "unknown audio"
	}
	mode := payloadString(payload, "mode")
	switch event {
	case EventRunFinished:
		body := fmt.Sprintf("👄 Keyed %d cues (%d keys) from %s", payloadInt(payload, "cues"), payloadInt(payload, "keys"), audio)
		if holds := payloadInt(payload, "holds"); holds > 0 {
			body += fmt.Sprintf(", %d holds", holds)
		}
		if unmapped := payloadString(payload, "unmapped"); unmapped != "" {
			body += "\nUnmapped: " + unmapped
		}
		if d := payloadString(payload, "duration"); d != "" {
			body += "\nTook " + d
		}
		return message{
			title: "MouthSync - Finished",
			body:  body,
			tags:  tagsFor("run", mode, "finished"),
		}, true
	case EventRunCancelled:
		return message{
			title:    "MouthSync - Cancelled",
			body:     fmt.Sprintf("❌ Run cancelled for %s: %s", audio, reason(payload)),
			tags:     tagsFor("run", mode, "cancelled"),
			priority: "high",
		}, true
	case EventRunRejected:
		return message{
			title: "MouthSync - Rejected",
			body:  fmt.Sprintf("Run not started for %s: %s", audio, reason(payload)),
			tags:  tagsFor("run", mode, "rejected"),
		}, true
	case EventTest:
		return message{
			title:    "MouthSync - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"mouthsync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func tagsFor(parts ...string) []string {
	tags := []string{"mouthsync"}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

func reason(payload Payload) string {
	if text := payloadString(payload, "error"); text != "" {
		return text
	}
	return "unknown"
}

func payloadString(payload Payload, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case []string:
		return strings.Join(v, ", ")
	case time.Duration:
		return v.Round(time.Second).String()
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

const desktopBodyLimit = 100

func desktopNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

type desktopService struct {
	notify func(title, message string) error
}

func (d *desktopService) Publish(_ context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok || d.notify == nil {
		return nil
	}
	body := msg.body
	if len(body) > desktopBodyLimit {
		body = body[:desktopBodyLimit] + "..."
	}
	title := strings.Replace(msg.title, appName+" - ", appName+": ", 1)
	if err := d.notify(title, body); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

// multiService fans out to every notifier and joins their errors.
type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
