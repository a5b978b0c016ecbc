package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Event is an ephemeral record of something that happened in a storefront
// session. Events are fanned out in-process and never persisted; they exist
// for telemetry, not recovery.
type Event struct {
	ID         uuid.UUID
	Topic      string
	SessionID  string
	Payload    map[string]any
	OccurredAt time.Time
}

// Notifier reacts to emitted events (logging, metrics, etc.).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus fans session events out to the configured notifiers.
type Bus struct {
	Notifiers []Notifier
	Now       func() time.Time
}

// Emit dispatches the event to all configured notifiers. Notifier failures
// are joined and returned but never interrupt the fan-out.
func (b *Bus) Emit(ctx context.Context, topic, sessionID string, payload map[string]any) (Event, error) {
	if b == nil {
		return Event{}, errors.New("events: bus not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		return Event{}, errors.New("events: session id is required")
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ev := Event{
		ID:         uuid.New(),
		Topic:      topic,
		SessionID:  sessionID,
		Payload:    payload,
		OccurredAt: now(),
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, ev); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", err))
		}
	}
	return ev, joined
}

// LogNotifier writes a structured log line per event.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info().
		Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		Str("session_id", ev.SessionID).
		Fields(map[string]any{"payload": ev.Payload}).
		Msg("session_event")
	return nil
}

// MetricsNotifier counts emitted events per topic.
type MetricsNotifier struct {
	Counter *prometheus.CounterVec
}

// Notify implements Notifier.
func (n MetricsNotifier) Notify(_ context.Context, ev Event) error {
	if n.Counter == nil {
		return nil
	}
	n.Counter.WithLabelValues(ev.Topic).Inc()
	return nil
}
