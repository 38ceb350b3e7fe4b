package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/modmail-relay-go/internal/model"
)

// Event describes one ticket lifecycle change. Details must never carry
// relayed message text.
type Event struct {
	Type     model.TicketEventType
	UserID   string
	ThreadID string
	ActorID  string
	Detail   string
	Details  map[string]interface{}
}

// Store persists ticket events.
type Store interface {
	Create(ctx context.Context, event model.TicketEvent) error
}

// Publisher fans ticket events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event model.TicketEvent) error
}

// Recorder writes every ticket event to the audit log and, when configured,
// to the store and publisher. Store and publisher failures are logged and
// never surface to callers.
type Recorder struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

func NewRecorder(store Store, publisher Publisher) *Recorder {
	return &Recorder{store: store, publisher: publisher, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil {
		return
	}

	ticketEvent := model.TicketEvent{
		ID:        uuid.NewString(),
		Type:      event.Type,
		UserID:    event.UserID,
		ThreadID:  optional(event.ThreadID),
		ActorID:   optional(event.ActorID),
		Detail:    optional(event.Detail),
		CreatedAt: r.now(),
	}

	Log(ctx, event)

	if r.store != nil {
		if err := r.store.Create(ctx, ticketEvent); err != nil {
			log.Error().Err(err).Str("eventId", ticketEvent.ID).Msg("failed to persist ticket event")
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, ticketEvent); err != nil {
			log.Warn().Err(err).Str("eventId", ticketEvent.ID).Msg("failed to publish ticket event")
		}
	}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "ticket").
		Str("event_type", string(event.Type)).
		Str("user_id", event.UserID).
		Time("timestamp", time.Now()).
		Logger()

	if event.ThreadID != "" {
		logger = logger.With().Str("thread_id", event.ThreadID).Logger()
	}
	if event.ActorID != "" {
		logger = logger.With().Str("actor_id", event.ActorID).Logger()
	}

	logEvent := logger.Info()
	if event.Detail != "" {
		logEvent = logEvent.Str("detail", event.Detail)
	}
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("ticket audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Duration:
		return e.Dur(key, v)
	default:
		return e.Interface(key, v)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
