package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/modmail-relay-go/internal/model"
	redisclient "github.com/openclaw/modmail-relay-go/internal/redis"
)

// Event is the wire envelope published for every ticket lifecycle change.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Broker fans ticket events out over redis pub/sub, on the shared channel
// and on the user's own channel.
type Broker struct {
	redis *redisclient.Client
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	return &Broker{redis: redisClient}
}

func (b *Broker) Publish(ctx context.Context, ticketEvent model.TicketEvent) error {
	data, err := json.Marshal(ticketEvent)
	if err != nil {
		return fmt.Errorf("marshal ticket event: %w", err)
	}

	payload, err := json.Marshal(Event{Type: string(ticketEvent.Type), Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	pipe := b.redis.Pipeline()
	pipe.Publish(ctx, redisclient.TicketEventsChannel, payload)
	pipe.Publish(ctx, redisclient.UserChannel(ticketEvent.UserID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish ticket event: %w", err)
	}

	log.Debug().
		Str("eventId", ticketEvent.ID).
		Str("type", string(ticketEvent.Type)).
		Msg("ticket event published")

	return nil
}
