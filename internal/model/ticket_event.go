package model

import (
	"time"
)

// TicketEvent is one lifecycle entry in the ticket audit trail. Detail never
// carries relayed message bodies.
type TicketEvent struct {
	ID        string          `db:"id" json:"id"`
	Type      TicketEventType `db:"event_type" json:"type"`
	UserID    string          `db:"user_id" json:"userId"`
	ThreadID  *string         `db:"thread_id" json:"threadId,omitempty"`
	ActorID   *string         `db:"actor_id" json:"actorId,omitempty"`
	Detail    *string         `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}
