package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/openclaw/modmail-relay-go/internal/errors"
	"github.com/openclaw/modmail-relay-go/internal/model"
)

type TicketEventRepository interface {
	Create(ctx context.Context, event model.TicketEvent) error
	CountByUserIDAndType(ctx context.Context, userID string, eventType model.TicketEventType) (int, error)
}

type ticketEventRepo struct {
	db *sqlx.DB
}

func NewTicketEventRepository(db *sqlx.DB) TicketEventRepository {
	return &ticketEventRepo{db: db}
}

func (r *ticketEventRepo) Create(ctx context.Context, event model.TicketEvent) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO ticket_events (id, event_type, user_id, thread_id, actor_id, detail, created_at)
		VALUES (:id, :event_type, :user_id, :thread_id, :actor_id, :detail, :created_at)
	`, event)
	if err != nil {
		return apperrors.Database(err)
	}
	return nil
}

func (r *ticketEventRepo) CountByUserIDAndType(ctx context.Context, userID string, eventType model.TicketEventType) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM ticket_events WHERE user_id = $1 AND event_type = $2
	`, userID, eventType)
	if err != nil {
		return 0, apperrors.Database(err)
	}
	return count, nil
}
