package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openclaw/modmail-relay-go/internal/model"
)

type ConversationRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.Conversation, error)
	FindUserIDByThreadID(ctx context.Context, threadID string) (string, error)
	List(ctx context.Context) ([]model.Conversation, error)
	Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error)
	IncrementMessageCount(ctx context.Context, userID string, at time.Time) (*model.Conversation, error)
	TouchLastMessage(ctx context.Context, userID string, at time.Time) error
	Delete(ctx context.Context, userID string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// conversationRepo keeps conversations in process memory. Both indices are
// updated under one lock so user and thread lookups never disagree.
type conversationRepo struct {
	mu       sync.RWMutex
	byUser   map[string]*model.Conversation
	byThread map[string]string
}

func NewConversationRepository() ConversationRepository {
	return &conversationRepo{
		byUser:   make(map[string]*model.Conversation),
		byThread: make(map[string]string),
	}
}

func (r *conversationRepo) FindByUserID(ctx context.Context, userID string) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.byUser[userID]
	if !ok {
		return nil, nil
	}
	c := *conv
	return &c, nil
}

func (r *conversationRepo) FindUserIDByThreadID(ctx context.Context, threadID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byThread[threadID], nil
}

func (r *conversationRepo) List(ctx context.Context) ([]model.Conversation, error) {
	r.mu.RLock()
	convs := make([]model.Conversation, 0, len(r.byUser))
	for _, conv := range r.byUser {
		convs = append(convs, *conv)
	}
	r.mu.RUnlock()

	sort.SliceStable(convs, func(i, j int) bool {
		if convs[i].OpenedAt.Equal(convs[j].OpenedAt) {
			return convs[i].UserID < convs[j].UserID
		}
		return convs[i].OpenedAt.Before(convs[j].OpenedAt)
	})
	return convs, nil
}

// Create replaces any existing mapping for the user.
func (r *conversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[params.UserID]; ok {
		delete(r.byThread, old.ThreadID)
	}

	conv := &model.Conversation{
		UserID:        params.UserID,
		ThreadID:      params.ThreadID,
		OpenedAt:      params.OpenedAt,
		LastMessageAt: params.OpenedAt,
	}
	r.byUser[params.UserID] = conv
	r.byThread[params.ThreadID] = params.UserID

	c := *conv
	return &c, nil
}

func (r *conversationRepo) IncrementMessageCount(ctx context.Context, userID string, at time.Time) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.byUser[userID]
	if !ok {
		return nil, nil
	}
	conv.MessageCount++
	conv.LastMessageAt = at
	conv.LastUserMessageAt = at

	c := *conv
	return &c, nil
}

func (r *conversationRepo) TouchLastMessage(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conv, ok := r.byUser[userID]; ok {
		conv.LastMessageAt = at
	}
	return nil
}

func (r *conversationRepo) Delete(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.byUser[userID]
	if !ok {
		return false, nil
	}
	delete(r.byThread, conv.ThreadID)
	delete(r.byUser, userID)
	return true, nil
}

func (r *conversationRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser), nil
}
