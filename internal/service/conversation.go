package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/modmail-relay-go/internal/model"
	"github.com/openclaw/modmail-relay-go/internal/repository"
)

// ThreadChecker checks whether a ticket thread still exists on the platform.
type ThreadChecker interface {
	ThreadExists(ctx context.Context, threadID string) (bool, error)
}

// ThreadFactory creates the backing thread for a new conversation and
// returns its ID.
type ThreadFactory func(ctx context.Context) (string, error)

// ConversationService is the registry of open tickets.
type ConversationService struct {
	repo    repository.ConversationRepository
	checker ThreadChecker
	locks   *KeyedMutex
	now     func() time.Time
}

func NewConversationService(repo repository.ConversationRepository, checker ThreadChecker) *ConversationService {
	return &ConversationService{
		repo:    repo,
		checker: checker,
		locks:   NewKeyedMutex(),
		now:     time.Now,
	}
}

func (s *ConversationService) FindOpen(ctx context.Context, userID string) (*model.Conversation, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// OpenOrReuse returns the user's conversation when its thread still exists,
// otherwise creates a thread with factory and registers a fresh conversation.
// The bool result is true when a new conversation was registered. Nothing is
// registered if factory fails.
func (s *ConversationService) OpenOrReuse(ctx context.Context, userID string, factory ThreadFactory) (*model.Conversation, bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("find conversation: %w", err)
	}

	if existing != nil {
		alive, err := s.checker.ThreadExists(ctx, existing.ThreadID)
		if err == nil && alive {
			return existing, false, nil
		}

		log.Info().
			Err(err).
			Str("userId", userID).
			Str("threadId", existing.ThreadID).
			Msg("mapped thread is gone, opening a new one")

		if _, err := s.repo.Delete(ctx, userID); err != nil {
			return nil, false, fmt.Errorf("drop stale conversation: %w", err)
		}
	}

	threadID, err := factory(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("create thread: %w", err)
	}

	conv, err := s.repo.Create(ctx, model.CreateConversationParams{
		UserID:   userID,
		ThreadID: threadID,
		OpenedAt: s.now(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("register conversation: %w", err)
	}

	log.Info().
		Str("userId", userID).
		Str("threadId", threadID).
		Msg("conversation opened")

	return conv, true, nil
}

// RecordMessage counts one relayed user message.
func (s *ConversationService) RecordMessage(ctx context.Context, userID string, at time.Time) (*model.Conversation, error) {
	conv, err := s.repo.IncrementMessageCount(ctx, userID, at)
	if err != nil {
		return nil, fmt.Errorf("record message: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("record message: no open conversation for %s", userID)
	}
	return conv, nil
}

// RecordStaffActivity stamps the last activity time without counting a message.
func (s *ConversationService) RecordStaffActivity(ctx context.Context, userID string, at time.Time) error {
	if err := s.repo.TouchLastMessage(ctx, userID, at); err != nil {
		return fmt.Errorf("record staff activity: %w", err)
	}
	return nil
}

// Close removes the registry entry. Callers invoke it only after the
// platform confirmed the thread was deleted.
func (s *ConversationService) Close(ctx context.Context, userID string) (bool, error) {
	removed, err := s.repo.Delete(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("close conversation: %w", err)
	}
	if removed {
		log.Info().Str("userId", userID).Msg("conversation closed")
	}
	return removed, nil
}

func (s *ConversationService) ListAll(ctx context.Context) ([]model.Conversation, error) {
	return s.repo.List(ctx)
}

func (s *ConversationService) ResolveUserByThread(ctx context.Context, threadID string) (string, bool, error) {
	userID, err := s.repo.FindUserIDByThreadID(ctx, threadID)
	if err != nil {
		return "", false, fmt.Errorf("resolve thread: %w", err)
	}
	return userID, userID != "", nil
}

func (s *ConversationService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
