package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/modmail-relay-go/internal/repository"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	args := m.Called(ctx, threadID)
	return args.Bool(0), args.Error(1)
}

func fixedFactory(threadID string, calls *int) ThreadFactory {
	return func(ctx context.Context) (string, error) {
		*calls++
		return threadID, nil
	}
}

func newTestConversationService(checker ThreadChecker) *ConversationService {
	svc := NewConversationService(repository.NewConversationRepository(), checker)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return svc
}

func TestConversationService_OpenOrReuse(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a conversation on first contact", func(t *testing.T) {
		svc := newTestConversationService(&mockChecker{})
		calls := 0

		conv, created, err := svc.OpenOrReuse(ctx, "u1", fixedFactory("t1", &calls))
		require.NoError(t, err)

		assert.True(t, created)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "u1", conv.UserID)
		assert.Equal(t, "t1", conv.ThreadID)
		assert.Equal(t, 0, conv.MessageCount)
	})

	t.Run("reuses a conversation whose thread exists", func(t *testing.T) {
		checker := &mockChecker{}
		checker.On("ThreadExists", mock.Anything, "t1").Return(true, nil)
		svc := newTestConversationService(checker)
		calls := 0

		_, _, err := svc.OpenOrReuse(ctx, "u1", fixedFactory("t1", &calls))
		require.NoError(t, err)
		conv, created, err := svc.OpenOrReuse(ctx, "u1", fixedFactory("t2", &calls))
		require.NoError(t, err)

		assert.False(t, created)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "t1", conv.ThreadID)
		checker.AssertExpectations(t)
	})

	t.Run("replaces a conversation whose thread was deleted", func(t *testing.T) {
		checker := &mockChecker{}
		checker.On("ThreadExists", mock.Anything, "t1").Return(false, nil)
		svc := newTestConversationService(checker)
		calls := 0

		_, _, _ = svc.OpenOrReuse(ctx, "u1", fixedFactory("t1", &calls))
		conv, created, err := svc.OpenOrReuse(ctx, "u1", fixedFactory("t2", &calls))
		require.NoError(t, err)

		assert.True(t, created)
		assert.Equal(t, "t2", conv.ThreadID)

		_, ok, err := svc.ResolveUserByThread(ctx, "t1")
		require.NoError(t, err)
		assert.False(t, ok, "stale thread mapping must be dropped")
	})

	t.Run("a failed existence check falls through to creation", func(t *testing.T) {
		checker := &mockChecker{}
		checker.On("ThreadExists", mock.Anything, "t1").Return(false, errors.New("503"))
		svc := newTestConversationService(checker)
		calls := 0

		_, _, _ = svc.OpenOrReuse(ctx, "u1", fixedFactory("t1", &calls))
		conv, created, err := svc.OpenOrReuse(ctx, "u1", fixedFactory("t2", &calls))
		require.NoError(t, err)

		assert.True(t, created)
		assert.Equal(t, "t2", conv.ThreadID)
	})

	t.Run("factory failure registers nothing", func(t *testing.T) {
		svc := newTestConversationService(&mockChecker{})

		_, _, err := svc.OpenOrReuse(ctx, "u1", func(ctx context.Context) (string, error) {
			return "", errors.New("missing access")
		})
		assert.Error(t, err)

		conv, err := svc.FindOpen(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, conv)
	})
}

func TestConversationService_RecordMessage(t *testing.T) {
	ctx := context.Background()
	svc := newTestConversationService(&mockChecker{})
	calls := 0
	_, _, err := svc.OpenOrReuse(ctx, "u1", fixedFactory("t1", &calls))
	require.NoError(t, err)

	at := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		conv, err := svc.RecordMessage(ctx, "u1", at.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, i, conv.MessageCount)
	}

	staffAt := at.Add(10 * time.Minute)
	require.NoError(t, svc.RecordStaffActivity(ctx, "u1", staffAt))

	conv, err := svc.FindOpen(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, conv.MessageCount)
	assert.Equal(t, at.Add(3*time.Minute), conv.LastUserMessageAt)
	assert.Equal(t, staffAt, conv.LastMessageAt)

	t.Run("fails without an open conversation", func(t *testing.T) {
		_, err := svc.RecordMessage(ctx, "nobody", at)
		assert.Error(t, err)
	})
}

func TestConversationService_CloseAndList(t *testing.T) {
	ctx := context.Background()
	svc := newTestConversationService(&mockChecker{})
	calls := 0

	_, _, _ = svc.OpenOrReuse(ctx, "u2", fixedFactory("t2", &calls))
	_, _, _ = svc.OpenOrReuse(ctx, "u1", fixedFactory("t1", &calls))
	_, _, _ = svc.OpenOrReuse(ctx, "u3", fixedFactory("t3", &calls))

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"u2", "u1", "u3"}, []string{all[0].UserID, all[1].UserID, all[2].UserID})

	userID, ok, err := svc.ResolveUserByThread(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)

	closed, err := svc.Close(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = svc.Close(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, closed)

	all, err = svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, ok, err = svc.ResolveUserByThread(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}
