package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/modmail-relay-go/internal/model"
)

func newTestRateLimiter() *RateLimiter {
	return NewRateLimiter(RateLimiterOptions{
		Window:          60 * time.Second,
		Threshold:       6,
		Cooldown:        5 * time.Minute,
		StaffReplyGrace: 5 * time.Second,
	})
}

func TestRateLimiter_CheckAndRecord(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("user without history is allowed", func(t *testing.T) {
		rl := newTestRateLimiter()
		d := rl.CheckAndRecord("u1", base)
		assert.True(t, d.Allowed)
		assert.Equal(t, model.RateReasonNone, d.Reason)
	})

	t.Run("allows five messages inside the window", func(t *testing.T) {
		rl := newTestRateLimiter()
		for i := 0; i < 5; i++ {
			d := rl.CheckAndRecord("u1", base.Add(time.Duration(i)*time.Second))
			assert.True(t, d.Allowed, "message %d should be allowed", i+1)
		}
	})

	t.Run("sixth message trips the limit and starts a cooldown", func(t *testing.T) {
		rl := newTestRateLimiter()
		for i := 0; i < 5; i++ {
			rl.CheckAndRecord("u1", base.Add(time.Duration(i)*time.Second))
		}

		d := rl.CheckAndRecord("u1", base.Add(5*time.Second))
		assert.False(t, d.Allowed)
		assert.Equal(t, model.RateReasonLimitExceeded, d.Reason)
		assert.Equal(t, 300, d.RemainingSeconds())
	})

	t.Run("messages during cooldown report decreasing remaining time", func(t *testing.T) {
		rl := newTestRateLimiter()
		for i := 0; i < 6; i++ {
			rl.CheckAndRecord("u1", base.Add(time.Duration(i)*time.Second))
		}

		first := rl.CheckAndRecord("u1", base.Add(10*time.Second))
		second := rl.CheckAndRecord("u1", base.Add(70*time.Second))

		assert.Equal(t, model.RateReasonCooldown, first.Reason)
		assert.Equal(t, model.RateReasonCooldown, second.Reason)
		assert.Equal(t, 295, first.RemainingSeconds())
		assert.Equal(t, 235, second.RemainingSeconds())
		assert.Less(t, second.RemainingSeconds(), first.RemainingSeconds())
	})

	t.Run("cooldown expires", func(t *testing.T) {
		rl := newTestRateLimiter()
		for i := 0; i < 6; i++ {
			rl.CheckAndRecord("u1", base.Add(time.Duration(i)*time.Second))
		}

		d := rl.CheckAndRecord("u1", base.Add(5*time.Second+5*time.Minute))
		assert.True(t, d.Allowed)
	})

	t.Run("old timestamps fall out of the window", func(t *testing.T) {
		rl := newTestRateLimiter()
		for i := 0; i < 5; i++ {
			rl.CheckAndRecord("u1", base.Add(time.Duration(i)*time.Second))
		}

		d := rl.CheckAndRecord("u1", base.Add(61*time.Second))
		assert.True(t, d.Allowed)
	})

	t.Run("users are tracked separately", func(t *testing.T) {
		rl := newTestRateLimiter()
		for i := 0; i < 6; i++ {
			rl.CheckAndRecord("u1", base.Add(time.Duration(i)*time.Second))
		}

		d := rl.CheckAndRecord("u2", base.Add(6*time.Second))
		assert.True(t, d.Allowed)
	})
}

func TestRateLimiter_RecordStaffReply(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("recent staff reply clears history", func(t *testing.T) {
		rl := newTestRateLimiter()
		for i := 0; i < 5; i++ {
			rl.CheckAndRecord("u1", base.Add(time.Duration(i)*time.Second))
		}

		rl.RecordStaffReply("u1", base.Add(10*time.Second))

		d := rl.CheckAndRecord("u1", base.Add(12*time.Second))
		assert.True(t, d.Allowed, "history should have been reset by the staff reply")

		for i := 0; i < 4; i++ {
			d = rl.CheckAndRecord("u1", base.Add(time.Duration(13+i)*time.Second))
			require.True(t, d.Allowed)
		}
		d = rl.CheckAndRecord("u1", base.Add(20*time.Second))
		assert.Equal(t, model.RateReasonLimitExceeded, d.Reason, "reset applies once")
	})

	t.Run("stale staff reply does not clear history", func(t *testing.T) {
		rl := newTestRateLimiter()
		rl.RecordStaffReply("u1", base)
		for i := 0; i < 5; i++ {
			rl.CheckAndRecord("u1", base.Add(time.Duration(10+i)*time.Second))
		}

		d := rl.CheckAndRecord("u1", base.Add(16*time.Second))
		assert.Equal(t, model.RateReasonLimitExceeded, d.Reason)
	})

	t.Run("staff reply does not clear an active cooldown", func(t *testing.T) {
		rl := newTestRateLimiter()
		for i := 0; i < 6; i++ {
			rl.CheckAndRecord("u1", base.Add(time.Duration(i)*time.Second))
		}

		rl.RecordStaffReply("u1", base.Add(20*time.Second))

		d := rl.CheckAndRecord("u1", base.Add(22*time.Second))
		assert.Equal(t, model.RateReasonCooldown, d.Reason)
	})
}

func TestRateLimiter_Sweep(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestRateLimiter()

	rl.CheckAndRecord("idle", base)
	for i := 0; i < 6; i++ {
		rl.CheckAndRecord("cooling", base.Add(time.Duration(i)*time.Second))
	}
	rl.CheckAndRecord("active", base.Add(90*time.Second))
	require.Equal(t, 3, rl.Tracked())

	removed := rl.Sweep(base.Add(100 * time.Second))

	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, rl.Tracked())

	removed = rl.Sweep(base.Add(10 * time.Minute))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, rl.Tracked())
}
