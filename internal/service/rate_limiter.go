package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/modmail-relay-go/internal/model"
)

type RateLimiterOptions struct {
	Window          time.Duration
	Threshold       int
	Cooldown        time.Duration
	StaffReplyGrace time.Duration
}

type rateState struct {
	timestamps     []time.Time
	cooldownUntil  time.Time
	lastStaffReply time.Time
}

// RateLimiter is a per-user sliding-window spam detector with a cooldown.
// Safe for concurrent use; each call is one atomic read-modify-write.
type RateLimiter struct {
	mu    sync.Mutex
	opts  RateLimiterOptions
	store map[string]*rateState
}

func NewRateLimiter(opts RateLimiterOptions) *RateLimiter {
	return &RateLimiter{
		opts:  opts,
		store: make(map[string]*rateState),
	}
}

func (rl *RateLimiter) entry(userID string) *rateState {
	st, ok := rl.store[userID]
	if !ok {
		st = &rateState{timestamps: make([]time.Time, 0, rl.opts.Threshold)}
		rl.store[userID] = st
	}
	return st
}

// CheckAndRecord evaluates one inbound message from userID at now.
func (rl *RateLimiter) CheckAndRecord(userID string, now time.Time) model.RateDecision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	st := rl.entry(userID)

	if !st.cooldownUntil.IsZero() {
		if now.Before(st.cooldownUntil) {
			return model.RateDecision{
				Reason:            model.RateReasonCooldown,
				CooldownRemaining: st.cooldownUntil.Sub(now),
			}
		}
		st.cooldownUntil = time.Time{}
	}

	// A staff reply just before this message wipes the history once.
	if !st.lastStaffReply.IsZero() && now.Sub(st.lastStaffReply) <= rl.opts.StaffReplyGrace {
		st.timestamps = st.timestamps[:0]
		st.lastStaffReply = time.Time{}
	}

	windowStart := now.Add(-rl.opts.Window)
	filtered := st.timestamps[:0]
	for _, ts := range st.timestamps {
		if ts.After(windowStart) {
			filtered = append(filtered, ts)
		}
	}
	st.timestamps = filtered

	// The message that reaches the threshold is itself rejected.
	if len(st.timestamps)+1 >= rl.opts.Threshold {
		st.cooldownUntil = now.Add(rl.opts.Cooldown)
		st.timestamps = st.timestamps[:0]
		log.Warn().
			Str("userId", userID).
			Time("cooldownUntil", st.cooldownUntil).
			Msg("spam threshold reached, cooldown started")
		return model.RateDecision{
			Reason:            model.RateReasonLimitExceeded,
			CooldownRemaining: rl.opts.Cooldown,
		}
	}

	st.timestamps = append(st.timestamps, now)
	return model.RateDecision{Allowed: true, Reason: model.RateReasonNone}
}

// RecordStaffReply notes that staff answered userID at now.
func (rl *RateLimiter) RecordStaffReply(userID string, now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.entry(userID).lastStaffReply = now
}

// Sweep drops users whose state can no longer influence a decision and
// returns how many were removed.
func (rl *RateLimiter) Sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for userID, st := range rl.store {
		if now.Before(st.cooldownUntil) {
			continue
		}
		if !st.lastStaffReply.IsZero() && now.Sub(st.lastStaffReply) <= rl.opts.StaffReplyGrace {
			continue
		}
		if n := len(st.timestamps); n > 0 && st.timestamps[n-1].After(now.Add(-rl.opts.Window)) {
			continue
		}
		delete(rl.store, userID)
		removed++
	}
	return removed
}

// Tracked returns the number of users with rate state.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.store)
}
