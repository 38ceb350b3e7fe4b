package model

import (
	"math"
	"time"
)

type RateDecision struct {
	Allowed           bool
	Reason            RateReason
	CooldownRemaining time.Duration
}

// RemainingSeconds rounds the cooldown remainder up to whole seconds.
func (d RateDecision) RemainingSeconds() int {
	if d.CooldownRemaining <= 0 {
		return 0
	}
	return int(math.Ceil(d.CooldownRemaining.Seconds()))
}
