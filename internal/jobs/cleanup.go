package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper drops per-user rate state that has gone idle.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Counter reports the number of open conversations.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// GaugeSetter receives the open conversation count.
type GaugeSetter interface {
	SetActiveConversations(count int)
}

type CleanupJob struct {
	limiter  Sweeper
	counter  Counter
	gauge    GaugeSetter
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
}

func NewCleanupJob(limiter Sweeper, counter Counter, gauge GaugeSetter, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		limiter:  limiter,
		counter:  counter,
		gauge:    gauge,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if removed := j.limiter.Sweep(j.now()); removed > 0 {
		log.Info().Int("count", removed).Msg("cleaned up idle rate state")
	}

	if j.counter == nil || j.gauge == nil {
		return
	}
	count, err := j.counter.Count(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to count open conversations")
		return
	}
	j.gauge.SetActiveConversations(count)
}
