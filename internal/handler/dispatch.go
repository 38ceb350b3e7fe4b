package handler

import (
	"context"
	"sync"

	"github.com/openclaw/modmail-relay-go/internal/platform"
)

// EventHandler handles translated platform events.
type EventHandler interface {
	HandleMessage(ctx context.Context, ev platform.MessageEvent)
	HandleInteraction(ctx context.Context, in platform.Interaction)
}

type queuedMessage struct {
	ctx context.Context
	ev  platform.MessageEvent
}

// Dispatcher hands gateway events to the next handler without blocking the
// caller. Messages with the same ordering key run one at a time in submission
// order; different keys run concurrently. The caller must submit in arrival
// order.
type Dispatcher struct {
	next EventHandler

	mu     sync.Mutex
	queues map[string][]queuedMessage
	wg     sync.WaitGroup
}

func NewDispatcher(next EventHandler) *Dispatcher {
	return &Dispatcher{
		next:   next,
		queues: make(map[string][]queuedMessage),
	}
}

// HandleMessage queues ev behind earlier messages with the same key.
func (d *Dispatcher) HandleMessage(ctx context.Context, ev platform.MessageEvent) {
	key := orderingKey(ev)

	d.mu.Lock()
	queue, running := d.queues[key]
	d.queues[key] = append(queue, queuedMessage{ctx: ctx, ev: ev})
	if !running {
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if !running {
		go d.drain(key)
	}
}

// HandleInteraction runs in its own goroutine. Interactions carry no relay
// order.
func (d *Dispatcher) HandleInteraction(ctx context.Context, in platform.Interaction) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.next.HandleInteraction(ctx, in)
	}()
}

// Wait blocks until every queued event has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// drain runs the queue for key until it is empty. The key stays in the map
// while a worker owns it.
func (d *Dispatcher) drain(key string) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		item := queue[0]
		queue[0] = queuedMessage{}
		d.queues[key] = queue[1:]
		d.mu.Unlock()

		d.next.HandleMessage(item.ctx, item.ev)
	}
}

// orderingKey serializes a user's direct messages, and messages within one
// staff channel or ticket thread.
func orderingKey(ev platform.MessageEvent) string {
	if ev.IsDM {
		return "user:" + ev.Author.ID
	}
	return "channel:" + ev.ChannelID
}
