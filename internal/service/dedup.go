package service

import "sync"

// Deduper remembers the most recent event IDs in a fixed-size FIFO so that
// redelivered platform events are processed once.
type Deduper struct {
	mu       sync.Mutex
	capacity int
	ring     []string
	next     int
	seen     map[string]struct{}
}

func NewDeduper(capacity int) *Deduper {
	if capacity < 1 {
		capacity = 1
	}
	return &Deduper{
		capacity: capacity,
		ring:     make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// Seen reports whether id was already recorded, recording it if not.
func (d *Deduper) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if len(d.ring) < d.capacity {
		d.ring = append(d.ring, id)
	} else {
		delete(d.seen, d.ring[d.next])
		d.ring[d.next] = id
		d.next = (d.next + 1) % d.capacity
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
