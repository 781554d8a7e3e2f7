package services

import (
	"context"
	"sync"
	"time"
)

// SlotTracker keeps weighted, expiring holds under a key. It backs both the
// per-activity in-flight batch count and the quota reserved by running
// batches. Holds expire so a crashed process cannot pin them forever.
type SlotTracker interface {
	// Total sums the weights of the live holds under key.
	Total(ctx context.Context, key string) (int64, error)
	Hold(ctx context.Context, key, member string, weight int64, ttl time.Duration) error
	Drop(ctx context.Context, key, member string) error
}

type slot struct {
	weight  int64
	expires time.Time
}

// MemorySlotTracker is the process-local SlotTracker.
type MemorySlotTracker struct {
	mu    sync.Mutex
	slots map[string]map[string]slot
	now   func() time.Time
}

func NewMemorySlotTracker() *MemorySlotTracker {
	return &MemorySlotTracker{slots: make(map[string]map[string]slot), now: time.Now}
}

func (t *MemorySlotTracker) Total(_ context.Context, key string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var total int64
	for member, s := range t.slots[key] {
		if !now.Before(s.expires) {
			delete(t.slots[key], member)
			continue
		}
		total += s.weight
	}
	return total, nil
}

func (t *MemorySlotTracker) Hold(_ context.Context, key, member string, weight int64, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.slots[key]
	if !ok {
		members = make(map[string]slot)
		t.slots[key] = members
	}
	members[member] = slot{weight: weight, expires: t.now().Add(ttl)}
	return nil
}

func (t *MemorySlotTracker) Drop(_ context.Context, key, member string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.slots[key], member)
	if len(t.slots[key]) == 0 {
		delete(t.slots, key)
	}
	return nil
}
