package services

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	token   string
	expires time.Time
}

// MemoryLocker is a process-local Locker with the same lease semantics as
// RedisLocker. It only excludes goroutines of one process.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]lease), now: time.Now}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, held := l.leases[key]; held && now.Before(cur.expires) {
		return "", false, nil
	}
	token := newLockToken()
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, held := l.leases[key]
	if !held || cur.token != token || !l.now().Before(cur.expires) {
		return false, nil
	}
	delete(l.leases, key)
	return true, nil
}
