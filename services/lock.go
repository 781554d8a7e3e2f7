package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lottery-draw-system/metrics"
)

// Locker is a compare-and-swap lease store.
type Locker interface {
	// TryAcquire sets key to a fresh ownership token if absent, expiring after
	// ttl. ok is false when someone else holds the key.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release deletes key only if it still holds token.
	Release(ctx context.Context, key, token string) (bool, error)
}

// LockClass bounds one family of critical sections.
type LockClass struct {
	Name        string
	TTL         time.Duration
	WaitTimeout time.Duration
	RetryDelay  time.Duration
}

// Guard runs fn protected by key, or unprotected, depending on the strategy
// picked at startup.
type Guard interface {
	Run(ctx context.Context, key string, class LockClass, fn func(ctx context.Context) error) error
}

// NewGuard returns a LockCoordinator over locker, or Unguarded when locker is
// nil. The unguarded strategy keeps single-process deployments running but
// gives up every cross-process mutual exclusion guarantee.
func NewGuard(locker Locker, log *zap.Logger) Guard {
	if locker == nil {
		log.Warn("distributed lock disabled: critical sections run unguarded, cross-process exclusion is forfeited")
		return Unguarded{}
	}
	return NewLockCoordinator(locker, log)
}

// Unguarded runs every section directly.
type Unguarded struct{}

func (Unguarded) Run(ctx context.Context, _ string, _ LockClass, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// LockCoordinator acquires a lease, runs fn and always tries to release.
type LockCoordinator struct {
	locker Locker
	log    *zap.Logger
}

func NewLockCoordinator(locker Locker, log *zap.Logger) *LockCoordinator {
	return &LockCoordinator{locker: locker, log: log}
}

func (c *LockCoordinator) Run(ctx context.Context, key string, class LockClass, fn func(ctx context.Context) error) error {
	return c.WithLock(ctx, key, class, fn)
}

// WithLock blocks until key is acquired or class.WaitTimeout elapses, in which
// case it returns ErrLockNotAcquired. The lease is released on success, error
// and panic alike.
func (c *LockCoordinator) WithLock(ctx context.Context, key string, class LockClass, fn func(ctx context.Context) error) error {
	token, err := c.acquire(ctx, key, class)
	if err != nil {
		metrics.RecordLock(class.Name, "timeout")
		return err
	}
	metrics.RecordLock(class.Name, "acquired")

	defer func() {
		released, rerr := c.locker.Release(context.WithoutCancel(ctx), key, token)
		switch {
		case rerr != nil:
			c.log.Error("lock release failed", zap.String("key", key), zap.Error(rerr))
		case !released:
			// The lease expired and may now belong to another holder.
			c.log.Warn("lock lease lost before release", zap.String("key", key), zap.Duration("ttl", class.TTL))
		}
	}()

	return fn(ctx)
}

func (c *LockCoordinator) acquire(ctx context.Context, key string, class LockClass) (string, error) {
	deadline := time.Now().Add(class.WaitTimeout)
	delay := class.RetryDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}

	for {
		token, ok, err := c.locker.TryAcquire(ctx, key, class.TTL)
		if err != nil {
			return "", errors.Wrapf(ErrLockNotAcquired, "%s: %v", key, err)
		}
		if ok {
			return token, nil
		}
		if !time.Now().Add(delay).Before(deadline) {
			return "", errors.Wrapf(ErrLockNotAcquired, "%s: wait timeout %s", key, class.WaitTimeout)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", errors.Wrapf(ErrLockNotAcquired, "%s: %v", key, ctx.Err())
		case <-timer.C:
		}
	}
}

func newLockToken() string {
	return uuid.NewString()
}
