package services

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lottery-draw-system/models"
)

// CommitResult is the inventory verdict for one selected prize.
type CommitResult int

const (
	Committed CommitResult = iota
	// Exhausted is a normal business outcome, not a fault.
	Exhausted
	// LockLost means the win could not be safely confirmed. It is treated as
	// Exhausted by callers.
	LockLost
)

// InventoryGuard performs the verify-and-decrement of a selected prize under
// the activity-scoped lock.
type InventoryGuard struct {
	store InventoryStore
	guard Guard
	class LockClass
	log   *zap.Logger
}

func NewInventoryGuard(store InventoryStore, guard Guard, class LockClass, log *zap.Logger) *InventoryGuard {
	if log == nil {
		log = zap.NewNop()
	}
	return &InventoryGuard{store: store, guard: guard, class: class, log: log}
}

// Commit tries to award prizeID. On Committed, rec has been written as the WON
// record in the same transaction as the decrement, and the returned prize is
// the snapshot at commit time. A lost race never falls through to another
// prize.
func (g *InventoryGuard) Commit(ctx context.Context, activityID, prizeID uint, rec *models.DrawRecord) (CommitResult, *models.Prize, error) {
	result := Exhausted
	var snapshot *models.Prize

	err := g.guard.Run(ctx, PrizeDrawLockKey(activityID), g.class, func(ctx context.Context) error {
		prize, ok, err := g.store.CommitWin(ctx, prizeID, rec)
		if err != nil {
			return err
		}
		if ok {
			result = Committed
			snapshot = prize
		}
		return nil
	})
	if errors.Is(err, ErrLockNotAcquired) {
		g.log.Warn("inventory lock not acquired, unit draw downgraded to no prize",
			zap.Uint("activity_id", activityID), zap.Uint("prize_id", prizeID), zap.Error(err))
		return LockLost, nil, nil
	}
	if err != nil {
		return Exhausted, nil, err
	}
	return result, snapshot, nil
}
