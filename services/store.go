package services

import (
	"context"
	"time"

	"lottery-draw-system/models"
)

// ActivityReader loads activities owned by the admin layer.
type ActivityReader interface {
	GetActivity(ctx context.Context, id uint) (*models.Activity, error)
}

// PrizeReader lists prizes with stock left, in display order.
type PrizeReader interface {
	ListAvailablePrizes(ctx context.Context, activityID uint) ([]models.Prize, error)
}

// RecordStore appends and counts draw records.
type RecordStore interface {
	CountDraws(ctx context.Context, userID string, activityID uint) (int64, error)
	CountDrawsSince(ctx context.Context, userID string, activityID uint, since time.Time) (int64, error)
	AppendRecord(ctx context.Context, rec *models.DrawRecord) error
}

// InventoryStore commits a win atomically.
type InventoryStore interface {
	// CommitWin decrements the prize stock by one and appends rec as a WON
	// record for it, in one transaction. ok is false, and nothing is written,
	// when the prize has no stock left.
	CommitWin(ctx context.Context, prizeID uint, rec *models.DrawRecord) (prize *models.Prize, ok bool, err error)
}

// DrawStore is everything the draw engine reads and writes.
type DrawStore interface {
	ActivityReader
	PrizeReader
	RecordStore
	InventoryStore
}
