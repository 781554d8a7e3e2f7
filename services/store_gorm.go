package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lottery-draw-system/models"
)

var errOutOfStock = errors.New("prize out of stock")

// GormStore is the relational DrawStore.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) GetActivity(ctx context.Context, id uint) (*models.Activity, error) {
	var activity models.Activity
	if err := s.DB.WithContext(ctx).First(&activity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, errors.Wrap(err, "load activity")
	}
	return &activity, nil
}

func (s *GormStore) ListAvailablePrizes(ctx context.Context, activityID uint) ([]models.Prize, error) {
	var prizes []models.Prize
	err := s.DB.WithContext(ctx).
		Where("activity_id = ? AND remaining_quantity > 0", activityID).
		Order("sort_order ASC, id ASC").
		Find(&prizes).Error
	if err != nil {
		return nil, errors.Wrap(err, "list available prizes")
	}
	return prizes, nil
}

func (s *GormStore) CountDraws(ctx context.Context, userID string, activityID uint) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.DrawRecord{}).
		Where("user_id = ? AND activity_id = ?", userID, activityID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count draws")
	}
	return count, nil
}

func (s *GormStore) CountDrawsSince(ctx context.Context, userID string, activityID uint, since time.Time) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.DrawRecord{}).
		Where("user_id = ? AND activity_id = ? AND created_at >= ?", userID, activityID, since).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count draws since")
	}
	return count, nil
}

func (s *GormStore) AppendRecord(ctx context.Context, rec *models.DrawRecord) error {
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return errors.Wrap(err, "append draw record")
	}
	return nil
}

func (s *GormStore) CommitWin(ctx context.Context, prizeID uint, rec *models.DrawRecord) (*models.Prize, bool, error) {
	var locked models.Prize

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under a row lock; the caller's snapshot may be stale.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND remaining_quantity > 0", prizeID).
			First(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errOutOfStock
			}
			return err
		}

		result := tx.Model(&models.Prize{}).
			Where("id = ? AND remaining_quantity > 0", prizeID).
			UpdateColumn("remaining_quantity", gorm.Expr("remaining_quantity - 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errOutOfStock
		}

		rec.MarkWon(locked)
		return tx.Create(rec).Error
	})
	if errors.Is(err, errOutOfStock) {
		rec.MarkNoPrize()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "commit win for prize %d", prizeID)
	}

	locked.RemainingQuantity--
	return &locked, true, nil
}
