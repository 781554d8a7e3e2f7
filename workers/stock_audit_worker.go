package workers

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lottery-draw-system/metrics"
	"lottery-draw-system/models"
)

// PrizeStock is one audited prize: awarded stock against WON records.
type PrizeStock struct {
	PrizeID           uint
	ActivityID        uint
	TotalQuantity     int
	RemainingQuantity int
	Won               int64
}

// Discrepancy is awarded stock minus WON records. Zero when conserved.
func (p PrizeStock) Discrepancy() int64 {
	return int64(p.TotalQuantity-p.RemainingQuantity) - p.Won
}

// StockAuditor checks stock conservation for every prize of ACTIVE
// activities. It never writes.
type StockAuditor struct {
	DB  *gorm.DB
	log *zap.Logger
}

func NewStockAuditor(db *gorm.DB, log *zap.Logger) *StockAuditor {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockAuditor{DB: db, log: log}
}

// Audit returns the prizes whose stock is not conserved and publishes the
// discrepancy gauge for every audited prize.
func (a *StockAuditor) Audit(ctx context.Context) ([]PrizeStock, error) {
	var rows []PrizeStock
	err := a.DB.WithContext(ctx).
		Table("prizes AS p").
		Select("p.id AS prize_id, p.activity_id, p.total_quantity, p.remaining_quantity, COUNT(r.id) AS won").
		Joins("JOIN activities AS a ON a.id = p.activity_id").
		Joins("LEFT JOIN draw_records AS r ON r.prize_id = p.id AND r.outcome = ?", models.DrawOutcomeWon).
		Where("a.status = ?", models.ActivityStatusActive).
		Group("p.id, p.activity_id, p.total_quantity, p.remaining_quantity").
		Order("p.id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "audit prize stock")
	}

	var broken []PrizeStock
	for _, row := range rows {
		diff := row.Discrepancy()
		metrics.SetStockDiscrepancy(row.ActivityID, row.PrizeID, diff)
		if diff != 0 {
			broken = append(broken, row)
			a.log.Error("stock conservation violated",
				zap.Uint("activity_id", row.ActivityID),
				zap.Uint("prize_id", row.PrizeID),
				zap.Int("total", row.TotalQuantity),
				zap.Int("remaining", row.RemainingQuantity),
				zap.Int64("won_records", row.Won),
				zap.Int64("discrepancy", diff))
		}
	}
	return broken, nil
}

// PollStock runs Audit every interval until ctx is done.
func PollStock(ctx context.Context, auditor *StockAuditor, interval time.Duration) {
	auditor.log.Info("stock audit started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			auditor.log.Info("stock audit stopped")
			return
		case <-ticker.C:
			broken, err := auditor.Audit(ctx)
			if err != nil {
				auditor.log.Error("stock audit failed", zap.Error(err))
				continue
			}
			if len(broken) == 0 {
				auditor.log.Debug("stock audit clean")
			}
		}
	}
}
