package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lottery-draw-system/metrics"
	"lottery-draw-system/models"
)

// LotteryService runs draw batches: validate, admit, then one unit draw at a
// time. Batch-fatal errors are only returned before the first record is
// written.
type LotteryService struct {
	store     DrawStore
	selector  *Selector
	quota     *QuotaEnforcer
	inventory *InventoryGuard
	log       *zap.Logger
	now       func() time.Time
}

func NewLotteryService(store DrawStore, selector *Selector, quota *QuotaEnforcer, inventory *InventoryGuard, log *zap.Logger) *LotteryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LotteryService{
		store:     store,
		selector:  selector,
		quota:     quota,
		inventory: inventory,
		log:       log,
		now:       time.Now,
	}
}

// PerformDraw executes req.DrawCount unit draws for userID.
func (s *LotteryService) PerformDraw(ctx context.Context, userID string, req models.DrawRequest) (resp *models.DrawResponse, err error) {
	started := time.Now()
	defer func() {
		metrics.RecordBatch(batchResult(err), started)
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	if req.DrawCount < 1 || req.DrawCount > models.MaxDrawCount {
		return nil, ErrInvalidDrawCount
	}

	activity, err := s.store.GetActivity(ctx, req.ActivityID)
	if err != nil {
		return nil, err
	}
	if !activity.IsActive() {
		return nil, ErrActivityNotActive
	}
	drawTime := s.now()
	if !activity.InWindow(drawTime) {
		return nil, ErrActivityOutOfTimeWindow
	}

	batchID := uuid.NewString()
	log := s.log.With(
		zap.String("batch_id", batchID),
		zap.String("user_id", userID),
		zap.Uint("activity_id", activity.ID),
	)

	admission, err := s.quota.Authorize(ctx, userID, activity, batchID, req.DrawCount)
	if err != nil {
		log.Info("draw batch rejected", zap.Int("draw_count", req.DrawCount), zap.Error(err))
		return nil, err
	}
	defer admission.Release(context.WithoutCancel(ctx))

	results := make([]models.DrawResult, 0, req.DrawCount)
	for i := 1; i <= req.DrawCount; i++ {
		outcome, err := s.drawOne(ctx, userID, activity.ID, batchID, i, drawTime)
		if err != nil {
			// Records already written stay; they are facts.
			log.Error("unit draw failed", zap.Int("draw_index", i), zap.Error(err))
			return nil, err
		}
		results = append(results, outcome.toResult(i))
		admission.Settle(ctx, i)
	}

	log.Info("draw batch completed", zap.Int("draw_count", req.DrawCount), zap.Int("won", countWon(results)))
	return &models.DrawResponse{
		BatchID:      batchID,
		ActivityID:   activity.ID,
		ActivityName: activity.Name,
		TotalDraws:   req.DrawCount,
		DrawTime:     drawTime,
		Results:      results,
	}, nil
}

// drawOne resolves one unit draw and writes exactly one record for it.
func (s *LotteryService) drawOne(ctx context.Context, userID string, activityID uint, batchID string, index int, drawTime time.Time) (UnitOutcome, error) {
	rec := &models.DrawRecord{
		UserID:     userID,
		ActivityID: activityID,
		BatchID:    batchID,
		DrawIndex:  index,
		CreatedAt:  drawTime,
	}

	prizes, err := s.store.ListAvailablePrizes(ctx, activityID)
	if err != nil {
		return nil, errors.Wrap(err, "list available prizes")
	}
	selected, err := s.selector.Select(prizes)
	if err != nil {
		return nil, err
	}
	if selected == nil {
		return s.noPrize(ctx, rec, NoPrizeNotSelected)
	}

	result, prize, err := s.inventory.Commit(ctx, activityID, selected.ID, rec)
	if err != nil {
		return nil, errors.Wrap(err, "commit win")
	}
	switch result {
	case Committed:
		metrics.RecordUnit(string(models.DrawOutcomeWon), "")
		return Won{
			PrizeID:          prize.ID,
			PrizeName:        prize.Name,
			PrizeDescription: prize.Description,
			PrizeImageURL:    prize.ImageURL,
		}, nil
	case LockLost:
		return s.noPrize(ctx, rec, NoPrizeLockLost)
	default:
		return s.noPrize(ctx, rec, NoPrizeExhausted)
	}
}

func (s *LotteryService) noPrize(ctx context.Context, rec *models.DrawRecord, reason NoPrizeReason) (UnitOutcome, error) {
	rec.MarkNoPrize()
	if err := s.store.AppendRecord(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "append no-prize record")
	}
	metrics.RecordUnit(string(models.DrawOutcomeNoPrize), string(reason))
	return NoPrize{Reason: reason}, nil
}

// DrawCount returns how many unit draws userID has made in the activity,
// counting only records at or after since when it is non-zero.
func (s *LotteryService) DrawCount(ctx context.Context, userID string, activityID uint, since time.Time) (*models.DrawCountResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	resp := &models.DrawCountResponse{ActivityID: activityID, UserID: userID}
	if since.IsZero() {
		n, err := s.store.CountDraws(ctx, userID, activityID)
		if err != nil {
			return nil, err
		}
		resp.DrawCount = n
		remaining := max(int64(activity.MaxDrawsPerUser)-n, 0)
		resp.RemainingDraws = &remaining
		return resp, nil
	}

	n, err := s.store.CountDrawsSince(ctx, userID, activityID, since)
	if err != nil {
		return nil, err
	}
	resp.DrawCount = n
	resp.Since = &since
	return resp, nil
}

func countWon(results []models.DrawResult) int {
	n := 0
	for _, r := range results {
		if r.Won {
			n++
		}
	}
	return n
}

func batchResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidDrawCount), errors.Is(err, ErrMissingUser):
		return "invalid"
	case errors.Is(err, ErrActivityNotFound):
		return "not_found"
	case errors.Is(err, ErrActivityNotActive), errors.Is(err, ErrActivityOutOfTimeWindow):
		return "not_drawable"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrConcurrencyExceeded):
		return "concurrency_exceeded"
	case errors.Is(err, ErrLockNotAcquired):
		return "lock_timeout"
	default:
		return "error"
	}
}
