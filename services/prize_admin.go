package services

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lottery-draw-system/models"
)

// Prize changes lock the owning activity row first, so concurrent edits of one
// pool cannot push its probability sum past 100.

// AddPrize appends a prize to the activity pool with full stock.
func (s *AdminService) AddPrize(ctx context.Context, activityID uint, req CreatePrizeRequest) (*models.Prize, error) {
	if err := validatePrizeRequest(req); err != nil {
		return nil, err
	}

	var prize models.Prize
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockActivity(tx, activityID); err != nil {
			return err
		}
		siblings, err := poolProbabilities(tx, activityID, 0)
		if err != nil {
			return err
		}
		probability := req.Probability.Round(2)
		if err := ValidateProbabilitySum(append(siblings, models.Prize{Probability: probability})); err != nil {
			return err
		}

		order := len(siblings)
		if req.SortOrder != nil {
			order = *req.SortOrder
		}
		prize = models.Prize{
			ActivityID:        activityID,
			Name:              strings.TrimSpace(req.Name),
			Description:       req.Description,
			ImageURL:          req.ImageURL,
			Probability:       probability,
			TotalQuantity:     req.TotalQuantity,
			RemainingQuantity: req.TotalQuantity,
			SortOrder:         order,
		}
		return tx.Create(&prize).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("prize added", zap.Uint("activity_id", activityID), zap.Uint("prize_id", prize.ID))
	return &prize, nil
}

// ListPrizes returns the activity pool in display order.
func (s *AdminService) ListPrizes(ctx context.Context, activityID uint) ([]models.Prize, error) {
	db := s.DB.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Activity{}).Where("id = ?", activityID).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "load activity")
	}
	if count == 0 {
		return nil, ErrActivityNotFound
	}

	prizes := []models.Prize{}
	if err := db.Where("activity_id = ?", activityID).Order("sort_order ASC, id ASC").Find(&prizes).Error; err != nil {
		return nil, errors.Wrap(err, "list prizes")
	}
	return prizes, nil
}

// UpdatePrize replaces the prize definition. Units already awarded stay
// awarded: the new total must cover them, and remaining becomes total minus
// awarded.
func (s *AdminService) UpdatePrize(ctx context.Context, activityID, prizeID uint, req CreatePrizeRequest) (*models.Prize, error) {
	if err := validatePrizeRequest(req); err != nil {
		return nil, err
	}

	var prize *models.Prize
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockActivity(tx, activityID); err != nil {
			return err
		}
		p, err := lockPrize(tx, activityID, prizeID)
		if err != nil {
			return err
		}

		awarded := p.TotalQuantity - p.RemainingQuantity
		if req.TotalQuantity < awarded {
			return errors.Wrapf(ErrInvalidPrize, "total_quantity %d is below the %d units already awarded", req.TotalQuantity, awarded)
		}
		siblings, err := poolProbabilities(tx, activityID, prizeID)
		if err != nil {
			return err
		}
		probability := req.Probability.Round(2)
		if err := ValidateProbabilitySum(append(siblings, models.Prize{Probability: probability})); err != nil {
			return err
		}

		p.Name = strings.TrimSpace(req.Name)
		p.Description = req.Description
		p.ImageURL = req.ImageURL
		p.Probability = probability
		p.TotalQuantity = req.TotalQuantity
		p.RemainingQuantity = req.TotalQuantity - awarded
		if req.SortOrder != nil {
			p.SortOrder = *req.SortOrder
		}
		prize = p
		return tx.Save(p).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("prize updated", zap.Uint("activity_id", activityID), zap.Uint("prize_id", prizeID))
	return prize, nil
}

// DeletePrize removes a prize that has never been awarded. Awarded prizes are
// referenced by WON records and stay in the pool.
func (s *AdminService) DeletePrize(ctx context.Context, activityID, prizeID uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockActivity(tx, activityID); err != nil {
			return err
		}
		p, err := lockPrize(tx, activityID, prizeID)
		if err != nil {
			return err
		}
		if p.RemainingQuantity != p.TotalQuantity {
			return errors.Wrapf(ErrInvalidPrize, "prize %d has already been awarded", prizeID)
		}
		return tx.Delete(p).Error
	})
	if err != nil {
		return err
	}
	s.log.Info("prize deleted", zap.Uint("activity_id", activityID), zap.Uint("prize_id", prizeID))
	return nil
}

func lockPrize(tx *gorm.DB, activityID, prizeID uint) (*models.Prize, error) {
	var prize models.Prize
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&prize, prizeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPrizeNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load prize")
	}
	if prize.ActivityID != activityID {
		return nil, errors.Wrapf(ErrPrizeNotFound, "prize %d does not belong to activity %d", prizeID, activityID)
	}
	return &prize, nil
}

// poolProbabilities loads the probabilities of the activity pool, leaving out
// exclude when it is non-zero.
func poolProbabilities(tx *gorm.DB, activityID, exclude uint) ([]models.Prize, error) {
	var prizes []models.Prize
	q := tx.Select("id", "probability").Where("activity_id = ?", activityID)
	if exclude != 0 {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Find(&prizes).Error; err != nil {
		return nil, errors.Wrap(err, "load prize pool")
	}
	return prizes, nil
}

// --- fiber endpoints ---

// CreatePrize handles POST /admin/activities/:id/prizes.
func (s *AdminService) CreatePrize(c *fiber.Ctx) error {
	activityID, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid activity id"})
	}
	var req CreatePrizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid JSON",
			"details": err.Error(),
		})
	}
	prize, err := s.AddPrize(c.UserContext(), activityID, req)
	if err != nil {
		return s.adminError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(prize)
}

// GetPrizes handles GET /admin/activities/:id/prizes.
func (s *AdminService) GetPrizes(c *fiber.Ctx) error {
	activityID, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid activity id"})
	}
	prizes, err := s.ListPrizes(c.UserContext(), activityID)
	if err != nil {
		return s.adminError(c, err)
	}
	return c.JSON(prizes)
}

// ReplacePrize handles PUT /admin/activities/:id/prizes/:prizeId.
func (s *AdminService) ReplacePrize(c *fiber.Ctx) error {
	activityID, prizeID, err := prizePath(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	var req CreatePrizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid JSON",
			"details": err.Error(),
		})
	}
	prize, err := s.UpdatePrize(c.UserContext(), activityID, prizeID, req)
	if err != nil {
		return s.adminError(c, err)
	}
	return c.JSON(prize)
}

// RemovePrize handles DELETE /admin/activities/:id/prizes/:prizeId.
func (s *AdminService) RemovePrize(c *fiber.Ctx) error {
	activityID, prizeID, err := prizePath(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.DeletePrize(c.UserContext(), activityID, prizeID); err != nil {
		return s.adminError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func prizePath(c *fiber.Ctx) (uint, uint, error) {
	activityID, err := parseID(c.Params("id"))
	if err != nil {
		return 0, 0, errors.New("invalid activity id")
	}
	prizeID, err := parseID(c.Params("prizeId"))
	if err != nil {
		return 0, 0, errors.New("invalid prize id")
	}
	return activityID, prizeID, nil
}
