package services

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lottery-draw-system/models"
)

// lockRetryAfterSeconds is sent with 503 responses caused by lock contention.
const lockRetryAfterSeconds = "1"

// Draw handles POST /lottery/draw.
func (s *LotteryService) Draw(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var req models.DrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid JSON",
			"details": err.Error(),
		})
	}
	if req.ActivityID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "activityId is required"})
	}

	resp, err := s.PerformDraw(c.UserContext(), userID, req)
	if err != nil {
		return s.drawError(c, err)
	}
	return c.JSON(resp)
}

// DrawCountEndpoint handles GET /lottery/draw-count/:activityId.
func (s *LotteryService) DrawCountEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	activityID, err := strconv.ParseUint(c.Params("activityId"), 10, 64)
	if err != nil || activityID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid activity id"})
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "since must be RFC3339"})
		}
	}

	resp, err := s.DrawCount(c.UserContext(), userID, uint(activityID), since)
	if err != nil {
		return s.drawError(c, err)
	}
	return c.JSON(resp)
}

func (s *LotteryService) drawError(c *fiber.Ctx, err error) error {
	status := drawErrorStatus(err)
	if status == fiber.StatusInternalServerError {
		s.log.Error("draw request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	if status == fiber.StatusServiceUnavailable {
		c.Set(fiber.HeaderRetryAfter, lockRetryAfterSeconds)
	}
	return c.Status(status).JSON(fiber.Map{"error": errors.Cause(err).Error()})
}

func drawErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidDrawCount):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrMissingUser):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrActivityNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrActivityNotActive), errors.Is(err, ErrActivityOutOfTimeWindow):
		return fiber.StatusConflict
	case errors.Is(err, ErrQuotaExceeded):
		return fiber.StatusForbidden
	case errors.Is(err, ErrConcurrencyExceeded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, ErrLockNotAcquired):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
