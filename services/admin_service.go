package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lottery-draw-system/models"
)

// ImageStore publishes prize artwork and returns its public URL.
type ImageStore interface {
	UploadFile(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

// --- Activity management request types ---
type CreatePrizeRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	Probability   decimal.Decimal `json:"probability"`
	TotalQuantity int             `json:"total_quantity"`
	SortOrder     *int            `json:"sort_order,omitempty"`
}

type CreateActivityRequest struct {
	Name               string                `json:"name"`
	Description        string                `json:"description,omitempty"`
	StartTime          time.Time             `json:"start_time"`
	EndTime            time.Time             `json:"end_time"`
	MaxDrawsPerUser    int                   `json:"max_draws_per_user"`
	MaxConcurrentDraws int                   `json:"max_concurrent_draws"`
	Status             models.ActivityStatus `json:"status,omitempty"`
	Prizes             []CreatePrizeRequest  `json:"prizes"`
}

type UpdateStatusRequest struct {
	Status models.ActivityStatus `json:"status"`
}

// UpdateActivityRequest changes only the fields that are set.
type UpdateActivityRequest struct {
	Name               *string    `json:"name,omitempty"`
	Description        *string    `json:"description,omitempty"`
	StartTime          *time.Time `json:"start_time,omitempty"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	MaxDrawsPerUser    *int       `json:"max_draws_per_user,omitempty"`
	MaxConcurrentDraws *int       `json:"max_concurrent_draws,omitempty"`
}

// ActivityPage is one zero-based page of activities.
type ActivityPage struct {
	Items []models.Activity `json:"items"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
	Total int64             `json:"total"`
}

const maxPageSize = 100

// AdminService owns activity and prize rows. The draw engine only reads them,
// except for the stock column it decrements.
type AdminService struct {
	DB     *gorm.DB
	images ImageStore
	log    *zap.Logger
	now    func() time.Time
}

// NewAdminService wires the management layer. images may be nil, which
// disables prize image uploads.
func NewAdminService(db *gorm.DB, images ImageStore, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{DB: db, images: images, log: log, now: time.Now}
}

// Create validates req and stores the activity together with its prizes.
func (s *AdminService) Create(ctx context.Context, req CreateActivityRequest) (*models.Activity, error) {
	if err := validateActivityRequest(req); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.ActivityStatusDraft
	}
	activity := models.Activity{
		Name:               strings.TrimSpace(req.Name),
		Slug:               activitySlug(req.Name),
		Description:        req.Description,
		Status:             status,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		MaxDrawsPerUser:    req.MaxDrawsPerUser,
		MaxConcurrentDraws: req.MaxConcurrentDraws,
	}
	for i, p := range req.Prizes {
		order := i
		if p.SortOrder != nil {
			order = *p.SortOrder
		}
		activity.Prizes = append(activity.Prizes, models.Prize{
			Name:              strings.TrimSpace(p.Name),
			Description:       p.Description,
			ImageURL:          p.ImageURL,
			Probability:       p.Probability.Round(2),
			TotalQuantity:     p.TotalQuantity,
			RemainingQuantity: p.TotalQuantity,
			SortOrder:         order,
		})
	}

	if err := s.DB.WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, errors.Wrap(err, "create activity")
	}
	s.log.Info("activity created",
		zap.Uint("activity_id", activity.ID),
		zap.String("slug", activity.Slug),
		zap.Int("prizes", len(activity.Prizes)))
	return &activity, nil
}

func validateActivityRequest(req CreateActivityRequest) error {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return errors.Wrap(ErrInvalidActivity, "name is required")
	case len(name) > 100:
		return errors.Wrap(ErrInvalidActivity, "name too long (max 100 characters)")
	case req.StartTime.IsZero() || req.EndTime.IsZero():
		return errors.Wrap(ErrInvalidActivity, "start_time and end_time are required")
	case req.EndTime.Before(req.StartTime):
		return errors.Wrap(ErrInvalidActivity, "end time must be after start time")
	case req.MaxDrawsPerUser < 1:
		return errors.Wrap(ErrInvalidActivity, "max_draws_per_user must be at least 1")
	case req.MaxConcurrentDraws < 1:
		return errors.Wrap(ErrInvalidActivity, "max_concurrent_draws must be at least 1")
	case req.Status != "" && !req.Status.Valid():
		return errors.Wrapf(ErrInvalidActivity, "unknown status %q", req.Status)
	}

	prizes := make([]models.Prize, 0, len(req.Prizes))
	for i, p := range req.Prizes {
		if err := validatePrizeRequest(p); err != nil {
			return errors.Wrapf(err, "prize %d", i)
		}
		prizes = append(prizes, models.Prize{Probability: p.Probability.Round(2)})
	}
	return ValidateProbabilitySum(prizes)
}

// validatePrizeRequest checks the values as they will be stored, so the
// probability is checked after rounding to two decimals.
func validatePrizeRequest(p CreatePrizeRequest) error {
	probability := p.Probability.Round(2)
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.Wrap(ErrInvalidPrize, "name is required")
	case len(strings.TrimSpace(p.Name)) > 100:
		return errors.Wrap(ErrInvalidPrize, "name too long (max 100 characters)")
	case !probability.IsPositive() || probability.GreaterThan(hundred):
		return errors.Wrap(ErrInvalidPrize, "probability must be in (0, 100] at two decimals")
	case p.TotalQuantity < 0:
		return errors.Wrap(ErrInvalidPrize, "total_quantity must not be negative")
	}
	return nil
}

// activitySlug derives a URL-safe unique slug from the activity name.
func activitySlug(name string) string {
	base := slug.Make(name)
	if base == "" {
		base = "activity"
	}
	if len(base) > 120 {
		base = strings.TrimRight(base[:120], "-")
	}
	return base + "-" + uuid.NewString()[:8]
}

// Find loads an activity with its prizes in display order.
func (s *AdminService) Find(ctx context.Context, id uint) (*models.Activity, error) {
	var activity models.Activity
	err := s.DB.WithContext(ctx).
		Preload("Prizes", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		First(&activity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load activity")
	}
	return &activity, nil
}

// ListDrawable returns ACTIVE activities whose window contains now.
func (s *AdminService) ListDrawable(ctx context.Context) ([]models.Activity, error) {
	now := s.now()
	var activities []models.Activity
	err := s.DB.WithContext(ctx).
		Preload("Prizes", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Where("status = ? AND start_time <= ? AND end_time >= ?", models.ActivityStatusActive, now, now).
		Order("start_time ASC").
		Find(&activities).Error
	if err != nil {
		return nil, errors.Wrap(err, "list drawable activities")
	}
	return activities, nil
}

// SetStatus moves an activity to status. ENDED is terminal.
func (s *AdminService) SetStatus(ctx context.Context, id uint, status models.ActivityStatus) (*models.Activity, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(ErrInvalidActivity, "unknown status %q", status)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var activity models.Activity
		if err := tx.First(&activity, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrActivityNotFound
			}
			return err
		}
		if activity.Status == models.ActivityStatusEnded && status != models.ActivityStatusEnded {
			return errors.Wrap(ErrInvalidActivity, "an ended activity cannot be reopened")
		}
		return tx.Model(&activity).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("activity status updated", zap.Uint("activity_id", id), zap.String("status", string(status)))
	return s.Find(ctx, id)
}

// Update applies req to an activity that has not ended and re-checks the
// resulting row.
func (s *AdminService) Update(ctx context.Context, id uint, req UpdateActivityRequest) (*models.Activity, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := lockActivity(tx, id)
		if err != nil {
			return err
		}
		if activity.Status == models.ActivityStatusEnded {
			return errors.Wrap(ErrInvalidActivity, "an ended activity cannot be changed")
		}

		if req.Name != nil {
			activity.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			activity.Description = *req.Description
		}
		if req.StartTime != nil {
			activity.StartTime = *req.StartTime
		}
		if req.EndTime != nil {
			activity.EndTime = *req.EndTime
		}
		if req.MaxDrawsPerUser != nil {
			activity.MaxDrawsPerUser = *req.MaxDrawsPerUser
		}
		if req.MaxConcurrentDraws != nil {
			activity.MaxConcurrentDraws = *req.MaxConcurrentDraws
		}

		if err := validateActivityRequest(CreateActivityRequest{
			Name:               activity.Name,
			StartTime:          activity.StartTime,
			EndTime:            activity.EndTime,
			MaxDrawsPerUser:    activity.MaxDrawsPerUser,
			MaxConcurrentDraws: activity.MaxConcurrentDraws,
		}); err != nil {
			return err
		}
		return tx.Save(activity).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("activity updated", zap.Uint("activity_id", id))
	return s.Find(ctx, id)
}

// List returns one zero-based page of all activities, oldest first.
func (s *AdminService) List(ctx context.Context, page, size int) (*ActivityPage, error) {
	if page < 0 || size < 1 {
		return nil, errors.Wrapf(ErrInvalidActivity, "invalid page %d size %d", page, size)
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	result := &ActivityPage{Items: []models.Activity{}, Page: page, Size: size}
	db := s.DB.WithContext(ctx)
	if err := db.Model(&models.Activity{}).Count(&result.Total).Error; err != nil {
		return nil, errors.Wrap(err, "count activities")
	}
	err := db.
		Preload("Prizes", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Order("id ASC").
		Offset(page * size).
		Limit(size).
		Find(&result.Items).Error
	if err != nil {
		return nil, errors.Wrap(err, "list activities")
	}
	return result, nil
}

// lockActivity re-reads the activity row under a row lock inside tx.
func lockActivity(tx *gorm.DB, id uint) (*models.Activity, error) {
	var activity models.Activity
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&activity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load activity")
	}
	return &activity, nil
}

// AttachPrizeImage uploads the file and stores its URL on the prize.
func (s *AdminService) AttachPrizeImage(ctx context.Context, prizeID uint, fileHeader *multipart.FileHeader) (*models.Prize, error) {
	if s.images == nil {
		return nil, ErrImageStoreDisabled
	}

	var prize models.Prize
	if err := s.DB.WithContext(ctx).First(&prize, prizeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrizeNotFound
		}
		return nil, errors.Wrap(err, "load prize")
	}

	key := fmt.Sprintf("prizes/%d/%s%s", prize.ActivityID, uuid.NewString(), strings.ToLower(filepath.Ext(fileHeader.Filename)))
	url, err := s.images.UploadFile(ctx, fileHeader, key)
	if err != nil {
		return nil, errors.Wrap(err, "upload prize image")
	}
	if err := s.DB.WithContext(ctx).Model(&prize).Update("image_url", url).Error; err != nil {
		return nil, errors.Wrap(err, "save prize image url")
	}
	prize.ImageURL = url
	return &prize, nil
}

// EndExpiredActivities moves ACTIVE activities whose window has closed to
// ENDED and returns how many changed.
func (s *AdminService) EndExpiredActivities(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.Activity{}).
		Where("status = ? AND end_time < ?", models.ActivityStatusActive, s.now()).
		Update("status", models.ActivityStatusEnded)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "end expired activities")
	}
	return res.RowsAffected, nil
}

// --- fiber endpoints ---

// CreateActivity handles POST /admin/activities.
func (s *AdminService) CreateActivity(c *fiber.Ctx) error {
	var req CreateActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid JSON",
			"details": err.Error(),
		})
	}
	activity, err := s.Create(c.UserContext(), req)
	if err != nil {
		return s.adminError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(activity)
}

// GetActivity handles GET /admin/activities/:id.
func (s *AdminService) GetActivity(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid activity id"})
	}
	activity, err := s.Find(c.UserContext(), id)
	if err != nil {
		return s.adminError(c, err)
	}
	return c.JSON(activity)
}

// UpdateActivity handles PUT /admin/activities/:id.
func (s *AdminService) UpdateActivity(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid activity id"})
	}
	var req UpdateActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid JSON",
			"details": err.Error(),
		})
	}
	activity, err := s.Update(c.UserContext(), id, req)
	if err != nil {
		return s.adminError(c, err)
	}
	return c.JSON(activity)
}

// ListActivities handles GET /admin/activities?page=0&size=10.
func (s *AdminService) ListActivities(c *fiber.Ctx) error {
	page, err := strconv.Atoi(c.Query("page", "0"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid page"})
	}
	size, err := strconv.Atoi(c.Query("size", "10"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid size"})
	}
	result, err := s.List(c.UserContext(), page, size)
	if err != nil {
		return s.adminError(c, err)
	}
	return c.JSON(result)
}

// GetDrawableActivities handles GET /lottery/activities.
func (s *AdminService) GetDrawableActivities(c *fiber.Ctx) error {
	activities, err := s.ListDrawable(c.UserContext())
	if err != nil {
		return s.adminError(c, err)
	}
	return c.JSON(activities)
}

// UpdateActivityStatus handles PATCH /admin/activities/:id/status.
func (s *AdminService) UpdateActivityStatus(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid activity id"})
	}
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid JSON",
			"details": err.Error(),
		})
	}
	activity, err := s.SetStatus(c.UserContext(), id, models.ActivityStatus(strings.ToUpper(string(req.Status))))
	if err != nil {
		return s.adminError(c, err)
	}
	return c.JSON(activity)
}

// UploadPrizeImage handles POST /admin/prizes/:id/image (multipart field "image").
func (s *AdminService) UploadPrizeImage(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid prize id"})
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image file is required"})
	}
	prize, err := s.AttachPrizeImage(c.UserContext(), id, fileHeader)
	if err != nil {
		return s.adminError(c, err)
	}
	return c.JSON(prize)
}

func (s *AdminService) adminError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidActivity), errors.Is(err, ErrInvalidPrize), errors.Is(err, ErrProbabilityOverflow):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrActivityNotFound), errors.Is(err, ErrPrizeNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrImageStoreDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		s.log.Error("admin request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}
