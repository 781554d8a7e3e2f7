package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Prize belongs to exactly one Activity. Probability is a percentage with
// two-decimal precision in (0, 100].
//
// RemainingQuantity is only ever mutated by the inventory commit path.
type Prize struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ActivityID        uint            `gorm:"not null;index" json:"activity_id"`
	Name              string          `gorm:"size:100;not null" json:"name"`
	Description       string          `gorm:"size:500" json:"description"`
	ImageURL          string          `gorm:"type:text" json:"image_url"`
	Probability       decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"probability"`
	TotalQuantity     int             `gorm:"not null" json:"total_quantity"`
	RemainingQuantity int             `gorm:"not null" json:"remaining_quantity"`
	SortOrder         int             `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
