// models/activity.go
package models

import (
	"time"
)

// ActivityStatus is the lifecycle state of a lottery activity.
type ActivityStatus string

const (
	ActivityStatusDraft  ActivityStatus = "DRAFT"
	ActivityStatusActive ActivityStatus = "ACTIVE"
	ActivityStatusPaused ActivityStatus = "PAUSED"
	ActivityStatusEnded  ActivityStatus = "ENDED"
)

// Valid reports whether s is one of the known statuses.
func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityStatusDraft, ActivityStatusActive, ActivityStatusPaused, ActivityStatusEnded:
		return true
	}
	return false
}

// Activity is a lottery campaign owning a pool of prizes.
// The draw engine only reads it; the admin layer owns every column.
type Activity struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"size:100;not null" json:"name"`
	Slug               string         `gorm:"size:140;uniqueIndex" json:"slug"`
	Description        string         `gorm:"size:500" json:"description"`
	Status             ActivityStatus `gorm:"size:16;not null;default:'DRAFT';index" json:"status"`
	StartTime          time.Time      `gorm:"not null" json:"start_time"`
	EndTime            time.Time      `gorm:"not null" json:"end_time"`
	MaxDrawsPerUser    int            `gorm:"not null" json:"max_draws_per_user"`
	MaxConcurrentDraws int            `gorm:"not null" json:"max_concurrent_draws"`
	Prizes             []Prize        `gorm:"foreignKey:ActivityID" json:"prizes,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// IsActive reports whether the activity status allows draws.
func (a *Activity) IsActive() bool {
	return a.Status == ActivityStatusActive
}

// InWindow reports whether now falls inside [StartTime, EndTime].
func (a *Activity) InWindow(now time.Time) bool {
	return !now.Before(a.StartTime) && !now.After(a.EndTime)
}
