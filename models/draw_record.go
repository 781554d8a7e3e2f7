package models

import "time"

// DrawOutcome is the result of a single unit draw.
type DrawOutcome string

const (
	DrawOutcomeWon     DrawOutcome = "WON"
	DrawOutcomeNoPrize DrawOutcome = "NO_PRIZE"
)

// NoPrizeName is stamped on NO_PRIZE records.
const NoPrizeName = "No Prize"

// DrawRecord is an append-only fact, written exactly once per unit draw.
// A WON record keeps the prize details as they were at draw time.
type DrawRecord struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	UserID           string      `gorm:"size:64;not null;index:idx_draw_user_activity,priority:1" json:"user_id"`
	ActivityID       uint        `gorm:"not null;index:idx_draw_user_activity,priority:2;index:idx_draw_activity_time,priority:1" json:"activity_id"`
	BatchID          string      `gorm:"size:64;not null;index" json:"batch_id"`
	DrawIndex        int         `gorm:"not null" json:"draw_index"`
	PrizeID          *uint       `gorm:"index" json:"prize_id,omitempty"`
	PrizeName        string      `gorm:"size:100" json:"prize_name"`
	PrizeDescription string      `gorm:"size:500" json:"prize_description,omitempty"`
	PrizeImageURL    string      `gorm:"type:text" json:"prize_image_url,omitempty"`
	Outcome          DrawOutcome `gorm:"size:16;not null" json:"outcome"`
	CreatedAt        time.Time   `gorm:"index:idx_draw_activity_time,priority:2" json:"created_at"`
}

// MarkWon stamps the record as a win of p, snapshotting the prize details.
func (r *DrawRecord) MarkWon(p Prize) {
	id := p.ID
	r.PrizeID = &id
	r.PrizeName = p.Name
	r.PrizeDescription = p.Description
	r.PrizeImageURL = p.ImageURL
	r.Outcome = DrawOutcomeWon
}

// MarkNoPrize stamps the record as a draw that gave nothing.
func (r *DrawRecord) MarkNoPrize() {
	r.PrizeID = nil
	r.PrizeName = NoPrizeName
	r.PrizeDescription = ""
	r.PrizeImageURL = ""
	r.Outcome = DrawOutcomeNoPrize
}
