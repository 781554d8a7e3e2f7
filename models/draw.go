package models

import "time"

// MaxDrawCount caps the unit draws one batch request may ask for.
const MaxDrawCount = 10

// DrawRequest is the batch draw payload. The caller identity comes from the
// gateway, never from the body.
type DrawRequest struct {
	ActivityID uint `json:"activityId"`
	DrawCount  int  `json:"drawCount"`
}

// DrawResult is the outcome of one unit draw inside a batch response.
type DrawResult struct {
	DrawIndex        int    `json:"drawIndex"`
	Won              bool   `json:"won"`
	PrizeID          *uint  `json:"prizeId,omitempty"`
	PrizeName        string `json:"prizeName,omitempty"`
	PrizeDescription string `json:"prizeDescription,omitempty"`
	PrizeImageURL    string `json:"prizeImageUrl,omitempty"`
}

// DrawResponse is returned for a completed batch.
type DrawResponse struct {
	BatchID      string       `json:"batchId"`
	ActivityID   uint         `json:"activityId"`
	ActivityName string       `json:"activityName"`
	TotalDraws   int          `json:"totalDraws"`
	DrawTime     time.Time    `json:"drawTime"`
	Results      []DrawResult `json:"results"`
}

// DrawCountResponse exposes the draws of a user in an activity. Since is set
// when the count is windowed; RemainingDraws only for the lifetime count.
type DrawCountResponse struct {
	ActivityID     uint       `json:"activityId"`
	UserID         string     `json:"userId"`
	DrawCount      int64      `json:"drawCount"`
	RemainingDraws *int64     `json:"remainingDraws,omitempty"`
	Since          *time.Time `json:"since,omitempty"`
}
