package services

import "lottery-draw-system/models"

// UnitOutcome is either Won or NoPrize. Consumers type-switch on it.
type UnitOutcome interface {
	toResult(drawIndex int) models.DrawResult
}

// Won carries the prize snapshot taken at commit time.
type Won struct {
	PrizeID          uint
	PrizeName        string
	PrizeDescription string
	PrizeImageURL    string
}

func (w Won) toResult(drawIndex int) models.DrawResult {
	id := w.PrizeID
	return models.DrawResult{
		DrawIndex:        drawIndex,
		Won:              true,
		PrizeID:          &id,
		PrizeName:        w.PrizeName,
		PrizeDescription: w.PrizeDescription,
		PrizeImageURL:    w.PrizeImageURL,
	}
}

// NoPrizeReason records why a unit draw gave nothing. It never reaches the
// caller; it feeds logs and metrics.
type NoPrizeReason string

const (
	NoPrizeNotSelected NoPrizeReason = "not_selected"
	NoPrizeExhausted   NoPrizeReason = "exhausted"
	NoPrizeLockLost    NoPrizeReason = "lock_lost"
)

// NoPrize is a losing unit draw.
type NoPrize struct {
	Reason NoPrizeReason
}

func (NoPrize) toResult(drawIndex int) models.DrawResult {
	return models.DrawResult{DrawIndex: drawIndex, Won: false}
}
