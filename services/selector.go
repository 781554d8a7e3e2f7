package services

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"lottery-draw-system/models"
)

// Selector maps a random percentage onto an ordered prize list.
// It does no I/O and takes no locks.
type Selector struct {
	source RandomSource
}

func NewSelector(source RandomSource) *Selector {
	if source == nil {
		source = CryptoSource{}
	}
	return &Selector{source: source}
}

// Select walks prizes in the given order and returns the first one whose
// cumulative probability reaches the drawn value. A nil prize means the draw
// landed in the no-prize remainder. Callers pass only prizes with stock left,
// already sorted by display order.
func (s *Selector) Select(prizes []models.Prize) (*models.Prize, error) {
	if len(prizes) == 0 {
		return nil, nil
	}

	r, err := s.source.Percent()
	if err != nil {
		return nil, errors.Wrap(err, "draw random value")
	}

	cumulative := decimal.Zero
	for i := range prizes {
		cumulative = cumulative.Add(prizes[i].Probability)
		if r.LessThanOrEqual(cumulative) {
			return &prizes[i], nil
		}
	}
	return nil, nil
}

// TotalProbability sums the configured probabilities.
func TotalProbability(prizes []models.Prize) decimal.Decimal {
	total := decimal.Zero
	for _, p := range prizes {
		total = total.Add(p.Probability)
	}
	return total
}

// NoPrizeProbability is the implicit losing mass, floored at zero.
func NoPrizeProbability(prizes []models.Prize) decimal.Decimal {
	rest := hundred.Sub(TotalProbability(prizes))
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// ValidateProbabilitySum rejects pools whose probabilities exceed 100.
func ValidateProbabilitySum(prizes []models.Prize) error {
	if TotalProbability(prizes).GreaterThan(hundred) {
		return ErrProbabilityOverflow
	}
	return nil
}
