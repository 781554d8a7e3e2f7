package services

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RandomSource yields uniform percentages on [0,100), rounded half-up to two
// decimals.
type RandomSource interface {
	Percent() (decimal.Decimal, error)
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

func (CryptoSource) Percent() (decimal.Decimal, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return decimal.Zero, errors.Wrap(err, "read random percent")
	}
	// 53 high bits give a uniform float64 in [0,1).
	f := float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
	return toPercent(f), nil
}

// SeededSource is a deterministic source for reproducible runs.
type SeededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *SeededSource) Percent() (decimal.Decimal, error) {
	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()
	return toPercent(f), nil
}

func toPercent(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Mul(hundred).Round(2)
}
