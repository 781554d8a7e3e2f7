package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"lottery-draw-system/models"
)

// MemoryStore is a process-local DrawStore for single-instance runs and tests.
type MemoryStore struct {
	mu         sync.Mutex
	activities map[uint]models.Activity
	prizes     map[uint]models.Prize
	records    []models.DrawRecord
	nextID     uint
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		activities: make(map[uint]models.Activity),
		prizes:     make(map[uint]models.Prize),
		now:        time.Now,
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

// PutActivity inserts or replaces an activity, assigning an ID when zero.
func (s *MemoryStore) PutActivity(a models.Activity) models.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	s.activities[a.ID] = a
	return a
}

// PutPrize inserts or replaces a prize, assigning an ID when zero.
func (s *MemoryStore) PutPrize(p models.Prize) models.Prize {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.prizes[p.ID] = p
	return p
}

// Prize returns the current state of a prize.
func (s *MemoryStore) Prize(id uint) (models.Prize, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prizes[id]
	return p, ok
}

// Records returns a copy of every record in append order.
func (s *MemoryStore) Records() []models.DrawRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DrawRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *MemoryStore) GetActivity(_ context.Context, id uint) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, ErrActivityNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListAvailablePrizes(_ context.Context, activityID uint) ([]models.Prize, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Prize
	for _, p := range s.prizes {
		if p.ActivityID == activityID && p.RemainingQuantity > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CountDraws(_ context.Context, userID string, activityID uint) (int64, error) {
	return s.count(userID, activityID, time.Time{}), nil
}

func (s *MemoryStore) CountDrawsSince(_ context.Context, userID string, activityID uint, since time.Time) (int64, error) {
	return s.count(userID, activityID, since), nil
}

func (s *MemoryStore) count(userID string, activityID uint, since time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.UserID == userID && r.ActivityID == activityID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) AppendRecord(_ context.Context, rec *models.DrawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(rec)
	return nil
}

func (s *MemoryStore) appendLocked(rec *models.DrawRecord) {
	rec.ID = s.id()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.records = append(s.records, *rec)
}

func (s *MemoryStore) CommitWin(_ context.Context, prizeID uint, rec *models.DrawRecord) (*models.Prize, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prizes[prizeID]
	if !ok || p.RemainingQuantity <= 0 {
		return nil, false, nil
	}
	p.RemainingQuantity--
	s.prizes[prizeID] = p

	rec.MarkWon(p)
	s.appendLocked(rec)
	return &p, true, nil
}
