package services

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"lottery-draw-system/models"
)

func seedGorm(t *testing.T, store *GormStore, prizes ...models.Prize) models.Activity {
	t.Helper()
	activity := activeActivity(10, 5)
	activity.Slug = "seed-" + t.Name()
	activity.Prizes = prizes
	if err := store.DB.Create(&activity).Error; err != nil {
		t.Fatalf("seed activity: %v", err)
	}
	return activity
}

func TestGormStoreGetActivity(t *testing.T) {
	store := NewGormStore(newTestDB(t))
	seeded := seedGorm(t, store)

	got, err := store.GetActivity(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if got.Name != seeded.Name || got.Status != models.ActivityStatusActive {
		t.Errorf("Expected %s ACTIVE, but got %s %s", seeded.Name, got.Name, got.Status)
	}

	if _, err := store.GetActivity(context.Background(), 9999); !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("Expected ErrActivityNotFound, but got %v", err)
	}
}

func TestGormStoreListAvailablePrizes(t *testing.T) {
	store := NewGormStore(newTestDB(t))
	activity := seedGorm(t, store,
		models.Prize{Name: "Third", Probability: pct("1"), TotalQuantity: 1, RemainingQuantity: 1, SortOrder: 3},
		models.Prize{Name: "Gone", Probability: pct("1"), TotalQuantity: 1, RemainingQuantity: 0, SortOrder: 0},
		models.Prize{Name: "First", Probability: pct("1.5"), TotalQuantity: 2, RemainingQuantity: 2, SortOrder: 1},
	)

	prizes, err := store.ListAvailablePrizes(context.Background(), activity.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(prizes) != 2 {
		t.Fatalf("Expected 2 prizes with stock, but got %d", len(prizes))
	}
	if prizes[0].Name != "First" || prizes[1].Name != "Third" {
		t.Errorf("Expected sort order First, Third, but got %s, %s", prizes[0].Name, prizes[1].Name)
	}
	if !prizes[0].Probability.Equal(pct("1.5")) {
		t.Errorf("Expected probability 1.5 to round-trip, but got %s", prizes[0].Probability)
	}
}

func TestGormStoreCommitWin(t *testing.T) {
	store := NewGormStore(newTestDB(t))
	activity := seedGorm(t, store,
		models.Prize{Name: "Mug", Description: "Ceramic", ImageURL: "https://cdn.test/mug.png", Probability: pct("100"), TotalQuantity: 1, RemainingQuantity: 1},
	)
	prizeID := activity.Prizes[0].ID
	ctx := context.Background()

	rec := &models.DrawRecord{UserID: "u1", ActivityID: activity.ID, BatchID: "b1", DrawIndex: 1}
	prize, ok, err := store.CommitWin(ctx, prizeID, rec)
	if err != nil || !ok {
		t.Fatalf("Expected commit, got ok=%v err=%v", ok, err)
	}
	if prize.RemainingQuantity != 0 {
		t.Errorf("Expected snapshot remaining 0, but got %d", prize.RemainingQuantity)
	}
	if rec.ID == 0 || rec.Outcome != models.DrawOutcomeWon || rec.PrizeName != "Mug" {
		t.Errorf("Expected a persisted WON record for Mug, but got %+v", rec)
	}

	// Later prize edits must not rewrite the history.
	store.DB.Model(&models.Prize{}).Where("id = ?", prizeID).Updates(map[string]any{"name": "Cup", "description": "Glass", "image_url": ""})
	var history models.DrawRecord
	store.DB.First(&history, rec.ID)
	if history.PrizeName != "Mug" || history.PrizeDescription != "Ceramic" || history.PrizeImageURL != "https://cdn.test/mug.png" {
		t.Errorf("Expected the draw-time snapshot of Mug, but got %+v", history)
	}

	second := &models.DrawRecord{UserID: "u2", ActivityID: activity.ID, BatchID: "b2", DrawIndex: 1}
	_, ok, err = store.CommitWin(ctx, prizeID, second)
	if err != nil {
		t.Fatalf("Expected exhaustion not to be an error, but got %v", err)
	}
	if ok {
		t.Fatal("Expected commit to fail on exhausted stock")
	}
	if second.ID != 0 || second.PrizeID != nil {
		t.Errorf("Expected no record to be written, but got %+v", second)
	}

	var stored models.Prize
	store.DB.First(&stored, prizeID)
	if stored.RemainingQuantity != 0 {
		t.Errorf("Expected remaining 0, but got %d", stored.RemainingQuantity)
	}

	var won int64
	store.DB.Model(&models.DrawRecord{}).Where("prize_id = ? AND outcome = ?", prizeID, models.DrawOutcomeWon).Count(&won)
	if won != 1 {
		t.Errorf("Expected exactly 1 WON record, but got %d", won)
	}
}

func TestGormStoreCounts(t *testing.T) {
	store := NewGormStore(newTestDB(t))
	activity := seedGorm(t, store)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	records := []models.DrawRecord{
		{UserID: "u1", ActivityID: activity.ID, BatchID: "b1", DrawIndex: 1, PrizeName: models.NoPrizeName, Outcome: models.DrawOutcomeNoPrize, CreatedAt: old},
		{UserID: "u1", ActivityID: activity.ID, BatchID: "b2", DrawIndex: 1, PrizeName: models.NoPrizeName, Outcome: models.DrawOutcomeNoPrize},
		{UserID: "u1", ActivityID: activity.ID, BatchID: "b2", DrawIndex: 2, PrizeName: models.NoPrizeName, Outcome: models.DrawOutcomeNoPrize},
		{UserID: "u2", ActivityID: activity.ID, BatchID: "b3", DrawIndex: 1, PrizeName: models.NoPrizeName, Outcome: models.DrawOutcomeNoPrize},
	}
	for i := range records {
		if err := store.AppendRecord(ctx, &records[i]); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if n, _ := store.CountDraws(ctx, "u1", activity.ID); n != 3 {
		t.Errorf("Expected 3 draws for u1, but got %d", n)
	}
	if n, _ := store.CountDrawsSince(ctx, "u1", activity.ID, time.Now().Add(-time.Hour)); n != 2 {
		t.Errorf("Expected 2 recent draws for u1, but got %d", n)
	}
	if n, _ := store.CountDraws(ctx, "u1", activity.ID+1); n != 0 {
		t.Errorf("Expected 0 draws in another activity, but got %d", n)
	}
}
