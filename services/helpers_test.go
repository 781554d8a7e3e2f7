package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lottery-draw-system/models"
)

// newTestDB opens a private in-memory sqlite database with the schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.Activity{}, &models.Prize{}, &models.DrawRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fixedSource always returns the same percentage.
type fixedSource struct {
	value decimal.Decimal
	err   error
}

func (f fixedSource) Percent() (decimal.Decimal, error) {
	return f.value, f.err
}

// busyLocker never grants a lease.
type busyLocker struct{}

func (busyLocker) TryAcquire(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, nil
}

func (busyLocker) Release(context.Context, string, string) (bool, error) {
	return false, nil
}

// failingLocker reports a backend error on every call.
type failingLocker struct{ err error }

func (f failingLocker) TryAcquire(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, f.err
}

func (f failingLocker) Release(context.Context, string, string) (bool, error) {
	return false, f.err
}

func activeActivity(maxDraws, maxConcurrent int) models.Activity {
	now := time.Now()
	return models.Activity{
		Name:               "Spring Festival",
		Status:             models.ActivityStatusActive,
		StartTime:          now.Add(-time.Hour),
		EndTime:            now.Add(time.Hour),
		MaxDrawsPerUser:    maxDraws,
		MaxConcurrentDraws: maxConcurrent,
	}
}

func testClass(name string) LockClass {
	return LockClass{Name: name, TTL: 5 * time.Second, WaitTimeout: 5 * time.Second, RetryDelay: time.Millisecond}
}

type engine struct {
	store   *MemoryStore
	service *LotteryService
	locker  *MemoryLocker
}

type engineOption func(*engineConfig)

type engineConfig struct {
	source         RandomSource
	inFlight       SlotTracker
	policy         ConcurrencyPolicy
	quotaGuard     Guard
	inventoryGuard Guard
}

func withSource(src RandomSource) engineOption {
	return func(c *engineConfig) { c.source = src }
}

func withInFlight(tracker SlotTracker, policy ConcurrencyPolicy) engineOption {
	return func(c *engineConfig) {
		c.inFlight = tracker
		c.policy = policy
	}
}

func withQuotaGuard(g Guard) engineOption {
	return func(c *engineConfig) { c.quotaGuard = g }
}

func withInventoryGuard(g Guard) engineOption {
	return func(c *engineConfig) { c.inventoryGuard = g }
}

// newEngine wires the draw engine over the memory store and memory locker.
func newEngine(t *testing.T, opts ...engineOption) *engine {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := NewMemoryStore()
	locker := NewMemoryLocker()
	coordinator := NewLockCoordinator(locker, log)

	cfg := engineConfig{
		source:         NewSeededSource(42),
		policy:         ConcurrencyPolicySkip,
		quotaGuard:     coordinator,
		inventoryGuard: coordinator,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	quota := NewQuotaEnforcer(QuotaConfig{
		Records:  store,
		Guard:    cfg.quotaGuard,
		Class:    testClass("quota"),
		Pending:  NewMemorySlotTracker(),
		InFlight: cfg.inFlight,
		Policy:   cfg.policy,
		Log:      log,
	})
	inventory := NewInventoryGuard(store, cfg.inventoryGuard, testClass("inventory"), log)
	svc := NewLotteryService(store, NewSelector(cfg.source), quota, inventory, log)
	return &engine{store: store, service: svc, locker: locker}
}
