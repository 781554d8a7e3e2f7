package main

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lottery-draw-system/config"
	"lottery-draw-system/services"
)

// buildLotteryService picks the lock and tracker strategies once:
// Redis when configured, otherwise in-process stand-ins. With locks disabled
// every critical section runs unguarded.
func buildLotteryService(cfg *config.Config, db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *services.LotteryService {
	var locker services.Locker
	var pending services.SlotTracker = services.NewMemorySlotTracker()
	var inFlight services.SlotTracker

	if rdb != nil {
		pending = services.NewRedisSlotTracker(rdb)
		inFlight = services.NewRedisSlotTracker(rdb)
	}
	switch {
	case !cfg.Lock.Enabled:
	case rdb != nil:
		locker = services.NewRedisLocker(rdb)
	default:
		logger.Warn("redis not configured: locks are process-local, run a single instance")
		locker = services.NewMemoryLocker()
	}

	guard := services.NewGuard(locker, logger.Named("lock"))
	policy := services.ParseConcurrencyPolicy(cfg.Draw.ConcurrencyPolicy)
	if inFlight == nil {
		logger.Warn("concurrency tracker unavailable", zap.String("policy", string(policy)))
	}

	store := services.NewGormStore(db)
	quota := services.NewQuotaEnforcer(services.QuotaConfig{
		Records: store,
		Guard:   guard,
		Class: services.LockClass{
			Name:        "quota",
			TTL:         cfg.Lock.QuotaTTL,
			WaitTimeout: cfg.Lock.QuotaWait,
			RetryDelay:  cfg.Lock.RetryDelay,
		},
		Pending:        pending,
		InFlight:       inFlight,
		Policy:         policy,
		ReservationTTL: cfg.Draw.ReservationTTL,
		SlotTTL:        cfg.Draw.SlotTTL,
		Log:            logger.Named("quota"),
	})

	inventory := services.NewInventoryGuard(store, guard, services.LockClass{
		Name:        "inventory",
		TTL:         cfg.Lock.InventoryTTL,
		WaitTimeout: cfg.Lock.InventoryWait,
		RetryDelay:  cfg.Lock.RetryDelay,
	}, logger.Named("inventory"))

	return services.NewLotteryService(store, services.NewSelector(services.CryptoSource{}), quota, inventory, logger.Named("lottery"))
}
