package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lottery-draw-system/metrics"
	"lottery-draw-system/models"
)

// ConcurrencyPolicy decides what happens when the in-flight tracker is absent
// or failing.
type ConcurrencyPolicy string

const (
	// ConcurrencyPolicySkip admits the batch unchecked. This is a known
	// weakening: the concurrency cap is not enforced while it applies.
	ConcurrencyPolicySkip ConcurrencyPolicy = "skip"
	// ConcurrencyPolicyReject fails the batch closed.
	ConcurrencyPolicyReject ConcurrencyPolicy = "reject"
)

// ParseConcurrencyPolicy defaults to skip for unknown values.
func ParseConcurrencyPolicy(s string) ConcurrencyPolicy {
	if ConcurrencyPolicy(strings.ToLower(strings.TrimSpace(s))) == ConcurrencyPolicyReject {
		return ConcurrencyPolicyReject
	}
	return ConcurrencyPolicySkip
}

// QuotaConfig wires a QuotaEnforcer.
type QuotaConfig struct {
	Records RecordStore
	Guard   Guard
	Class   LockClass
	// Pending holds quota reserved by batches that are still writing records.
	Pending SlotTracker
	// InFlight counts running batches per activity. Nil disables the check
	// according to Policy.
	InFlight       SlotTracker
	Policy         ConcurrencyPolicy
	ReservationTTL time.Duration
	SlotTTL        time.Duration
	Log            *zap.Logger
}

// QuotaEnforcer admits a batch against the per-user cap and the per-activity
// concurrency cap.
type QuotaEnforcer struct {
	cfg QuotaConfig
}

func NewQuotaEnforcer(cfg QuotaConfig) *QuotaEnforcer {
	if cfg.Pending == nil {
		cfg.Pending = NewMemorySlotTracker()
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = time.Minute
	}
	if cfg.SlotTTL <= 0 {
		cfg.SlotTTL = 30 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &QuotaEnforcer{cfg: cfg}
}

// Admission is what an authorized batch holds until it finishes.
type Admission struct {
	quotaKey  string
	slotKey   string
	member    string
	requested int
	q         *QuotaEnforcer
}

// Settle shrinks the reservation once written unit draws are stored and
// therefore counted by the record store. Between the write and this call the
// user is over-counted by at most one draw, never under-counted. While draws
// remain it also renews the in-flight slot for another SlotTTL.
func (a *Admission) Settle(ctx context.Context, written int) {
	if a == nil {
		return
	}
	left := int64(a.requested - written)
	var err error
	if left <= 0 {
		err = a.q.cfg.Pending.Drop(ctx, a.quotaKey, a.member)
	} else {
		err = a.q.cfg.Pending.Hold(ctx, a.quotaKey, a.member, left, a.q.cfg.ReservationTTL)
	}
	if err != nil {
		a.q.cfg.Log.Warn("settle quota reservation", zap.String("batch_id", a.member), zap.Error(err))
	}

	// A running batch keeps its slot alive however long its unit draws wait.
	if a.slotKey != "" && a.q.cfg.InFlight != nil && left > 0 {
		if err := a.q.cfg.InFlight.Hold(ctx, a.slotKey, a.member, 1, a.q.cfg.SlotTTL); err != nil {
			a.q.cfg.Log.Warn("refresh concurrency slot", zap.String("batch_id", a.member), zap.Error(err))
		}
	}
}

// Release returns the reserved quota and the concurrency slot. Records
// written by then are counted from the store instead.
func (a *Admission) Release(ctx context.Context) {
	if a == nil {
		return
	}
	log := a.q.cfg.Log
	if err := a.q.cfg.Pending.Drop(ctx, a.quotaKey, a.member); err != nil {
		log.Warn("drop quota reservation", zap.String("batch_id", a.member), zap.Error(err))
	}
	if a.slotKey != "" && a.q.cfg.InFlight != nil {
		if err := a.q.cfg.InFlight.Drop(ctx, a.slotKey, a.member); err != nil {
			log.Warn("drop concurrency slot", zap.String("batch_id", a.member), zap.Error(err))
		}
	}
}

// Authorize checks both caps under the (user, activity) lock and, on success,
// reserves requested draws and one in-flight slot for batchID.
func (q *QuotaEnforcer) Authorize(ctx context.Context, userID string, activity *models.Activity, batchID string, requested int) (*Admission, error) {
	var admission *Admission
	key := UserDrawCountLockKey(userID, activity.ID)

	err := q.cfg.Guard.Run(ctx, key, q.cfg.Class, func(ctx context.Context) error {
		a, err := q.check(ctx, userID, activity, batchID, requested)
		admission = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return admission, nil
}

func (q *QuotaEnforcer) check(ctx context.Context, userID string, activity *models.Activity, batchID string, requested int) (*Admission, error) {
	existing, err := q.cfg.Records.CountDraws(ctx, userID, activity.ID)
	if err != nil {
		return nil, err
	}
	quotaKey := QuotaPendingKey(userID, activity.ID)
	pending, err := q.cfg.Pending.Total(ctx, quotaKey)
	if err != nil {
		return nil, errors.Wrap(err, "read pending quota")
	}
	if existing+pending+int64(requested) > int64(activity.MaxDrawsPerUser) {
		return nil, ErrQuotaExceeded
	}

	slotKey, err := q.checkConcurrency(ctx, activity)
	if err != nil {
		return nil, err
	}

	if err := q.cfg.Pending.Hold(ctx, quotaKey, batchID, int64(requested), q.cfg.ReservationTTL); err != nil {
		return nil, errors.Wrap(err, "reserve quota")
	}
	admission := &Admission{quotaKey: quotaKey, member: batchID, requested: requested, q: q}

	if slotKey != "" {
		if err := q.cfg.InFlight.Hold(ctx, slotKey, batchID, 1, q.cfg.SlotTTL); err != nil {
			q.cfg.Log.Warn("concurrency slot not recorded", zap.Uint("activity_id", activity.ID), zap.Error(err))
		} else {
			admission.slotKey = slotKey
		}
	}
	return admission, nil
}

// checkConcurrency returns the slot key to hold, or "" when the check was
// skipped.
func (q *QuotaEnforcer) checkConcurrency(ctx context.Context, activity *models.Activity) (string, error) {
	if q.cfg.InFlight == nil {
		return "", q.degraded(activity, nil)
	}
	slotKey := ConcurrentActivityKey(activity.ID)
	current, err := q.cfg.InFlight.Total(ctx, slotKey)
	if err != nil {
		return "", q.degraded(activity, err)
	}
	if current >= int64(activity.MaxConcurrentDraws) {
		return "", ErrConcurrencyExceeded
	}
	return slotKey, nil
}

func (q *QuotaEnforcer) degraded(activity *models.Activity, cause error) error {
	if q.cfg.Policy == ConcurrencyPolicyReject {
		if cause != nil {
			return errors.Wrapf(ErrConcurrencyExceeded, "tracker unavailable: %v", cause)
		}
		return errors.Wrap(ErrConcurrencyExceeded, "tracker unavailable")
	}
	metrics.RecordConcurrencySkipped()
	if cause != nil {
		q.cfg.Log.Warn("concurrency cap not enforced: tracker failing",
			zap.Uint("activity_id", activity.ID), zap.Error(cause))
	}
	return nil
}
