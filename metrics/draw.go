package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lottery_draw_batches_total",
			Help: "Draw batches by result",
		},
		[]string{"result"},
	)

	batchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lottery_draw_batch_duration_ms",
			Help:    "Draw batch processing duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	unitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lottery_unit_draws_total",
			Help: "Unit draws by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	lockTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lottery_lock_attempts_total",
			Help: "Distributed lock acquisitions by class and result",
		},
		[]string{"class", "result"},
	)

	concurrencySkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lottery_concurrency_check_skipped_total",
			Help: "Batches admitted without a concurrency check because the tracker was unavailable",
		},
	)

	stockDiscrepancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lottery_prize_stock_discrepancy",
			Help: "Awarded stock minus WON records per prize; non-zero breaks stock conservation",
		},
		[]string{"activity_id", "prize_id"},
	)
)

// RecordBatch records a finished batch.
// result: "success" | a short rejection reason such as "quota_exceeded".
func RecordBatch(result string, started time.Time) {
	if result == "" {
		result = "unknown"
	}
	batchTotal.WithLabelValues(result).Inc()
	batchDuration.WithLabelValues(result).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordUnit records one unit draw.
func RecordUnit(outcome, reason string) {
	unitTotal.WithLabelValues(outcome, reason).Inc()
}

// RecordLock records a lock acquisition attempt: "acquired" | "timeout".
func RecordLock(class, result string) {
	lockTotal.WithLabelValues(class, result).Inc()
}

func RecordConcurrencySkipped() {
	concurrencySkipped.Inc()
}

// SetStockDiscrepancy publishes the audit result for one prize.
func SetStockDiscrepancy(activityID, prizeID uint, diff int64) {
	stockDiscrepancy.WithLabelValues(
		strconv.FormatUint(uint64(activityID), 10),
		strconv.FormatUint(uint64(prizeID), 10),
	).Set(float64(diff))
}
