package services

import "fmt"

// Lock and tracker keys. Every key the engine writes to Redis is built here.
const (
	// PrefixLock namespaces lock keys inside Redis.
	PrefixLock = "lottery:lock:"
	// PrefixConcurrent holds the in-flight batch set of an activity.
	PrefixConcurrent = "lottery:concurrent:activity:"
	// PrefixQuotaPending holds quota reserved by batches still running.
	PrefixQuotaPending = "lottery:quota:pending:"
)

// PrizeDrawLockKey serializes inventory commits of one activity.
// Form: prize_draw:activity:{activity_id}
func PrizeDrawLockKey(activityID uint) string {
	return fmt.Sprintf("prize_draw:activity:%d", activityID)
}

// UserDrawCountLockKey serializes quota checks of one user in one activity.
// Form: user_draw_count:{user_id}:activity:{activity_id}
func UserDrawCountLockKey(userID string, activityID uint) string {
	return fmt.Sprintf("user_draw_count:%s:activity:%d", userID, activityID)
}

// ConcurrentActivityKey form: lottery:concurrent:activity:{activity_id}
func ConcurrentActivityKey(activityID uint) string {
	return fmt.Sprintf("%s%d", PrefixConcurrent, activityID)
}

// QuotaPendingKey form: lottery:quota:pending:{user_id}:activity:{activity_id}
func QuotaPendingKey(userID string, activityID uint) string {
	return fmt.Sprintf("%s%s:activity:%d", PrefixQuotaPending, userID, activityID)
}
