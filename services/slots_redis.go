package services

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Members live in a sorted set scored by expiry (ms) and their weights in a
// companion hash. totalScript prunes expired members and sums the rest.
var totalScript = redis.NewScript(`
local expired = redis.call("zrangebyscore", KEYS[1], "-inf", ARGV[1])
for _, m in ipairs(expired) do
	redis.call("hdel", KEYS[2], m)
end
redis.call("zremrangebyscore", KEYS[1], "-inf", ARGV[1])
local total = 0
for _, m in ipairs(redis.call("zrange", KEYS[1], 0, -1)) do
	total = total + tonumber(redis.call("hget", KEYS[2], m) or "1")
end
return total`)

// RedisSlotTracker shares holds across process instances.
type RedisSlotTracker struct {
	client redis.UniversalClient
}

func NewRedisSlotTracker(client redis.UniversalClient) *RedisSlotTracker {
	return &RedisSlotTracker{client: client}
}

func weightsKey(key string) string { return key + ":w" }

func (t *RedisSlotTracker) Total(ctx context.Context, key string) (int64, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return totalScript.Run(ctx, t.client, []string{key, weightsKey(key)}, now).Int64()
}

func (t *RedisSlotTracker) Hold(ctx context.Context, key, member string, weight int64, ttl time.Duration) error {
	expires := time.Now().Add(ttl).UnixMilli()
	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(expires), Member: member})
	pipe.HSet(ctx, weightsKey(key), member, weight)
	// The keys outlive their newest member by one ttl at most.
	pipe.PExpire(ctx, key, ttl)
	pipe.PExpire(ctx, weightsKey(key), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (t *RedisSlotTracker) Drop(ctx context.Context, key, member string) error {
	pipe := t.client.TxPipeline()
	pipe.ZRem(ctx, key, member)
	pipe.HDel(ctx, weightsKey(key), member)
	_, err := pipe.Exec(ctx)
	return err
}
