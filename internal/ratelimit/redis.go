package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultFlushTimeout = 5 * time.Second

// fixedWindowScript is an atomic Lua script implementing the fixed-window
// admission check against a Redis hash: {requests, windowStart}.
// KEYS[1] = per-IP key
// ARGV[1] = now (unix seconds)
// ARGV[2] = window size in seconds
// ARGV[3] = requests per window
// Returns: {allowed (0/1), remaining, resetSeconds}
var fixedWindowScript = redis.NewScript(`
	local key    = KEYS[1]
	local now    = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit  = tonumber(ARGV[3])

	local requests = tonumber(redis.call('HGET', key, 'requests'))
	local windowStart = tonumber(redis.call('HGET', key, 'windowStart'))

	if windowStart == nil then
		requests = 0
		windowStart = now
	elseif now - windowStart >= window then
		requests = 0
		windowStart = now
	end

	local remaining = limit - requests
	local resetSeconds = window - (now - windowStart)
	local allowed = 0

	if requests >= limit then
		redis.call('HSET', key, 'requests', requests, 'windowStart', windowStart)
		redis.call('EXPIRE', key, window)
		return {0, remaining, resetSeconds}
	end

	requests = requests + 1
	redis.call('HSET', key, 'requests', requests, 'windowStart', windowStart)
	redis.call('EXPIRE', key, window)
	return {1, remaining - 1, resetSeconds}
`)

// RedisLimiter is the optional distributed Limiter, for deployments running
// more than one gateway instance against a shared IP-admission state. On
// any Redis error it degrades gracefully by allowing the request, matching
// the reference limiter's availability-over-strictness tradeoff.
type RedisLimiter struct {
	rdb    *redis.Client
	plan   *Plan
	prefix string
}

// NewRedisLimiter creates a RedisLimiter with no active plan.
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: "ratelimit:ip:"}
}

func (l *RedisLimiter) Admit(ip string, now int64) (bool, int, int, int64) {
	plan := l.plan
	if plan == nil {
		return true, 0, 0, 0
	}

	key := l.prefix + ip
	res, err := fixedWindowScript.Run(context.Background(), l.rdb,
		[]string{key}, now, plan.WindowSeconds, plan.RequestsPerWindow,
	).Slice()
	if err != nil {
		slog.Warn("ratelimit_redis_error", slog.String("error", err.Error()))
		return true, plan.RequestsPerWindow, plan.RequestsPerWindow, plan.WindowSeconds
	}

	allowed, _ := res[0].(int64)
	remaining, _ := res[1].(int64)
	resetSeconds, _ := res[2].(int64)
	return allowed == 1, plan.RequestsPerWindow, int(remaining), resetSeconds
}

func (l *RedisLimiter) SetPlan(plan *Plan) {
	l.plan = plan
	if plan == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultFlushTimeout)
	defer cancel()
	iter := l.rdb.Scan(ctx, 0, l.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		l.rdb.Del(ctx, iter.Val())
	}
}

func (l *RedisLimiter) Plan() *Plan {
	return l.plan
}
