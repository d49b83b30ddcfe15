package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	rateLimitKeyPrefix = "symptom-checker:ratelimit:"
	redisQuotaTimeout  = 500 * time.Millisecond
)

// quotaScript cuenta el hit y devuelve {hits, pttl}. Si la clave quedo sin
// expiracion (por un EXPIRE perdido) se la vuelve a fijar.
var quotaScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

type redisRateLimiter struct {
	client redis.Scripter
	scope  string
	window time.Duration
	limit  int
	logger *zap.Logger
}

// NewRedisRateLimiter: ventana fija compartida entre instancias, una clave por
// scope (la ruta) e IP. Si Redis falla el request pasa.
func NewRedisRateLimiter(client redis.Scripter, scope string, window time.Duration, limit int, logger *zap.Logger) RateLimiter {
	if client == nil {
		return nil
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisRateLimiter{
		client: client,
		scope:  scope,
		window: window,
		limit:  limit,
		logger: logger,
	}
}

func (l *redisRateLimiter) Allow(ctx context.Context, key string) RateDecision {
	open := RateDecision{Allowed: true, Limit: l.limit, Remaining: l.limit}

	ctx, cancel := context.WithTimeout(ctx, redisQuotaTimeout)
	defer cancel()

	redisKey := l.redisKey(key)
	res, err := quotaScript.Run(ctx, l.client, []string{redisKey}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing request", zap.Error(err), zap.String("key", redisKey))
		return open
	}
	if len(res) != 2 {
		l.logger.Warn("rate limit script returned unexpected reply", zap.Int64s("reply", res))
		return open
	}
	return decideQuota(int(res[0]), l.limit, time.Duration(res[1])*time.Millisecond)
}

func (l *redisRateLimiter) redisKey(key string) string {
	return rateLimitKeyPrefix + l.scope + ":" + normalizeClientKey(key)
}
