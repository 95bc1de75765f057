// Package ratelimit throttles the unauthenticated endpoints with a token
// bucket kept in Redis, so every API instance shares one budget per client.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/facility-api/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "rl"

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
	tokens = math.min(capacity, tokens + intervals)
	last_refill = last_refill + (intervals * interval_ms)
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

type Limiter struct {
	rdb      redis.Scripter
	capacity int
	interval time.Duration
	logger   *zap.Logger
}

// New returns a limiter, or a pass-through one when rdb is nil.
func New(rdb *redis.Client, capacity int, interval time.Duration, logger *zap.Logger) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Limiter{capacity: capacity, interval: interval, logger: logger}
	if rdb != nil {
		l.rdb = rdb
	}
	return l
}

// Connect builds the Redis client from configuration. It returns nil when
// limiting is disabled or Redis does not answer, and the API then runs
// unthrottled.
func Connect(cfg *config.Config, logger *zap.Logger) *redis.Client {
	if !cfg.RateLimitEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.rdb != nil
}

// Decision is the result of taking one token.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func (l *Limiter) Take(ctx context.Context, key string) (Decision, error) {
	ttl := 5 * l.interval * time.Duration(l.capacity)
	args := []any{
		time.Now().UnixMilli(),
		l.capacity,
		l.interval.Milliseconds(),
		int64(math.Max(1, ttl.Seconds())),
	}
	vals, err := bucketScript.Run(ctx, l.rdb, []string{keyPrefix + ":" + key}, args...).Int64Slice()
	if err != nil {
		return Decision{Allowed: true}, err
	}
	if len(vals) != 3 {
		return Decision{Allowed: true}, fmt.Errorf("unexpected limiter reply %v", vals)
	}
	return Decision{
		Allowed:    vals[0] == 1,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// Middleware limits an operation per client address. Redis errors let the
// request through.
func (l *Limiter) Middleware(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !l.Enabled() {
			next(ctx)
			return
		}

		key := ClientFrom(ctx.Context(), ctx.RemoteAddr()) + ":" + ctx.Operation().OperationID
		d, err := l.Take(ctx.Context(), key)
		if err != nil {
			l.logger.Warn("Rate limiter error", zap.String("key", key), zap.Error(err))
			next(ctx)
			return
		}

		ctx.SetHeader("X-RateLimit-Limit", strconv.Itoa(l.capacity))
		ctx.SetHeader("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			ctx.SetHeader("Retry-After", strconv.Itoa(secs))
			huma.WriteErr(api, ctx, http.StatusTooManyRequests, "Too many requests, try again later")
			return
		}
		next(ctx)
	}
}

// Protect is an operation option applying the limiter.
func (l *Limiter) Protect(api huma.API) func(o *huma.Operation) {
	return func(o *huma.Operation) {
		o.Middlewares = append(o.Middlewares, l.Middleware(api))
	}
}

type peerKey struct{}

// PeerAddr records the client address used for rate limiting. It must run
// before chi's RealIP, which rewrites RemoteAddr from request headers. The
// socket address is used unless it belongs to a trusted proxy, in which case
// X-Real-IP or the last X-Forwarded-For hop is believed.
func PeerAddr(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r.RemoteAddr)
			if isTrusted(client, trusted) {
				if fwd := forwardedClient(r); fwd != "" {
					client = fwd
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), peerKey{}, client)))
		})
	}
}

// ClientFrom returns the address recorded by PeerAddr, or the host part of
// remote when the middleware did not run.
func ClientFrom(ctx context.Context, remote string) string {
	if c, ok := ctx.Value(peerKey{}).(string); ok && c != "" {
		return c
	}
	return clientIP(remote)
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return slices.ContainsFunc(trusted, func(p netip.Prefix) bool { return p.Contains(addr) })
}

func forwardedClient(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		if addr, err := netip.ParseAddr(v); err == nil {
			return addr.String()
		}
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		if addr, err := netip.ParseAddr(strings.TrimSpace(hops[i])); err == nil {
			return addr.String()
		}
	}
	return ""
}

func clientIP(remote string) string {
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
