package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mindsphere-backend/internal/logger"
)

// RateLimiter is a fixed-window limiter shared across API instances through
// redis. Authenticated requests are keyed by user, anonymous ones by client
// IP. Redis failures let the request through.
type RateLimiter struct {
	redis  *redis.Client
	name   string
	limit  int
	window time.Duration
	now    func() time.Time
	log    *logger.Logger
}

func NewRateLimiter(redisClient *redis.Client, name string, limit int, window time.Duration, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		name:   name,
		limit:  limit,
		window: window,
		now:    time.Now,
		log:    log,
	}
}

func (rl *RateLimiter) key(r *http.Request) string {
	bucket := rl.now().UnixNano() / int64(rl.window)
	if id := GetUserID(r.Context()); id != uuid.Nil {
		return fmt.Sprintf("ratelimit:%s:user:%s:%d", rl.name, id, bucket)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("ratelimit:%s:ip:%s:%d", rl.name, host, bucket)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)

		pipe := rl.redis.TxPipeline()
		incr := pipe.Incr(r.Context(), key)
		pipe.Expire(r.Context(), key, rl.window)
		if _, err := pipe.Exec(r.Context()); err != nil {
			rl.log.Warn("rate limiter unavailable", "limiter", rl.name, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		count := incr.Val()
		remaining := int64(rl.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.limit) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
