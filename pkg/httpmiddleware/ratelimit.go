package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per key per window.
	Max int
	// Window is the sliding window length.
	Window time.Duration
	// KeyFunc extracts the limit key. Defaults to ClientKey.
	KeyFunc func(*http.Request) string
	// Store keeps window state. Defaults to an in-process MemoryStore.
	Store LimitStore
}

// LimitStore records a request for key and reports whether it fits in the
// window.
type LimitStore interface {
	Allow(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Decision, error)
}

// Decision is the outcome of a LimitStore check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimit rejects requests over the limit with a JSON 429. Every response
// carries X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset.
// Store failures let the request through.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientKey
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	return func(next http.Handler) http.Handler {
		if cfg.Max <= 0 || cfg.Window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := cfg.Store.Allow(r.Context(), cfg.KeyFunc(r), time.Now(), cfg.Window, cfg.Max)
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limit store failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retry := max(time.Until(d.ResetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey keys requests by API key when present, otherwise by client IP
// from X-Forwarded-For, X-Real-IP or RemoteAddr.
func ClientKey(r *http.Request) string {
	if k := r.Header.Get("api_key"); k != "" {
		return "key:" + k
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ip:" + xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// MemoryStore approximates a sliding window in process memory by weighting
// the previous fixed window by its overlap with the current one.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	prev      float64
	curr      float64
	currStart time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*windowEntry)}
}

// Allow implements LimitStore.
func (s *MemoryStore) Allow(_ context.Context, key string, now time.Time, window time.Duration, limit int) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &windowEntry{currStart: now.Truncate(window)}
		s.entries[key] = e
	}
	if elapsed := now.Sub(e.currStart); elapsed >= window {
		if elapsed >= 2*window {
			e.prev = 0
		} else {
			e.prev = e.curr
		}
		e.curr = 0
		e.currStart = now.Truncate(window)
	}

	overlap := max(1-now.Sub(e.currStart).Seconds()/window.Seconds(), 0)
	count := e.prev*overlap + e.curr
	reset := e.currStart.Add(window)
	if count >= float64(limit) {
		return Decision{ResetAt: reset}, nil
	}
	e.curr++
	return Decision{
		Allowed:   true,
		Remaining: max(int(float64(limit)-count-1), 0),
		ResetAt:   reset,
	}, nil
}

// Sweep drops entries idle for more than two windows.
func (s *MemoryStore) Sweep(now time.Time, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if now.Sub(e.currStart) >= 2*window {
			delete(s.entries, k)
		}
	}
}

// StartSweeper runs Sweep every two windows until ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, window time.Duration) {
	if window <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(2 * window)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				s.Sweep(now, window)
			}
		}
	}()
}

// RedisStore keeps an exact sliding window per key in a Redis sorted set, so
// limits hold across server replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Allow implements LimitStore.
func (s *RedisStore) Allow(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Decision, error) {
	redisKey := s.prefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	card := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, errors.Wrapf(err, "rate limit %q", key)
	}

	n := int(card.Val())
	return Decision{
		Allowed:   n <= limit,
		Remaining: max(limit-n, 0),
		ResetAt:   now.Add(window),
	}, nil
}
