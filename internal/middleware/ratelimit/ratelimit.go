package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

const (
	cleanupInterval = 5 * time.Minute
	bucketIdleTTL   = 10 * time.Minute
)

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// RateLimiter is a token-bucket limiter keyed per caller. Buckets refill
// continuously at Window/RequestsPerWindow and idle buckets are dropped
// by a background sweep.
type RateLimiter struct {
	mu         sync.RWMutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration
	keyHeader  string
	log        *zap.Logger
	ticker     *time.Ticker
}

type Config struct {
	RequestsPerWindow int
	Window            time.Duration
	// KeyHeader names the request header buckets are keyed by; callers
	// without it share a bucket per client IP.
	KeyHeader string
	Logger    *zap.Logger
}

func New(cfg Config) *RateLimiter {
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = 120
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyHeader == "" {
		cfg.KeyHeader = "X-Account-ID"
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("ratelimit")
	}

	rl := &RateLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  cfg.RequestsPerWindow,
		refillRate: cfg.Window / time.Duration(cfg.RequestsPerWindow),
		keyHeader:  cfg.KeyHeader,
		log:        cfg.Logger,
		ticker:     time.NewTicker(cleanupInterval),
	}

	go rl.sweep()

	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(rl.keyHeader)
		if key == "" {
			key = c.IP()
		}

		if !rl.allow(key, time.Now()) {
			rl.log.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

func (rl *RateLimiter) allow(key string, now time.Time) bool {
	rl.mu.RLock()
	b := rl.buckets[key]
	rl.mu.RUnlock()

	if b == nil {
		rl.mu.Lock()
		if b = rl.buckets[key]; b == nil {
			b = &bucket{tokens: rl.maxTokens, lastRefill: now}
			rl.buckets[key] = b
		}
		rl.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if refill := int(now.Sub(b.lastRefill) / rl.refillRate); refill > 0 {
		b.tokens = min(rl.maxTokens, b.tokens+refill)
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

func (rl *RateLimiter) sweep() {
	for range rl.ticker.C {
		now := time.Now()

		rl.mu.Lock()
		for key, b := range rl.buckets {
			b.mu.Lock()
			idle := now.Sub(b.lastRefill) > bucketIdleTTL
			b.mu.Unlock()
			if idle {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) Stop() {
	rl.ticker.Stop()
}
