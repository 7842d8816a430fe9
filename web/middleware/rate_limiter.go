package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	QueriesPerMinute int           // Max queries per client per minute
	BurstSize        int           // Allow burst of N requests
	CleanupInterval  time.Duration // How often to clean up old entries
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request can proceed and consumes a token if so
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	tb.tokens = min(tb.maxTokens, tb.tokens+(elapsed*tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// QueryRateLimiter manages rate limits per client address.
type QueryRateLimiter struct {
	config      RateLimiterConfig
	limits      map[string]*TokenBucket
	mu          sync.Mutex
	logger      *zap.Logger
	stopCleanup chan struct{}
}

func NewQueryRateLimiter(config RateLimiterConfig, logger *zap.Logger) *QueryRateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 10 * time.Minute
	}
	limiter := &QueryRateLimiter{
		config:      config,
		limits:      make(map[string]*TokenBucket),
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}
	go limiter.cleanupRoutine()
	return limiter
}

func (rl *QueryRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops all buckets once the map grows large; misbehaving clients
// simply start from a full bucket again.
func (rl *QueryRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limits) > 1000 {
		rl.logger.Info("Cleaning up rate limiter cache", zap.Int("buckets", len(rl.limits)))
		rl.limits = make(map[string]*TokenBucket)
	}
}

// Stop stops the cleanup routine
func (rl *QueryRateLimiter) Stop() {
	close(rl.stopCleanup)
}

// Allow checks whether the client may run another query now.
func (rl *QueryRateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	bucket, exists := rl.limits[clientIP]
	if !exists {
		refillRate := float64(rl.config.QueriesPerMinute) / 60.0
		bucket = NewTokenBucket(float64(rl.config.BurstSize), refillRate)
		rl.limits[clientIP] = bucket
	}
	rl.mu.Unlock()
	return bucket.Allow()
}

// Middleware rejects requests over the limit with 429.
func (rl *QueryRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			rl.logger.Warn("Rate limit exceeded", zap.String("client", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, slow down",
			})
			return
		}
		c.Next()
	}
}
