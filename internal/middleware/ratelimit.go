package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tacticalpanel/panel/pkg/errors"
	"github.com/tacticalpanel/panel/pkg/logger"
	"github.com/tacticalpanel/panel/pkg/metrics"
	"github.com/tacticalpanel/panel/pkg/response"
)

// RateLimit limits requests per (clientIP, route) within a fixed window using the shared
// store. When the store fails the request is let through and the failure logged.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + c.ClientIP() + "|" + c.FullPath()
		count, ttl, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))

		if count > maxRequests {
			metrics.RateLimited.WithLabelValues("http").Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}

// Throttle applies a process-local token bucket per client IP. It smooths bursts before
// requests reach the shared store; it is not a substitute for RateLimit across instances.
func Throttle(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 || burst <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*clientLimiter)
	)
	idle := time.Duration(float64(burst)/perSecond*float64(time.Second)) + time.Minute

	return func(c *gin.Context) {
		now := time.Now()
		ip := c.ClientIP()

		mu.Lock()
		cl, ok := limiters[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
			limiters[ip] = cl
		}
		cl.lastSeen = now
		if len(limiters) > 1024 {
			for key, other := range limiters {
				if now.Sub(other.lastSeen) > idle {
					delete(limiters, key)
				}
			}
		}
		allowed := cl.limiter.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			metrics.RateLimited.WithLabelValues("throttle").Inc()
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}
