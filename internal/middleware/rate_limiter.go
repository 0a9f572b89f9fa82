package middleware

import (
	"net/http"
	"sync"
	"time"

	"oticapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ipLimiter is a fixed-window per-IP counter. Each limiter owns its map and
// purges expired IPs itself so abandoned terminals do not accumulate.
type ipLimiter struct {
	limit   int
	window  time.Duration
	message string

	mu      sync.Mutex
	windows map[string]*ipWindow
}

type ipWindow struct {
	count int
	until time.Time
}

func newIPLimiter(limit int, window time.Duration, message string) *ipLimiter {
	l := &ipLimiter{
		limit:   limit,
		window:  window,
		message: message,
		windows: make(map[string]*ipWindow),
	}
	go l.purgeLoop()
	return l
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[ip]
	if !ok || now.After(w.until) {
		w = &ipWindow{until: now.Add(l.window)}
		l.windows[ip] = w
	}
	w.count++
	return w.count <= l.limit
}

func (l *ipLimiter) purgeLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		l.mu.Lock()
		purged := 0
		for ip, w := range l.windows {
			if now.After(w.until) {
				delete(l.windows, ip)
				purged++
			}
		}
		remaining := len(l.windows)
		l.mu.Unlock()
		if purged > 0 {
			log.Debug().Int("purged", purged).Int("remaining", remaining).Msg("rate limiter purge")
		}
	}
}

func (l *ipLimiter) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(l.message))
			return
		}
		c.Next()
	}
}

// WebhookRateLimiter throttles gateway callback posts to 60 per minute per
// IP. The callback route carries no JWT, so the IP window is its only guard.
func WebhookRateLimiter() gin.HandlerFunc {
	return newIPLimiter(60, time.Minute, "Too many callbacks. Retry in 1 minute.").handler()
}

// RateLimiter is the general API throttle, applied once for the whole router.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newIPLimiter(limit, window, "Too many requests. Try again in a moment.").handler()
}
