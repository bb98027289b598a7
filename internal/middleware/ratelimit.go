package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/semidx/semidx/internal/pkg/errcode"
	"github.com/semidx/semidx/internal/pkg/response"
)

type rateWindow struct {
	count   int
	startAt time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*rateWindow
}

func (r *rateLimiter) allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[key]
	if !ok || now.Sub(w.startAt) >= r.window {
		r.windows[key] = &rateWindow{count: 1, startAt: now}
		return true
	}
	if w.count >= r.limit {
		return false
	}
	w.count++
	return true
}

// RateLimit caps requests per client ip within a fixed window.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*rateWindow),
	}
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP(), time.Now()) {
			response.Error(c, errcode.ErrTooMany, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
