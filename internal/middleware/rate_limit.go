package middleware

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"meal-image-service/internal/errors"
	"meal-image-service/internal/metrics"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	clientSweepInterval = 2 * time.Minute
	clientIdleTimeout   = 10 * time.Minute
)

// clientEntry limiter of one client
type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter per-IP token buckets
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	rps     int
	rate    rate.Limit
	burst   int
	cancel  context.CancelFunc
}

// NewRateLimiter starts a limiter allowing rps requests per second per client.
// Close stops its sweeper.
func NewRateLimiter(rps int) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &RateLimiter{
		clients: make(map[string]*clientEntry),
		rps:     rps,
		rate:    rate.Limit(rps),
		burst:   rps,
		cancel:  cancel,
	}

	go rl.sweep(ctx)

	return rl
}

// Allow consumes one token for clientIP
func (rl *RateLimiter) Allow(clientIP string) bool {
	return rl.limiter(clientIP).Allow()
}

func (rl *RateLimiter) limiter(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if entry, ok := rl.clients[clientIP]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.clients[clientIP] = &clientEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// Clients number of tracked clients
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(clientSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

// evictIdle drops clients not seen within clientIdleTimeout of now
func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, entry := range rl.clients {
		if now.Sub(entry.lastSeen) > clientIdleTimeout {
			delete(rl.clients, ip)
		}
	}
}

// Close stops the sweeper
func (rl *RateLimiter) Close() {
	rl.cancel()
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(clientIP(c)) {
				metrics.RateLimitRejects.Inc()
				c.Response().Header().Set("Retry-After", "1")
				return errors.NewRateLimitError(rl.rps)
			}
			return next(c)
		}
	}
}

// clientIP X-Real-IP, then the first X-Forwarded-For hop, then RemoteAddr
func clientIP(c echo.Context) string {
	req := c.Request()

	if ip := req.Header.Get("X-Real-IP"); ip != "" && net.ParseIP(ip) != nil {
		return ip
	}

	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if ip, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return ip
	}
	return req.RemoteAddr
}
