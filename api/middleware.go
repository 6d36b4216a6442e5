package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxRequests = 100             // Maximum requests per window
	defaultWindow      = time.Minute * 5 // Window duration
)

type RateLimiter struct {
	requests    map[string]*ClientRequests
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

type ClientRequests struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests:    make(map[string]*ClientRequests),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Middleware allows each client maxRequests per fixed window. The window
// starts with the client's first request and the count resets once it has
// elapsed.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			clientIP = host
		}

		l.mu.Lock()

		// Clean up idle clients
		now := l.now()
		for ip, req := range l.requests {
			if now.Sub(req.lastSeen) > l.window {
				delete(l.requests, ip)
			}
		}

		// Get or create client requests
		client, exists := l.requests[clientIP]
		if !exists {
			client = &ClientRequests{windowStart: now}
			l.requests[clientIP] = client
		}
		if now.Sub(client.windowStart) >= l.window {
			client.count = 0
			client.windowStart = now
		}
		client.lastSeen = now

		reset := client.windowStart.Add(l.window).UTC().Format(time.RFC3339)
		if client.count >= l.maxRequests {
			l.mu.Unlock()
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.maxRequests))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", reset)
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		client.count++
		remaining := l.maxRequests - client.count
		l.mu.Unlock()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.maxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", reset)

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs every request with its status and latency.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote", r.RemoteAddr))
		})
	}
}
