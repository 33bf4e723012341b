package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/erp/labeldesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move the limiter's notion of time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestLimiter(rps float64, burst int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(rps, burst, time.Minute)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows the burst then blocks", func(t *testing.T) {
		limiter, _ := newTestLimiter(1, 3)

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("client1"), "request %d should be allowed", i+1)
		}
		assert.False(t, limiter.Allow("client1"))
	})

	t.Run("separate buckets per client", func(t *testing.T) {
		limiter, _ := newTestLimiter(1, 2)

		assert.True(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientA"))
		assert.False(t, limiter.Allow("clientA"))

		assert.True(t, limiter.Allow("clientB"))
		assert.True(t, limiter.Allow("clientB"))
	})

	t.Run("refills over time", func(t *testing.T) {
		limiter, clock := newTestLimiter(2, 2)

		assert.True(t, limiter.Allow("client3"))
		assert.True(t, limiter.Allow("client3"))
		assert.False(t, limiter.Allow("client3"))

		clock.Advance(500 * time.Millisecond)
		assert.True(t, limiter.Allow("client3"))
		assert.False(t, limiter.Allow("client3"))
	})

	t.Run("sweep forgets idle clients", func(t *testing.T) {
		limiter, clock := newTestLimiter(1, 1)

		limiter.Allow("old")
		clock.Advance(30 * time.Second)
		limiter.Allow("recent")
		clock.Advance(45 * time.Second)

		assert.Equal(t, 1, limiter.Sweep())
		assert.Equal(t, 1, limiter.Len())
	})

	t.Run("zero burst is raised to one", func(t *testing.T) {
		limiter, _ := newTestLimiter(1, 0)
		assert.True(t, limiter.Allow("c"))
	})

	t.Run("concurrent access", func(t *testing.T) {
		limiter, _ := newTestLimiter(1, 50)

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("shared") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, allowed)
	})
}

func TestRateLimiter_Run(t *testing.T) {
	limiter, clock := newTestLimiter(1, 1)
	limiter.Allow("idle")
	clock.Advance(2 * time.Minute)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		limiter.Run(5*time.Millisecond, done)
		close(finished)
	}()

	assert.Eventually(t, func() bool { return limiter.Len() == 0 }, time.Second, 5*time.Millisecond)
	close(done)
	<-finished
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(1, 2)
	router := gin.New()
	router.Use(RequestID(), RateLimit(limiter))
	router.GET("/api/v1/material-documents", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/material-documents", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)

	w := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	resp := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Code)
	assert.Equal(t, dto.StatusError, resp.Status)
	assert.Equal(t, w.Header().Get(RequestIDHeader), resp.RequestID)

	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)
}
