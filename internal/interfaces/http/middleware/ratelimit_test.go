package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

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
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, window)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter(t *testing.T) {
	t.Run("burst up to the limit", func(t *testing.T) {
		rl, _ := newTestLimiter(3, time.Minute)
		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("a"), "request %d", i+1)
		}
		assert.False(t, rl.Allow("a"))
	})

	t.Run("separate buckets per key", func(t *testing.T) {
		rl, _ := newTestLimiter(1, time.Minute)
		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		assert.True(t, rl.Allow("b"))
	})

	t.Run("refills over the window", func(t *testing.T) {
		rl, clock := newTestLimiter(2, time.Minute)
		assert.True(t, rl.Allow("a"))
		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		assert.Equal(t, 30*time.Second, rl.RetryAfter("a"))

		clock.Advance(30 * time.Second)
		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
	})

	t.Run("sweep drops idle clients", func(t *testing.T) {
		rl, clock := newTestLimiter(2, time.Minute)
		rl.Allow("idle")
		clock.Advance(90 * time.Second)
		rl.Allow("active")
		clock.Advance(45 * time.Second)

		assert.Equal(t, 1, rl.Sweep())
		assert.Len(t, rl.clients, 1)
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		rl := NewRateLimiter(100, time.Minute)
		var wg sync.WaitGroup
		allowed := make(chan bool, 200)
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				allowed <- rl.Allow("shared")
			}()
		}
		wg.Wait()
		close(allowed)

		count := 0
		for ok := range allowed {
			if ok {
				count++
			}
		}
		assert.GreaterOrEqual(t, count, 100)
		assert.LessOrEqual(t, count, 101)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)
	router := gin.New()
	router.Use(RequestID(), Owner(), RateLimit(rl))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(owner string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if owner != "" {
			req.Header.Set(OwnerHeader, owner)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := call("finance")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	blocked := call("finance")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "ERR_RATE_LIMITED")

	// other owners and anonymous callers have their own buckets
	assert.Equal(t, http.StatusOK, call("sales").Code)
	assert.Equal(t, http.StatusOK, call("").Code)
}

func TestRateLimitByKey(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)
	router := gin.New()
	router.Use(RateLimitByKey(rl, func(c *gin.Context) string { return c.Query("k") }))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := func(path string) int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, codes("/test?k=x"))
	assert.Equal(t, http.StatusTooManyRequests, codes("/test?k=x"))
	assert.Equal(t, http.StatusOK, codes("/test?k=y"))
}
