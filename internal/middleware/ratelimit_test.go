package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/medicab/scheduler/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 5})

	for i := 0; i < 5; i++ {
		assert.True(t, rl.allow("10.0.0.1"))
	}
}

func TestRateLimiterBlocksBurstOverflow(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))

	// Buckets are per IP.
	assert.True(t, rl.allow("10.0.0.2"))
}

func TestRateLimiterHandlerReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	router := gin.New()
	router.Use(rl.Handler())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
