package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckerRegistry_Check(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(NewPingChecker("embedded", pingerFunc(func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "checks run with a timeout")
		return nil
	})))

	h := registry.Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, StatusHealthy, h.Checks["embedded"].Status)

	registry.Register(NewPingChecker("mongodb", pingerFunc(func(ctx context.Context) error {
		return errors.New("no reachable servers")
	})))

	h = registry.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, StatusHealthy, h.Checks["embedded"].Status)
	assert.Equal(t, StatusUnhealthy, h.Checks["mongodb"].Status)
	assert.Equal(t, "mongodb ping failed: no reachable servers", h.Checks["mongodb"].Message)
}

func TestCheckerRegistry_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := true
	registry := NewCheckerRegistry()
	registry.Register(NewPingChecker("embedded", pingerFunc(func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("closed")
	})))

	router := gin.New()
	router.GET("/health", registry.Handler())

	get := func() (*httptest.ResponseRecorder, Health) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		var h Health
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
		return w, h
	}

	w, h := get()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusHealthy, h.Status)

	healthy = false
	w, h = get()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, StatusUnhealthy, h.Status)
}
