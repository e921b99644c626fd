package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"chatapp/internal/redis"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(mw...)
	return engine
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestErrorHandler(t *testing.T) {
	engine := newEngine(ErrorHandler(logger.Nop()))
	engine.GET("/expected", func(c *gin.Context) {
		_ = c.Error(chatapp_errors.ErrWindowExpired)
	})
	engine.GET("/unexpected", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection reset"))
	})

	t.Run("should answer expected errors with their code", func(t *testing.T) {
		rec := serve(engine, httptest.NewRequest(http.MethodGet, "/expected", nil))

		require.Equal(t, http.StatusConflict, rec.Code)
		require.JSONEq(t, `{"success":false,"error":"`+chatapp_errors.ErrWindowExpired.Error()+`","code":"WINDOW_EXPIRED"}`, rec.Body.String())
	})

	t.Run("should hide the detail of internal errors", func(t *testing.T) {
		rec := serve(engine, httptest.NewRequest(http.MethodGet, "/unexpected", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotContains(t, rec.Body.String(), "connection reset")
		require.Contains(t, rec.Body.String(), chatapp_errors.CodeInternal)
	})
}

func TestRecovery(t *testing.T) {
	t.Run("should turn a panic into an internal error", func(t *testing.T) {
		engine := newEngine(Recovery(logger.Nop()))
		engine.GET("/boom", func(c *gin.Context) { panic("boom") })

		rec := serve(engine, httptest.NewRequest(http.MethodGet, "/boom", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Contains(t, rec.Body.String(), chatapp_errors.CodeInternal)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	engine := newEngine(RequestIDMiddleware())
	var seen string
	engine.GET("/", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(logger.RequestIdKey).(string)
	})

	t.Run("should keep an incoming request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc")

		rec := serve(engine, req)

		require.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
		require.Equal(t, "abc", seen)
	})

	t.Run("should generate one otherwise", func(t *testing.T) {
		rec := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Len(t, rec.Header().Get(RequestIDHeader), 32)
		require.Equal(t, rec.Header().Get(RequestIDHeader), seen)
	})
}

func TestCORSMiddleware(t *testing.T) {
	engine := newEngine(CORSMiddleware([]string{"https://app.example.com", "https://admin.example.com"}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("should allow a listed origin with credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://admin.example.com")

		rec := serve(engine, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("should refuse other origins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")

		rec := serve(engine, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("should answer preflight requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)

		rec := serve(engine, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	})

	t.Run("should never grant credentials to any origin", func(t *testing.T) {
		// Given
		anyOrigin := newEngine(CORSMiddleware([]string{"*"}))
		anyOrigin.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")

		// When
		rec := serve(anyOrigin, req)

		// Then
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("should pass requests through when no origin is configured", func(t *testing.T) {
		none := newEngine(CORSMiddleware(nil))
		none.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")

		rec := serve(none, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

type fakeLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (f *fakeLimiter) AllowMessage(context.Context, string) (*redis.RateLimitResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &redis.RateLimitResult{Allowed: f.allowed, Limit: 30, ResetIn: 42 * time.Second}, nil
}

func TestMessageRateLimitMiddleware(t *testing.T) {
	build := func(limiter MessageLimiter) *gin.Engine {
		engine := newEngine()
		engine.POST("/send", MessageRateLimitMiddleware(limiter, logger.Nop()), func(c *gin.Context) {
			c.Status(http.StatusCreated)
		})
		return engine
	}

	t.Run("should reject once the limit is reached", func(t *testing.T) {
		rec := serve(build(&fakeLimiter{allowed: false}), httptest.NewRequest(http.MethodPost, "/send", nil))

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "42", rec.Header().Get("X-RateLimit-Reset"))
		require.Contains(t, rec.Body.String(), chatapp_errors.CodeRateLimited)
	})

	t.Run("should pass allowed requests", func(t *testing.T) {
		rec := serve(build(&fakeLimiter{allowed: true}), httptest.NewRequest(http.MethodPost, "/send", nil))

		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("should let requests through when the limiter fails", func(t *testing.T) {
		limiter := &fakeLimiter{err: errors.New("redis down")}

		rec := serve(build(limiter), httptest.NewRequest(http.MethodPost, "/send", nil))

		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, 1, limiter.calls)
	})
}
