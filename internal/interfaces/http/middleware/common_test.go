package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if header != "" {
			req.Header.Set(RequestIDHeader, header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("generates an id when none is sent", func(t *testing.T) {
		w := serve("")

		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("keeps a caller supplied id", func(t *testing.T) {
		w := serve("dashboard-42")

		assert.Equal(t, "dashboard-42", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "dashboard-42", w.Body.String())
	})

	t.Run("replaces an oversized id", func(t *testing.T) {
		w := serve(strings.Repeat("a", MaxRequestIDLength+1))

		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	})

	t.Run("replaces an id with control characters", func(t *testing.T) {
		w := serve("bad id")

		assert.NotEqual(t, "bad id", w.Header().Get(RequestIDHeader))
	})
}

func TestSecure(t *testing.T) {
	router := gin.New()
	router.Use(Secure())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}
