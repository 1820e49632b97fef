package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haierkeys/fast-note-offline/pkg/code"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, code.ErrorNoteNotFound.Msg())
	})
	return r
}

func get(r http.Handler, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterRejectsAfterBurst(t *testing.T) {
	r := newEngine(RateLimiter(0.001, 2))

	assert.Equal(t, http.StatusOK, get(r).Code)
	assert.Equal(t, http.StatusOK, get(r).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r).Code)

	unlimited := newEngine(RateLimiter(0, 0))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(unlimited).Code)
	}
}

func TestTraceIDEchoedOrGenerated(t *testing.T) {
	r := newEngine(TraceMiddlewareWithConfig(true, ""))

	w := get(r, DefaultTraceIDHeader, "abc")
	assert.Equal(t, "abc", w.Header().Get(DefaultTraceIDHeader))

	w = get(r)
	assert.Len(t, w.Header().Get(DefaultTraceIDHeader), 36)

	off := newEngine(TraceMiddlewareWithConfig(false, ""))
	assert.Empty(t, get(off).Header().Get(DefaultTraceIDHeader))
}

func TestLangSwitchesMessages(t *testing.T) {
	defer code.SetLanguage("en")
	r := newEngine(Lang("en"))

	assert.Equal(t, "笔记不存在", get(r, "lang", "zh-CN").Body.String())
	assert.Equal(t, "Note not found", get(r).Body.String())
}

func TestSimpleAuthToken(t *testing.T) {
	r := newEngine(SimpleAuthTokenWithConfig("secret"))

	assert.Equal(t, http.StatusUnauthorized, get(r).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusOK, get(r, "Authorization", "Bearer secret").Code)
	assert.Equal(t, http.StatusOK, get(r, "Authorization", "secret").Code)

	open := newEngine(SimpleAuthTokenWithConfig(""))
	assert.Equal(t, http.StatusOK, get(open).Code)
}
