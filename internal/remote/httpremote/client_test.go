package httpremote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu      sync.Mutex
	notes   map[string]*domain.RemoteNote
	headers http.Header
	since   string
	clock   time.Time
}

func newFakeServer(t *testing.T) (*fakeServer, *Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fs := &fakeServer{notes: map[string]*domain.RemoteNote{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	r := gin.New()
	r.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/api/notes", func(c *gin.Context) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.headers = c.Request.Header.Clone()
		fs.since = c.Query("since")
		out := make([]*domain.RemoteNote, 0, len(fs.notes))
		for _, n := range fs.notes {
			out = append(out, n)
		}
		c.JSON(http.StatusOK, out)
	})
	r.PUT("/api/notes/:id", func(c *gin.Context) {
		var n domain.RemoteNote
		if err := c.ShouldBindJSON(&n); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.clock = fs.clock.Add(time.Second)
		n.UpdatedAt = fs.clock
		n.UserID = c.GetHeader(headerUserID)
		fs.notes[n.ID] = &n
		c.JSON(http.StatusOK, n)
	})
	r.DELETE("/api/notes/:id", func(c *gin.Context) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if _, ok := fs.notes[c.Param("id")]; !ok {
			c.String(http.StatusNotFound, "no such note")
			return
		}
		delete(fs.notes, c.Param("id"))
		c.Status(http.StatusNoContent)
	})
	r.GET("/api/tags", func(c *gin.Context) {
		c.String(http.StatusServiceUnavailable, "maintenance")
	})
	r.PUT("/api/note_tags/:note/:tag", func(c *gin.Context) {
		c.String(http.StatusConflict, "exists")
	})
	r.PUT("/api/tags/:id", func(c *gin.Context) {
		c.String(http.StatusUnprocessableEntity, "bad color")
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		BaseURL:  srv.URL + "/api/",
		Token:    "secret",
		DeviceID: "device-1",
	}, srv.Client(), nil)
	require.NoError(t, err)
	return fs, client
}

func TestClientNoteRoundTrip(t *testing.T) {
	fs, c := newFakeServer(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	saved, err := c.UpsertNote(ctx, "u1", &domain.RemoteNote{ID: "n1", Title: "hello", Pinned: true})
	require.NoError(t, err)
	assert.Equal(t, "u1", saved.UserID)
	assert.False(t, saved.UpdatedAt.IsZero())

	since := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	notes, err := c.ListNotes(ctx, "u1", &since)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "hello", notes[0].Title)
	assert.True(t, notes[0].Pinned)

	assert.Equal(t, "Bearer secret", fs.headers.Get("Authorization"))
	assert.Equal(t, "device-1", fs.headers.Get(headerDeviceID))
	assert.Equal(t, "2023-12-31T00:00:00Z", fs.since)

	require.NoError(t, c.DeleteNote(ctx, "u1", "n1"))
	// 不存在的记录删除视为成功
	require.NoError(t, c.DeleteNote(ctx, "u1", "n1"))
}

func TestClientErrorsClassify(t *testing.T) {
	_, c := newFakeServer(t)
	ctx := context.Background()

	_, err := c.ListTags(ctx, "u1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503 Service Unavailable")
	assert.True(t, retry.IsRetryable(err))

	_, err = c.UpsertTag(ctx, "u1", &domain.RemoteTag{ID: "t1", Name: "x"})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode())
	assert.False(t, retry.IsRetryable(err))

	assert.NoError(t, c.AddNoteTag(ctx, "u1", "n1", "t1"))
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url}, nil, nil)
	require.NoError(t, err)

	err = c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network error")
	assert.True(t, retry.IsRetryable(err))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"}, nil, nil)
	assert.Error(t, err)
}

func TestRateLimitHonoursContext(t *testing.T) {
	limited, err := New(Config{BaseURL: "http://127.0.0.1:1", RateLimit: 0.001, Burst: 1}, nil, nil)
	require.NoError(t, err)
	// 第一个令牌立即可用，第二次需等待
	require.NoError(t, limited.wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, limited.wait(ctx), context.Canceled)
}
