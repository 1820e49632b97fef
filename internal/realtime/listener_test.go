package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lxzan/gws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// pushServer 连接建立后依次推送 messages
func pushServer(t *testing.T, messages ...string) (*httptest.Server, *sync.Map) {
	t.Helper()
	headers := &sync.Map{}
	up := gws.NewUpgrader(&gws.BuiltinEventHandler{}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers.Store("auth", r.Header.Get("Authorization"))
		conn, err := up.Upgrade(w, r)
		if err != nil {
			return
		}
		go func() {
			for _, m := range messages {
				_ = conn.WriteMessage(gws.OpcodeText, []byte(m))
			}
			conn.ReadLoop()
		}()
	}))
	t.Cleanup(srv.Close)
	return srv, headers
}

func wsURL(srv *httptest.Server) string {
	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

func TestListenerTriggersOnChange(t *testing.T) {
	srv, headers := pushServer(t,
		`{"type":"hello"}`,
		`not json`,
		`{"type":"change","uid":"someone-else"}`,
		`{"type":"change","uid":"user-1","entityType":"note","entityId":"n1"}`,
	)

	got := make(chan *Notice, 4)
	l := New(Config{URL: wsURL(srv), Token: "secret"}, "user-1", func(_ context.Context, n *Notice) {
		got <- n
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	select {
	case n := <-got:
		assert.Equal(t, "note", n.EntityType)
		assert.Equal(t, "n1", n.EntityID)
	case <-time.After(3 * time.Second):
		t.Fatal("no change notice delivered")
	}

	auth, _ := headers.Load("auth")
	assert.Equal(t, "Bearer secret", auth)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not stop")
	}
	assert.Empty(t, got)
}

func TestListenerReconnects(t *testing.T) {
	var (
		mu    sync.Mutex
		dials int
	)
	up := gws.NewUpgrader(&gws.BuiltinEventHandler{}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dials++
		first := dials == 1
		mu.Unlock()
		conn, err := up.Upgrade(w, r)
		require.NoError(t, err)
		go func() {
			if first {
				_ = conn.WriteClose(1001, nil)
				return
			}
			_ = conn.WriteMessage(gws.OpcodeText, []byte(`{"type":"change"}`))
			conn.ReadLoop()
		}()
	}))
	defer srv.Close()

	got := make(chan struct{}, 1)
	l := New(Config{URL: wsURL(srv), ReconnectMin: 10 * time.Millisecond}, "user-1", func(context.Context, *Notice) {
		select {
		case got <- struct{}{}:
		default:
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not reconnect")
	}
	mu.Lock()
	assert.GreaterOrEqual(t, dials, 2)
	mu.Unlock()
}

func TestListenerDisabledWithoutURL(t *testing.T) {
	l := New(Config{}, "user-1", nil, nil)
	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately")
	}
}
