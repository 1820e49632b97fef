// Package realtime listens for server change notifications over websocket.
// Package realtime 通过 websocket 接收远端变更通知，作为同步的额外触发源
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/lxzan/gws"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config 实时通道配置
type Config struct {
	// URL websocket 地址，空表示关闭
	URL string
	// Token 鉴权令牌，以 Authorization: Bearer 发送
	Token string
	// ReconnectMin 断线后的首次重连等待
	ReconnectMin time.Duration
	// ReconnectMax 重连等待上限
	ReconnectMax time.Duration
	// PingInterval 心跳间隔
	PingInterval time.Duration
}

// Notice 服务端推送的消息
type Notice struct {
	Type       string `json:"type"`
	UID        string `json:"uid,omitempty"`
	EntityType string `json:"entityType,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
}

// NoticeChange 远端数据有变更
const NoticeChange = "change"

// Listener 变更通知监听器
type Listener struct {
	gws.BuiltinEventHandler

	config   Config
	uid      string
	onChange func(ctx context.Context, n *Notice)
	logger   *zap.Logger

	mu   sync.Mutex
	conn *gws.Conn
	ctx  context.Context
}

// New 创建监听器，onChange 在收到属于 uid 的变更通知时调用
func New(cfg Config, uid string, onChange func(ctx context.Context, n *Notice), logger *zap.Logger) *Listener {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{config: cfg, uid: uid, onChange: onChange, logger: logger}
}

// Run 保持连接直到 ctx 结束，断线后按指数退避重连
func (l *Listener) Run(ctx context.Context) {
	if l.config.URL == "" {
		return
	}
	l.ctx = ctx
	stop := context.AfterFunc(ctx, l.closeConn)
	defer stop()

	delay := l.config.ReconnectMin
	for ctx.Err() == nil {
		connected, err := l.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			delay = l.config.ReconnectMin
		}
		l.logger.Warn("realtime channel disconnected", zap.Error(err), zap.Duration("retryIn", delay))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		delay *= 2
		if delay > l.config.ReconnectMax {
			delay = l.config.ReconnectMax
		}
	}
}

func (l *Listener) connectAndServe(ctx context.Context) (bool, error) {
	header := http.Header{}
	if l.config.Token != "" {
		header.Set("Authorization", "Bearer "+l.config.Token)
	}
	conn, _, err := gws.NewClient(l, &gws.ClientOption{
		Addr:          l.config.URL,
		RequestHeader: header,
	})
	if err != nil {
		return false, errors.Wrap(err, "dial realtime channel")
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	if ctx.Err() != nil {
		l.closeConn()
	}

	if l.config.PingInterval > 0 {
		pingCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go l.keepAlive(pingCtx, conn)
	}

	conn.ReadLoop()

	l.mu.Lock()
	l.conn = nil
	l.mu.Unlock()
	return true, errors.New("connection closed")
}

func (l *Listener) keepAlive(ctx context.Context, conn *gws.Conn) {
	ticker := time.NewTicker(l.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WritePing(nil); err != nil {
				return
			}
		}
	}
}

func (l *Listener) closeConn() {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn != nil {
		_ = conn.WriteClose(1000, nil)
	}
}

// OnOpen 连接建立
func (l *Listener) OnOpen(socket *gws.Conn) {
	l.logger.Info("realtime channel connected", zap.String("url", l.config.URL))
}

// OnMessage 处理服务端通知
func (l *Listener) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	if message.Opcode != gws.OpcodeText {
		return
	}

	var n Notice
	if err := sonic.Unmarshal(message.Bytes(), &n); err != nil {
		l.logger.Debug("ignore malformed realtime message", zap.Error(err))
		return
	}
	if n.Type != NoticeChange || (n.UID != "" && n.UID != l.uid) {
		return
	}

	l.logger.Debug("remote change notice",
		zap.String(logger.FieldUID, l.uid),
		zap.String(logger.FieldEntityType, n.EntityType),
		zap.String(logger.FieldEntityID, n.EntityID))
	if l.onChange != nil {
		ctx := l.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		l.onChange(ctx, &n)
	}
}
