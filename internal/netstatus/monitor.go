// Package netstatus watches remote reachability and reports reconnects.
// Package netstatus 探测远端可达性，在恢复连接后发出通知
package netstatus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pinger 可探测的远端
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config 探测配置
type Config struct {
	// Interval 探测间隔
	Interval time.Duration
	// SettleDelay 恢复连接后等待多久再通知，期间再次断开则取消
	SettleDelay time.Duration
	// Timeout 单次探测超时
	Timeout time.Duration
}

// Monitor 连接状态监视器
type Monitor struct {
	pinger Pinger
	config Config
	logger *zap.Logger

	online atomic.Bool
	known  atomic.Bool

	mu          sync.RWMutex
	onReconnect []func(ctx context.Context)
}

// New 创建监视器
func New(pinger Pinger, cfg Config, logger *zap.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{pinger: pinger, config: cfg, logger: logger}
}

// OnReconnect 注册恢复连接回调
func (m *Monitor) OnReconnect(fn func(ctx context.Context)) {
	m.mu.Lock()
	m.onReconnect = append(m.onReconnect, fn)
	m.mu.Unlock()
}

// Online 最近一次探测是否成功
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Check 探测一次并更新状态，返回是否刚从离线恢复
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	err := m.pinger.Ping(pctx)
	cancel()

	up := err == nil
	was := m.online.Swap(up)
	first := !m.known.Swap(true)

	switch {
	case first:
		m.logger.Info("remote reachability", zap.Bool("online", up))
		return false
	case was && !up:
		m.logger.Warn("remote unreachable", zap.Error(err))
	case !was && up:
		m.logger.Info("remote reachable again")
		return true
	}
	return false
}

// Run 周期探测直到 ctx 结束
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.Check(ctx) {
				m.settleAndNotify(ctx)
			}
		}
	}
}

func (m *Monitor) settleAndNotify(ctx context.Context) {
	if m.config.SettleDelay > 0 {
		t := time.NewTimer(m.config.SettleDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if !m.Online() {
			return
		}
	}

	m.mu.RLock()
	fns := make([]func(ctx context.Context), len(m.onReconnect))
	copy(fns, m.onReconnect)
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx)
	}
}
