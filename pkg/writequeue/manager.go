// Package writequeue serializes local store writes per user.
// Package writequeue 按用户串行化本地存储写操作
// SQLite allows a single writer; funnelling writes through one goroutine per user avoids "database is locked".
// SQLite 只允许单写者，每用户一个写 goroutine 可避免 "database is locked"
package writequeue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrWriteQueueFull 用户写队列已满
	ErrWriteQueueFull = errors.New("write queue is full")
	// ErrWriteQueueClosed 写队列管理器已关闭
	ErrWriteQueueClosed = errors.New("write queue is closed")
	// ErrWriteTimeout 写操作超时
	ErrWriteTimeout = errors.New("write operation timeout")
)

// Config 写队列配置
type Config struct {
	// QueueCapacity 每用户队列容量，默认 100
	QueueCapacity int
	// WriteTimeout 写操作超时时间，默认 30 秒
	WriteTimeout time.Duration
	// IdleTimeout 空闲队列回收时间，默认 10 分钟
	IdleTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		QueueCapacity: 100,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   10 * time.Minute,
	}
}

type writeOp struct {
	ctx    context.Context
	fn     func() error
	result chan error
}

type queue struct {
	key      string
	ch       chan writeOp
	lastUsed time.Time
	stop     chan struct{}
}

// Manager 管理所有用户的写队列
type Manager struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	queues map[string]*queue
	closed bool

	wg   sync.WaitGroup
	done chan struct{}
}

// New 创建写队列管理器，cfg 为 nil 时使用默认配置
func New(cfg *Config, logger *zap.Logger) *Manager {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.QueueCapacity > 0 {
			c.QueueCapacity = cfg.QueueCapacity
		}
		if cfg.WriteTimeout > 0 {
			c.WriteTimeout = cfg.WriteTimeout
		}
		if cfg.IdleTimeout > 0 {
			c.IdleTimeout = cfg.IdleTimeout
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		config: c,
		logger: logger,
		queues: make(map[string]*queue),
		done:   make(chan struct{}),
	}

	m.wg.Add(1)
	go m.reapIdle()

	return m
}

// Execute 在 key 对应的队列中执行 fn 并等待结果
// 同一 key 的写操作按 FIFO 顺序串行执行
func (m *Manager) Execute(ctx context.Context, key string, fn func() error) error {
	result := make(chan error, 1)
	op := writeOp{ctx: ctx, fn: fn, result: result}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrWriteQueueClosed
	}
	q := m.queueLocked(key)
	select {
	case q.ch <- op:
	default:
		m.mu.Unlock()
		return ErrWriteQueueFull
	}
	m.mu.Unlock()

	timer := time.NewTimer(m.config.WriteTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWriteTimeout
	}
}

func (m *Manager) queueLocked(key string) *queue {
	q, ok := m.queues[key]
	if !ok {
		q = &queue{
			key:  key,
			ch:   make(chan writeOp, m.config.QueueCapacity),
			stop: make(chan struct{}),
		}
		m.queues[key] = q
		m.wg.Add(1)
		go m.work(q)
		m.logger.Debug("write queue created", zap.String("key", key))
	}
	q.lastUsed = time.Now()
	return q
}

func (m *Manager) work(q *queue) {
	defer m.wg.Done()
	for {
		select {
		case op := <-q.ch:
			run(op)
		case <-q.stop:
			// 处理剩余操作后退出
			for {
				select {
				case op := <-q.ch:
					run(op)
				default:
					return
				}
			}
		}
	}
}

func run(op writeOp) {
	if err := op.ctx.Err(); err != nil {
		op.result <- err
		return
	}
	op.result <- op.fn()
}

func (m *Manager) reapIdle() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for key, q := range m.queues {
				if len(q.ch) == 0 && now.Sub(q.lastUsed) > m.config.IdleTimeout {
					close(q.stop)
					delete(m.queues, key)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Shutdown 停止接收新写操作，等待已排队操作完成
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for key, q := range m.queues {
		close(q.stop)
		delete(m.queues, key)
	}
	close(m.done)
	m.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.logger.Info("write queue manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
