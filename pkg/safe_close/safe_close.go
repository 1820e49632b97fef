// Package safe_close 协调多个后台 goroutine 的统一关闭
package safe_close

import (
	"sync"
)

// SafeClose 关闭协调器
// Attach 注册的函数收到关闭信号后必须调用 done
type SafeClose struct {
	once     sync.Once
	closeCh  chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	closeErr error
}

// NewSafeClose 创建关闭协调器
func NewSafeClose() *SafeClose {
	return &SafeClose{closeCh: make(chan struct{})}
}

// Attach 在新 goroutine 中运行 fn
func (s *SafeClose) Attach(fn func(done func(), closeSignal <-chan struct{})) {
	s.wg.Add(1)
	var doneOnce sync.Once
	done := func() { doneOnce.Do(s.wg.Done) }
	go fn(done, s.closeCh)
}

// SendCloseSignal 广播关闭信号，仅第一次调用生效
// err 为触发关闭的原因，可为 nil
func (s *SafeClose) SendCloseSignal(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.closeErr = err
		s.mu.Unlock()
		close(s.closeCh)
	})
}

// CloseSignal 返回关闭信号通道
func (s *SafeClose) CloseSignal() <-chan struct{} {
	return s.closeCh
}

// WaitClosed 等待所有已注册函数结束，返回触发关闭的错误
func (s *SafeClose) WaitClosed() error {
	<-s.closeCh
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}
