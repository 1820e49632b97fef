package service

import (
	"context"
	"sync/atomic"
)

// SyncGate 进程内唯一的同步闸门
// 同步与冲突解决共用一个槽位；同步遇到占用直接放弃，冲突解决则等待
type SyncGate struct {
	slot    chan struct{}
	syncing atomic.Bool
}

// NewSyncGate 创建闸门
func NewSyncGate() *SyncGate {
	return &SyncGate{slot: make(chan struct{}, 1)}
}

// TryEnter 非阻塞占用，成功时标记为同步中
func (g *SyncGate) TryEnter() bool {
	select {
	case g.slot <- struct{}{}:
		g.syncing.Store(true)
		return true
	default:
		return false
	}
}

// Enter 阻塞占用，不标记同步中
func (g *SyncGate) Enter(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave 释放槽位
func (g *SyncGate) Leave() {
	g.syncing.Store(false)
	<-g.slot
}

// Syncing 是否有同步正在进行
func (g *SyncGate) Syncing() bool {
	return g.syncing.Load()
}
