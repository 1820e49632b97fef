package service

import "github.com/haierkeys/fast-note-offline/internal/domain"

// SyncObserver receives sync lifecycle events (metrics, UI push)
// SyncObserver 接收同步生命周期事件
type SyncObserver interface {
	SyncStarted(trigger domain.SyncTrigger)
	SyncFinished(result *domain.SyncResult)
	PendingChanged(uid string, pending int64)
}

type nopObserver struct{}

func (nopObserver) SyncStarted(domain.SyncTrigger)  {}
func (nopObserver) SyncFinished(*domain.SyncResult) {}
func (nopObserver) PendingChanged(string, int64)    {}
