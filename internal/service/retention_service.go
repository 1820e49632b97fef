package service

import (
	"context"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/retry"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RetentionService 回收站保留期清理
type RetentionService interface {
	// PurgeExpired 永久删除软删除时间早于保留期的笔记，返回本地已删除数量
	// 远端删除失败的笔记转为待推送删除
	PurgeExpired(ctx context.Context, uid string) (int, error)
}

type retentionService struct {
	store  domain.LocalStore
	remote domain.RemoteStore
	config SyncServiceConfig
	clock  timex.Clock
	logger *zap.Logger
}

var _ RetentionService = (*retentionService)(nil)

// NewRetentionService 创建 RetentionService 实例
func NewRetentionService(store domain.LocalStore, remote domain.RemoteStore, cfg SyncServiceConfig, clock timex.Clock, logger *zap.Logger) RetentionService {
	if clock == nil {
		clock = timex.System
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retentionService{store: store, remote: remote, config: cfg, clock: clock, logger: logger}
}

func (s *retentionService) PurgeExpired(ctx context.Context, uid string) (int, error) {
	if s.config.Retention <= 0 {
		return 0, nil
	}
	log := s.logger.With(zap.String(logger.FieldUID, uid))
	before := s.clock.Now().Add(-s.config.Retention)

	expired, err := s.store.Notes().ListDeletedBefore(ctx, uid, before)
	if err != nil {
		return 0, errors.Wrap(err, "list expired notes")
	}

	purged := 0
	for _, n := range expired {
		if n.Sync.NeverSynced() {
			if err := s.removeLocal(ctx, uid, n.ID); err != nil {
				return purged, err
			}
			purged++
			continue
		}

		err := retry.Run(ctx, func(ctx context.Context) error {
			return s.remote.DeleteNote(ctx, uid, n.ID)
		}, s.config.retryOptions(log, "delete note")...)
		if err != nil {
			log.Warn("remote purge failed, queued for next sync",
				zap.String(logger.FieldEntityID, n.ID),
				zap.Error(err))
			if _, err := s.store.Notes().UpsertPending(ctx, n, domain.PendingOpDelete); err != nil {
				return purged, err
			}
			continue
		}
		if err := s.removeLocal(ctx, uid, n.ID); err != nil {
			return purged, err
		}
		purged++
	}

	if purged > 0 {
		log.Info("expired notes purged", zap.Int(logger.FieldCount, purged))
	}
	return purged, nil
}

func (s *retentionService) removeLocal(ctx context.Context, uid, id string) error {
	return s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		if err := s.store.Conflicts().Delete(ctx, uid, id); err != nil {
			return err
		}
		return s.store.Notes().Remove(ctx, uid, id)
	})
}
