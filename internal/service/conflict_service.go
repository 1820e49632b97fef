package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	"github.com/haierkeys/fast-note-offline/pkg/diff"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConflictService 定义冲突解决接口
type ConflictService interface {
	// List 未解决的冲突，按发现时间排序
	List(ctx context.Context, uid string) ([]*domain.Conflict, error)
	// Get 获取单个冲突
	Get(ctx context.Context, uid, entityID string) (*domain.Conflict, error)
	// Preview 本地与远端版本的差异
	Preview(ctx context.Context, uid, entityID string) (*dto.ConflictPreview, error)
	// Resolve 按 local / server / both 解决冲突
	// 先持久化解决意图再执行，失败的意图在下一次同步开始时重放
	// 与同步互斥：同步进行中时等待其结束
	Resolve(ctx context.Context, uid, entityID string, choice domain.Resolution) error
	// ReplayPending 重放未完成的解决意图，返回完成数量
	ReplayPending(ctx context.Context, uid string) (int, error)
}

type conflictService struct {
	store    domain.LocalStore
	gate     *SyncGate
	resolver *resolver
	clock    timex.Clock
	logger   *zap.Logger
}

var _ ConflictService = (*conflictService)(nil)

// NewConflictService 创建 ConflictService 实例
func NewConflictService(store domain.LocalStore, remote domain.RemoteStore, gate *SyncGate, cfg SyncServiceConfig, clock timex.Clock, logger *zap.Logger) ConflictService {
	if clock == nil {
		clock = timex.System
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &conflictService{
		store:    store,
		gate:     gate,
		resolver: newResolver(store, remote, cfg, clock, logger),
		clock:    clock,
		logger:   logger,
	}
}

func (s *conflictService) List(ctx context.Context, uid string) ([]*domain.Conflict, error) {
	return s.store.Conflicts().List(ctx, uid)
}

func (s *conflictService) Get(ctx context.Context, uid, entityID string) (*domain.Conflict, error) {
	return s.store.Conflicts().Get(ctx, uid, entityID)
}

func (s *conflictService) Preview(ctx context.Context, uid, entityID string) (*dto.ConflictPreview, error) {
	c, err := s.Get(ctx, uid, entityID)
	if err != nil {
		return nil, err
	}
	p := &dto.ConflictPreview{Conflict: c}
	switch {
	case c.Note() != nil:
		nc := c.Note()
		p.TitleChanged = nc.Local.Title != nc.Server.Title
		p.Diff = diff.Unified(nc.Local.Content, nc.Server.Content)
	case c.Tag() != nil:
		tc := c.Tag()
		p.TitleChanged = tc.Local.Name != tc.Server.Name
		p.Diff = diff.Unified(tagText(tc.Local.Name, string(tc.Local.Color)), tagText(tc.Server.Name, tc.Server.Color))
	default:
		return nil, domain.ErrUnsupportedEntity
	}
	return p, nil
}

func tagText(name, color string) string {
	return fmt.Sprintf("name: %s\ncolor: %s\n", name, color)
}

func (s *conflictService) Resolve(ctx context.Context, uid, entityID string, choice domain.Resolution) error {
	if _, err := domain.ParseResolution(string(choice)); err != nil {
		return err
	}
	if err := s.gate.Enter(ctx); err != nil {
		return err
	}
	defer s.gate.Leave()

	c, err := s.store.Conflicts().Get(ctx, uid, entityID)
	if err != nil {
		return err
	}

	intent := &domain.ResolutionIntent{
		ID:         uuid.NewString(),
		UserID:     uid,
		EntityType: c.EntityType(),
		EntityID:   entityID,
		Choice:     choice,
		Conflict:   c,
		CreatedAt:  s.clock.Now(),
	}
	if choice == domain.ResolveBoth {
		intent.CopyID = uuid.NewString()
	}

	// 新的选择取代同一实体上尚未完成的意图
	err = s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		pending, err := s.store.Intents().List(ctx, uid)
		if err != nil {
			return err
		}
		for _, old := range pending {
			if old.EntityID != entityID {
				continue
			}
			if err := s.store.Intents().Delete(ctx, uid, old.ID); err != nil {
				return err
			}
		}
		return s.store.Intents().Create(ctx, intent)
	})
	if err != nil {
		return errors.Wrap(err, "persist resolution intent")
	}

	s.logger.Info("resolving conflict",
		zap.String(logger.FieldUID, uid),
		zap.String(logger.FieldEntityType, string(intent.EntityType)),
		zap.String(logger.FieldEntityID, entityID),
		zap.String(logger.FieldChoice, string(choice)))
	return s.resolver.apply(ctx, intent)
}

func (s *conflictService) ReplayPending(ctx context.Context, uid string) (int, error) {
	if err := s.gate.Enter(ctx); err != nil {
		return 0, err
	}
	defer s.gate.Leave()
	return s.resolver.replay(ctx, uid)
}
