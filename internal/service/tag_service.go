package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TagService 定义标签的离线操作接口
type TagService interface {
	// Create 创建标签，名称大小写不敏感唯一
	Create(ctx context.Context, uid string, params *dto.TagCreateRequest) (*domain.Tag, error)
	// Update 重命名或修改颜色
	Update(ctx context.Context, uid string, params *dto.TagUpdateRequest) (*domain.Tag, error)
	// Delete 删除标签及其关联
	Delete(ctx context.Context, uid, id string) error
	// Get 获取标签
	Get(ctx context.Context, uid, id string) (*domain.Tag, error)
	// List 按名称排序的标签列表
	List(ctx context.Context, uid string) ([]*domain.Tag, error)
}

type tagService struct {
	store  domain.LocalStore
	clock  timex.Clock
	logger *zap.Logger
}

var _ TagService = (*tagService)(nil)

// NewTagService 创建 TagService 实例
func NewTagService(store domain.LocalStore, clock timex.Clock, logger *zap.Logger) TagService {
	if clock == nil {
		clock = timex.System
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tagService{store: store, clock: clock, logger: logger}
}

func (s *tagService) Create(ctx context.Context, uid string, params *dto.TagCreateRequest) (*domain.Tag, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "tag name is empty")
	}
	return s.store.Tags().UpsertPending(ctx, &domain.Tag{
		ID:        uuid.NewString(),
		UserID:    uid,
		Name:      name,
		Color:     domain.NormalizeTagColor(params.Color),
		CreatedAt: s.clock.Now(),
	}, domain.PendingOpUpsert)
}

func (s *tagService) Update(ctx context.Context, uid string, params *dto.TagUpdateRequest) (*domain.Tag, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	tag, err := s.Get(ctx, uid, params.ID)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, errors.Wrap(domain.ErrInvalidInput, "tag name is empty")
		}
		tag.Name = name
	}
	if params.Color != nil {
		tag.Color = domain.NormalizeTagColor(*params.Color)
	}
	return s.store.Tags().UpsertPending(ctx, tag, domain.PendingOpUpsert)
}

// Delete 删除标签
// 关联先标记删除（推送时排在标签删除之前），从未同步的标签直接删除
func (s *tagService) Delete(ctx context.Context, uid, id string) error {
	tag, err := s.Get(ctx, uid, id)
	if err != nil {
		return err
	}
	return s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		if tag.Sync.NeverSynced() {
			if err := s.store.Conflicts().Delete(ctx, uid, id); err != nil {
				return err
			}
			return s.store.Tags().Remove(ctx, uid, id)
		}
		links, err := s.store.NoteTags().ListAll(ctx, uid)
		if err != nil {
			return err
		}
		for _, l := range links {
			if l.TagID != id {
				continue
			}
			if err := s.store.NoteTags().RemovePending(ctx, uid, l.NoteID, l.TagID); err != nil {
				return err
			}
		}
		_, err = s.store.Tags().UpsertPending(ctx, tag, domain.PendingOpDelete)
		return err
	})
}

func (s *tagService) Get(ctx context.Context, uid, id string) (*domain.Tag, error) {
	tag, err := s.store.Tags().GetByID(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	if tag.Sync.Op == domain.PendingOpDelete {
		return nil, domain.ErrNotFound
	}
	return tag, nil
}

func (s *tagService) List(ctx context.Context, uid string) ([]*domain.Tag, error) {
	return s.store.Tags().List(ctx, uid)
}
