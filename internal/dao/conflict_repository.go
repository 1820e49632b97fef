package dao

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/model"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// conflictRepository 实现 domain.ConflictRepository 接口
type conflictRepository struct {
	dao *Dao
}

// NewConflictRepository 创建 ConflictRepository 实例
func NewConflictRepository(dao *Dao) domain.ConflictRepository {
	return &conflictRepository{dao: dao}
}

func (r *conflictRepository) toDomain(m *model.SyncConflict) (*domain.Conflict, error) {
	payload, err := domain.DecodeConflictPayload(domain.EntityType(m.EntityType), []byte(m.Payload))
	if err != nil {
		return nil, errors.Wrapf(err, "decode conflict %s", m.EntityID)
	}
	return &domain.Conflict{
		UserID:     m.UserID,
		EntityID:   m.EntityID,
		DetectedAt: timex.FromMilli(m.DetectedAt),
		Payload:    payload,
	}, nil
}

// Save 写入冲突，同一实体的旧冲突被替换
func (r *conflictRepository) Save(ctx context.Context, c *domain.Conflict) error {
	if c.Payload == nil {
		return domain.ErrUnsupportedEntity
	}
	payload, err := sonic.Marshal(c.Payload)
	if err != nil {
		return errors.Wrap(err, "encode conflict payload")
	}
	m := &model.SyncConflict{
		UserID:     c.UserID,
		EntityID:   c.EntityID,
		EntityType: string(c.EntityType()),
		Payload:    string(payload),
		DetectedAt: timex.ToMilli(c.DetectedAt),
	}
	return r.dao.ExecuteWrite(ctx, c.UserID, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
	})
}

// Get 获取冲突，不存在返回 ErrConflictNotFound
func (r *conflictRepository) Get(ctx context.Context, uid, entityID string) (*domain.Conflict, error) {
	var m model.SyncConflict
	err := r.dao.DB(ctx).Where("user_id = ? AND entity_id = ?", uid, entityID).Take(&m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrConflictNotFound
		}
		return nil, err
	}
	return r.toDomain(&m)
}

// List 全部未解决冲突，按发现时间排序
func (r *conflictRepository) List(ctx context.Context, uid string) ([]*domain.Conflict, error) {
	var ms []*model.SyncConflict
	err := r.dao.DB(ctx).Where("user_id = ?", uid).
		Order("detected_at ASC").
		Order("entity_id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Conflict, 0, len(ms))
	for _, m := range ms {
		c, err := r.toDomain(m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Delete 删除冲突，不存在时不报错
func (r *conflictRepository) Delete(ctx context.Context, uid, entityID string) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Where("user_id = ? AND entity_id = ?", uid, entityID).Delete(&model.SyncConflict{}).Error
	})
}

// EntityIDs 存在冲突的实体 ID 集合
func (r *conflictRepository) EntityIDs(ctx context.Context, uid string) (map[string]struct{}, error) {
	return r.dao.conflictIDs(ctx, uid)
}
