package dao

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/model"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/util"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tagRepository 实现 domain.TagRepository 接口
type tagRepository struct {
	dao *Dao
}

// NewTagRepository 创建 TagRepository 实例
func NewTagRepository(dao *Dao) domain.TagRepository {
	return &tagRepository{dao: dao}
}

func (r *tagRepository) toDomain(m *model.Tag) *domain.Tag {
	if m == nil {
		return nil
	}
	return &domain.Tag{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Color:     domain.NormalizeTagColor(m.Color),
		CreatedAt: timex.FromMilli(m.CreatedAt),
		UpdatedAt: timex.FromMilli(m.UpdatedAt),
		Sync: syncColumns{
			Status:          m.SyncStatus,
			Op:              m.PendingOp,
			LastSyncedAt:    m.LastSyncedAt,
			ServerUpdatedAt: m.ServerUpdatedAt,
			LocalUpdatedAt:  m.LocalUpdatedAt,
			LocalVersion:    m.LocalVersion,
		}.toDomain(),
	}
}

func (r *tagRepository) toModel(t *domain.Tag) *model.Tag {
	return &model.Tag{
		UserID:          t.UserID,
		ID:              t.ID,
		Name:            t.Name,
		NameFold:        util.FoldName(t.Name),
		Color:           string(domain.NormalizeTagColor(string(t.Color))),
		CreatedAt:       timex.ToMilli(t.CreatedAt),
		UpdatedAt:       timex.ToMilli(t.UpdatedAt),
		SyncStatus:      string(t.Sync.Status),
		PendingOp:       string(t.Sync.Op),
		LastSyncedAt:    timex.PtrToMilli(t.Sync.LastSyncedAt),
		ServerUpdatedAt: timex.PtrToMilli(t.Sync.ServerUpdatedAt),
		LocalUpdatedAt:  timex.ToMilli(t.Sync.LocalUpdatedAt),
		LocalVersion:    t.Sync.LocalVersion,
	}
}

func (r *tagRepository) withConflicts(ctx context.Context, uid string, tags []*domain.Tag) ([]*domain.Tag, error) {
	conflicts, err := r.dao.conflictIDs(ctx, uid)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		overlayConflict(&t.Sync, t.ID, conflicts)
	}
	return tags, nil
}

func (r *tagRepository) get(db *gorm.DB, uid, id string) (*model.Tag, error) {
	var m model.Tag
	if err := db.Where("user_id = ? AND id = ?", uid, id).Take(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetByID 根据 ID 获取标签
func (r *tagRepository) GetByID(ctx context.Context, uid, id string) (*domain.Tag, error) {
	m, err := r.get(r.dao.DB(ctx), uid, id)
	if err != nil {
		return nil, err
	}
	tags, err := r.withConflicts(ctx, uid, []*domain.Tag{r.toDomain(m)})
	if err != nil {
		return nil, err
	}
	return tags[0], nil
}

// GetByName 大小写不敏感按名称查找（不含待删除）
func (r *tagRepository) GetByName(ctx context.Context, uid, name string) (*domain.Tag, error) {
	var m model.Tag
	err := r.dao.DB(ctx).
		Where("user_id = ? AND name_fold = ? AND pending_op <> ?", uid, util.FoldName(name), string(domain.PendingOpDelete)).
		Take(&m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// List 未待删除的标签，按名称排序
func (r *tagRepository) List(ctx context.Context, uid string) ([]*domain.Tag, error) {
	var ms []*model.Tag
	err := r.dao.DB(ctx).
		Where("user_id = ? AND pending_op <> ?", uid, string(domain.PendingOpDelete)).
		Order("name_fold ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return r.withConflicts(ctx, uid, r.toDomains(ms))
}

// ListPending 待推送标签
func (r *tagRepository) ListPending(ctx context.Context, uid string) ([]*domain.Tag, error) {
	var ms []*model.Tag
	err := r.dao.DB(ctx).
		Where("user_id = ? AND sync_status = ?", uid, string(domain.SyncStatusPending)).
		Order("local_updated_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return r.toDomains(ms), nil
}

func (r *tagRepository) toDomains(ms []*model.Tag) []*domain.Tag {
	out := make([]*domain.Tag, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out
}

// UpsertPending 写入标签并标记为 pending
func (r *tagRepository) UpsertPending(ctx context.Context, tag *domain.Tag, op domain.PendingOp) (*domain.Tag, error) {
	var result *domain.Tag
	err := r.dao.ExecuteWrite(ctx, tag.UserID, func(db *gorm.DB) error {
		fold := util.FoldName(tag.Name)
		var dup int64
		if err := db.Model(&model.Tag{}).
			Where("user_id = ? AND name_fold = ? AND id <> ?", tag.UserID, fold, tag.ID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return domain.ErrDuplicateTagName
		}

		now := r.dao.nowMilli()
		existing, err := r.get(db, tag.UserID, tag.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		m := r.toModel(tag)
		m.SyncStatus = string(domain.SyncStatusPending)
		m.PendingOp = string(op)
		m.UpdatedAt = now
		m.LocalUpdatedAt = now

		if existing == nil {
			if m.CreatedAt == 0 {
				m.CreatedAt = now
			}
			m.LastSyncedAt = nil
			m.ServerUpdatedAt = nil
			m.LocalVersion = 1
			if err := db.Create(m).Error; err != nil {
				return err
			}
		} else {
			m.CreatedAt = existing.CreatedAt
			m.LastSyncedAt = existing.LastSyncedAt
			m.ServerUpdatedAt = existing.ServerUpdatedAt
			m.LocalVersion = existing.LocalVersion + 1
			if err := db.Model(&model.Tag{}).
				Where("user_id = ? AND id = ?", tag.UserID, tag.ID).
				Updates(map[string]interface{}{
					"name":             m.Name,
					"name_fold":        m.NameFold,
					"color":            m.Color,
					"updated_at":       m.UpdatedAt,
					"sync_status":      m.SyncStatus,
					"pending_op":       m.PendingOp,
					"local_updated_at": m.LocalUpdatedAt,
					"local_version":    m.LocalVersion,
				}).Error; err != nil {
				return err
			}
		}
		result = r.toDomain(m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSynced 推送成功
func (r *tagRepository) MarkSynced(ctx context.Context, uid, id string, version int64, serverUpdatedAt time.Time) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Model(&model.Tag{}).
			Where("user_id = ? AND id = ?", uid, id).
			Updates(markSyncedUpdates(version, serverUpdatedAt.UnixMilli(), r.dao.nowMilli(), true)).Error
	})
}

// ApplyRemote 以远端版本覆盖本地
func (r *tagRepository) ApplyRemote(ctx context.Context, tag *domain.RemoteTag, syncedAt time.Time) error {
	return r.dao.ExecuteWrite(ctx, tag.UserID, func(db *gorm.DB) error {
		var version int64
		if existing, err := r.get(db, tag.UserID, tag.ID); err == nil {
			version = existing.LocalVersion
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		server := tag.UpdatedAt.UnixMilli()
		synced := syncedAt.UnixMilli()
		m := &model.Tag{
			UserID:          tag.UserID,
			ID:              tag.ID,
			Name:            tag.Name,
			NameFold:        util.FoldName(tag.Name),
			Color:           string(domain.NormalizeTagColor(tag.Color)),
			CreatedAt:       timex.ToMilli(tag.CreatedAt),
			UpdatedAt:       server,
			SyncStatus:      string(domain.SyncStatusSynced),
			PendingOp:       string(domain.PendingOpNone),
			LastSyncedAt:    &synced,
			ServerUpdatedAt: &server,
			LocalUpdatedAt:  server,
			LocalVersion:    version,
		}
		return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
	})
}

// Remove 物理删除标签及其关联
func (r *tagRepository) Remove(ctx context.Context, uid, id string) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ? AND tag_id = ?", uid, id).Delete(&model.NoteTag{}).Error; err != nil {
				return err
			}
			return tx.Where("user_id = ? AND id = ?", uid, id).Delete(&model.Tag{}).Error
		})
	})
}
