package dao

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/model"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// noteTagRepository 实现 domain.NoteTagRepository 接口
type noteTagRepository struct {
	dao *Dao
}

// NewNoteTagRepository 创建 NoteTagRepository 实例
func NewNoteTagRepository(dao *Dao) domain.NoteTagRepository {
	return &noteTagRepository{dao: dao}
}

func (r *noteTagRepository) toDomain(m *model.NoteTag) *domain.NoteTag {
	return &domain.NoteTag{
		UserID:    m.UserID,
		NoteID:    m.NoteID,
		TagID:     m.TagID,
		CreatedAt: timex.FromMilli(m.CreatedAt),
		Sync: syncColumns{
			Status:         m.SyncStatus,
			Op:             m.PendingOp,
			LastSyncedAt:   m.LastSyncedAt,
			LocalUpdatedAt: m.LocalUpdatedAt,
			LocalVersion:   m.LocalVersion,
		}.toDomain(),
	}
}

func (r *noteTagRepository) toDomains(ms []*model.NoteTag) []*domain.NoteTag {
	out := make([]*domain.NoteTag, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out
}

func (r *noteTagRepository) get(db *gorm.DB, uid, noteID, tagID string) (*model.NoteTag, error) {
	var m model.NoteTag
	err := db.Where("user_id = ? AND note_id = ? AND tag_id = ?", uid, noteID, tagID).Take(&m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Get 获取关联
func (r *noteTagRepository) Get(ctx context.Context, uid, noteID, tagID string) (*domain.NoteTag, error) {
	m, err := r.get(r.dao.DB(ctx), uid, noteID, tagID)
	if err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// ListAll 全部关联（含待删除）
func (r *noteTagRepository) ListAll(ctx context.Context, uid string) ([]*domain.NoteTag, error) {
	var ms []*model.NoteTag
	if err := r.dao.DB(ctx).Where("user_id = ?", uid).Find(&ms).Error; err != nil {
		return nil, err
	}
	return r.toDomains(ms), nil
}

// ListPending 待推送关联
func (r *noteTagRepository) ListPending(ctx context.Context, uid string) ([]*domain.NoteTag, error) {
	var ms []*model.NoteTag
	err := r.dao.DB(ctx).
		Where("user_id = ? AND sync_status = ?", uid, string(domain.SyncStatusPending)).
		Order("local_updated_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return r.toDomains(ms), nil
}

// AddPending 新增关联
// 笔记与标签必须已在本地存在；待删除的关联会被撤销
func (r *noteTagRepository) AddPending(ctx context.Context, uid, noteID, tagID string) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		var notes, tags int64
		if err := db.Model(&model.Note{}).
			Where("user_id = ? AND id = ? AND pending_op <> ?", uid, noteID, string(domain.PendingOpDelete)).
			Count(&notes).Error; err != nil {
			return err
		}
		if err := db.Model(&model.Tag{}).
			Where("user_id = ? AND id = ? AND pending_op <> ?", uid, tagID, string(domain.PendingOpDelete)).
			Count(&tags).Error; err != nil {
			return err
		}
		if notes == 0 || tags == 0 {
			return domain.ErrNotFound
		}

		now := r.dao.nowMilli()
		existing, err := r.get(db, uid, noteID, tagID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if existing == nil {
			return db.Create(&model.NoteTag{
				UserID:         uid,
				NoteID:         noteID,
				TagID:          tagID,
				CreatedAt:      now,
				SyncStatus:     string(domain.SyncStatusPending),
				PendingOp:      string(domain.PendingOpUpsert),
				LocalUpdatedAt: now,
				LocalVersion:   1,
			}).Error
		}
		if existing.PendingOp != string(domain.PendingOpDelete) {
			return nil
		}

		// 远端仍有该关联时撤销删除即可
		status, op := domain.SyncStatusPending, domain.PendingOpUpsert
		if existing.LastSyncedAt != nil {
			status, op = domain.SyncStatusSynced, domain.PendingOpNone
		}
		return db.Model(&model.NoteTag{}).
			Where("user_id = ? AND note_id = ? AND tag_id = ?", uid, noteID, tagID).
			Updates(map[string]interface{}{
				"sync_status":      string(status),
				"pending_op":       string(op),
				"local_updated_at": now,
				"local_version":    existing.LocalVersion + 1,
			}).Error
	})
}

// RemovePending 标记关联待删除；从未同步过的关联直接删除
func (r *noteTagRepository) RemovePending(ctx context.Context, uid, noteID, tagID string) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		existing, err := r.get(db, uid, noteID, tagID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		where := db.Where("user_id = ? AND note_id = ? AND tag_id = ?", uid, noteID, tagID)
		if existing.LastSyncedAt == nil {
			return where.Delete(&model.NoteTag{}).Error
		}
		return where.Model(&model.NoteTag{}).Updates(map[string]interface{}{
			"sync_status":      string(domain.SyncStatusPending),
			"pending_op":       string(domain.PendingOpDelete),
			"local_updated_at": r.dao.nowMilli(),
			"local_version":    existing.LocalVersion + 1,
		}).Error
	})
}

// MarkSynced 推送成功
func (r *noteTagRepository) MarkSynced(ctx context.Context, uid, noteID, tagID string, version int64) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Model(&model.NoteTag{}).
			Where("user_id = ? AND note_id = ? AND tag_id = ?", uid, noteID, tagID).
			Updates(markSyncedUpdates(version, 0, r.dao.nowMilli(), false)).Error
	})
}

// ApplyRemote 写入远端关联并标记 synced
func (r *noteTagRepository) ApplyRemote(ctx context.Context, uid, noteID, tagID string, syncedAt time.Time) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		synced := syncedAt.UnixMilli()
		return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model.NoteTag{
			UserID:         uid,
			NoteID:         noteID,
			TagID:          tagID,
			CreatedAt:      synced,
			SyncStatus:     string(domain.SyncStatusSynced),
			PendingOp:      string(domain.PendingOpNone),
			LastSyncedAt:   &synced,
			LocalUpdatedAt: synced,
		}).Error
	})
}

// Remove 物理删除关联
func (r *noteTagRepository) Remove(ctx context.Context, uid, noteID, tagID string) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Where("user_id = ? AND note_id = ? AND tag_id = ?", uid, noteID, tagID).
			Delete(&model.NoteTag{}).Error
	})
}

// ReassignTag 将 fromTagID 的关联迁移到 toTagID，已存在的目标关联保留
func (r *noteTagRepository) ReassignTag(ctx context.Context, uid, fromTagID, toTagID string) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var links []*model.NoteTag
			if err := tx.Where("user_id = ? AND tag_id = ?", uid, fromTagID).Find(&links).Error; err != nil {
				return err
			}
			now := r.dao.nowMilli()
			for _, l := range links {
				if l.PendingOp == string(domain.PendingOpDelete) {
					continue
				}
				_, err := r.get(tx, uid, l.NoteID, toTagID)
				if errors.Is(err, domain.ErrNotFound) {
					if err := tx.Create(&model.NoteTag{
						UserID:         uid,
						NoteID:         l.NoteID,
						TagID:          toTagID,
						CreatedAt:      l.CreatedAt,
						SyncStatus:     string(domain.SyncStatusPending),
						PendingOp:      string(domain.PendingOpUpsert),
						LocalUpdatedAt: now,
						LocalVersion:   1,
					}).Error; err != nil {
						return err
					}
				} else if err != nil {
					return err
				}
			}
			return tx.Where("user_id = ? AND tag_id = ?", uid, fromTagID).Delete(&model.NoteTag{}).Error
		})
	})
}
