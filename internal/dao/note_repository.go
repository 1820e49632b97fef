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

// noteRepository 实现 domain.NoteRepository 接口
type noteRepository struct {
	dao  *Dao
	tags *tagRepository
}

// NewNoteRepository 创建 NoteRepository 实例
func NewNoteRepository(dao *Dao) domain.NoteRepository {
	return &noteRepository{dao: dao, tags: &tagRepository{dao: dao}}
}

// toDomain 将数据库模型转换为领域模型
func (r *noteRepository) toDomain(m *model.Note) *domain.Note {
	if m == nil {
		return nil
	}
	return &domain.Note{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Content:   m.Content,
		Pinned:    m.Pinned,
		DeletedAt: timex.PtrFromMilli(m.DeletedAt),
		CreatedAt: timex.FromMilli(m.CreatedAt),
		UpdatedAt: timex.FromMilli(m.UpdatedAt),
		Tags:      []*domain.Tag{},
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

// toModel 将领域模型转换为数据库模型
func (r *noteRepository) toModel(n *domain.Note) *model.Note {
	return &model.Note{
		UserID:          n.UserID,
		ID:              n.ID,
		Title:           n.Title,
		Content:         n.Content,
		Pinned:          n.Pinned,
		DeletedAt:       timex.PtrToMilli(n.DeletedAt),
		CreatedAt:       timex.ToMilli(n.CreatedAt),
		UpdatedAt:       timex.ToMilli(n.UpdatedAt),
		SyncStatus:      string(n.Sync.Status),
		PendingOp:       string(n.Sync.Op),
		LastSyncedAt:    timex.PtrToMilli(n.Sync.LastSyncedAt),
		ServerUpdatedAt: timex.PtrToMilli(n.Sync.ServerUpdatedAt),
		LocalUpdatedAt:  timex.ToMilli(n.Sync.LocalUpdatedAt),
		LocalVersion:    n.Sync.LocalVersion,
	}
}

// hydrateNotes 填充标签并叠加冲突状态
// noteIDs 为 nil 时加载该用户全部关联
func (r *noteRepository) hydrateNotes(ctx context.Context, uid string, ms []*model.Note, noteIDs []string) ([]*domain.Note, error) {
	notes := make([]*domain.Note, 0, len(ms))
	if len(ms) == 0 {
		return notes, nil
	}

	q := r.dao.DB(ctx).
		Where("user_id = ? AND pending_op <> ?", uid, string(domain.PendingOpDelete))
	if noteIDs != nil {
		q = q.Where("note_id IN ?", noteIDs)
	}
	var links []*model.NoteTag
	if err := q.Find(&links).Error; err != nil {
		return nil, err
	}

	var tagModels []*model.Tag
	if len(links) > 0 {
		if err := r.dao.DB(ctx).
			Where("user_id = ? AND pending_op <> ?", uid, string(domain.PendingOpDelete)).
			Order("name_fold ASC").
			Find(&tagModels).Error; err != nil {
			return nil, err
		}
	}
	tagByID := make(map[string]*domain.Tag, len(tagModels))
	for _, tm := range tagModels {
		tagByID[tm.ID] = r.tags.toDomain(tm)
	}
	tagsByNote := make(map[string][]*domain.Tag)
	for _, l := range links {
		if t, ok := tagByID[l.TagID]; ok {
			tagsByNote[l.NoteID] = append(tagsByNote[l.NoteID], t)
		}
	}

	conflicts, err := r.dao.conflictIDs(ctx, uid)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		n := r.toDomain(m)
		if ts, ok := tagsByNote[n.ID]; ok {
			sortTags(ts)
			n.Tags = ts
		}
		overlayConflict(&n.Sync, n.ID, conflicts)
		notes = append(notes, n)
	}
	return notes, nil
}

func (r *noteRepository) get(db *gorm.DB, uid, id string) (*model.Note, error) {
	var m model.Note
	if err := db.Where("user_id = ? AND id = ?", uid, id).Take(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetByID 根据 ID 获取笔记（含标签）
func (r *noteRepository) GetByID(ctx context.Context, uid, id string) (*domain.Note, error) {
	m, err := r.get(r.dao.DB(ctx), uid, id)
	if err != nil {
		return nil, err
	}
	notes, err := r.hydrateNotes(ctx, uid, []*model.Note{m}, []string{id})
	if err != nil {
		return nil, err
	}
	return notes[0], nil
}

// ListActive 未删除笔记，置顶优先，再按修改时间倒序
func (r *noteRepository) ListActive(ctx context.Context, uid string) ([]*domain.Note, error) {
	var ms []*model.Note
	err := r.dao.DB(ctx).
		Where("user_id = ? AND deleted_at IS NULL AND pending_op <> ?", uid, string(domain.PendingOpDelete)).
		Order("pinned DESC").
		Order("updated_at DESC").
		Order("id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return r.hydrateNotes(ctx, uid, ms, nil)
}

// ListDeleted 已软删除笔记，最近删除的在前
func (r *noteRepository) ListDeleted(ctx context.Context, uid string) ([]*domain.Note, error) {
	var ms []*model.Note
	err := r.dao.DB(ctx).
		Where("user_id = ? AND deleted_at IS NOT NULL AND pending_op <> ?", uid, string(domain.PendingOpDelete)).
		Order("deleted_at DESC").
		Order("id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return r.hydrateNotes(ctx, uid, ms, nil)
}

// Search 标题或正文大小写不敏感子串匹配
// 折叠比较在内存中完成，SQL LIKE 对非 ASCII 字符不做大小写折叠
func (r *noteRepository) Search(ctx context.Context, uid, query string) ([]*domain.Note, error) {
	notes, err := r.ListActive(ctx, uid)
	if err != nil || query == "" {
		return notes, err
	}
	out := make([]*domain.Note, 0, len(notes))
	for _, n := range notes {
		if util.ContainsFold(n.Title, query) || util.ContainsFold(n.Content, query) {
			out = append(out, n)
		}
	}
	return out, nil
}

// ListPending 待推送笔记（含待删除）
func (r *noteRepository) ListPending(ctx context.Context, uid string) ([]*domain.Note, error) {
	var ms []*model.Note
	err := r.dao.DB(ctx).
		Where("user_id = ? AND sync_status = ?", uid, string(domain.SyncStatusPending)).
		Order("local_updated_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	notes := make([]*domain.Note, 0, len(ms))
	for _, m := range ms {
		notes = append(notes, r.toDomain(m))
	}
	return notes, nil
}

// ListDeletedBefore 软删除时间早于 before 的笔记
func (r *noteRepository) ListDeletedBefore(ctx context.Context, uid string, before time.Time) ([]*domain.Note, error) {
	var ms []*model.Note
	err := r.dao.DB(ctx).
		Where("user_id = ? AND deleted_at IS NOT NULL AND deleted_at < ? AND pending_op <> ?",
			uid, before.UnixMilli(), string(domain.PendingOpDelete)).
		Order("deleted_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	notes := make([]*domain.Note, 0, len(ms))
	for _, m := range ms {
		notes = append(notes, r.toDomain(m))
	}
	return notes, nil
}

// Count 本地笔记数量
func (r *noteRepository) Count(ctx context.Context, uid string) (int64, error) {
	var n int64
	err := r.dao.DB(ctx).Model(&model.Note{}).Where("user_id = ?", uid).Count(&n).Error
	return n, err
}

// CountDeleted 已软删除笔记数量
func (r *noteRepository) CountDeleted(ctx context.Context, uid string) (int64, error) {
	var n int64
	err := r.dao.DB(ctx).Model(&model.Note{}).
		Where("user_id = ? AND deleted_at IS NOT NULL AND pending_op <> ?", uid, string(domain.PendingOpDelete)).
		Count(&n).Error
	return n, err
}

// UpsertPending 写入笔记并标记为 pending
// 同步状态、本地修改时间、版本号在同一语句中更新
func (r *noteRepository) UpsertPending(ctx context.Context, note *domain.Note, op domain.PendingOp) (*domain.Note, error) {
	var result *domain.Note
	err := r.dao.ExecuteWrite(ctx, note.UserID, func(db *gorm.DB) error {
		now := r.dao.nowMilli()
		existing, err := r.get(db, note.UserID, note.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		m := r.toModel(note)
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
			if err := db.Model(&model.Note{}).
				Where("user_id = ? AND id = ?", note.UserID, note.ID).
				Updates(map[string]interface{}{
					"title":            m.Title,
					"content":          m.Content,
					"pinned":           m.Pinned,
					"deleted_at":       m.DeletedAt,
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
		result.Tags = note.Tags
		if result.Tags == nil {
			result.Tags = []*domain.Tag{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSynced 推送成功后记录远端时间
func (r *noteRepository) MarkSynced(ctx context.Context, uid, id string, version int64, serverUpdatedAt time.Time) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Model(&model.Note{}).
			Where("user_id = ? AND id = ?", uid, id).
			Updates(markSyncedUpdates(version, serverUpdatedAt.UnixMilli(), r.dao.nowMilli(), true)).Error
	})
}

// ApplyRemote 以远端版本覆盖本地并标记 synced
func (r *noteRepository) ApplyRemote(ctx context.Context, note *domain.RemoteNote, syncedAt time.Time) error {
	return r.dao.ExecuteWrite(ctx, note.UserID, func(db *gorm.DB) error {
		var version int64
		if existing, err := r.get(db, note.UserID, note.ID); err == nil {
			version = existing.LocalVersion
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return db.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(remoteNoteModel(note, syncedAt, version)).Error
	})
}

func remoteNoteModel(note *domain.RemoteNote, syncedAt time.Time, version int64) *model.Note {
	server := note.UpdatedAt.UnixMilli()
	synced := syncedAt.UnixMilli()
	return &model.Note{
		UserID:          note.UserID,
		ID:              note.ID,
		Title:           note.Title,
		Content:         note.Content,
		Pinned:          note.Pinned,
		DeletedAt:       timex.PtrToMilli(note.DeletedAt),
		CreatedAt:       timex.ToMilli(note.CreatedAt),
		UpdatedAt:       server,
		SyncStatus:      string(domain.SyncStatusSynced),
		PendingOp:       string(domain.PendingOpNone),
		LastSyncedAt:    &synced,
		ServerUpdatedAt: &server,
		LocalUpdatedAt:  server,
		LocalVersion:    version,
	}
}

// Remove 物理删除笔记及其关联
func (r *noteRepository) Remove(ctx context.Context, uid, id string) error {
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ? AND note_id = ?", uid, id).Delete(&model.NoteTag{}).Error; err != nil {
				return err
			}
			return tx.Where("user_id = ? AND id = ?", uid, id).Delete(&model.Note{}).Error
		})
	})
}
