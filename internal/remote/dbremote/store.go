// Package dbremote implements the remote note store on a shared SQL database.
// Package dbremote 以共享 SQL 数据库实现远端笔记存储（notes / tags / note_tags）
package dbremote

import (
	"context"
	"sync"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// remoteNote 远端笔记表
type remoteNote struct {
	ID        string `gorm:"column:id;primaryKey;size:64"`
	UserID    string `gorm:"column:user_id;size:64;not null;index:idx_notes_user_updated,priority:1"`
	Title     string `gorm:"column:title;not null"`
	Content   string `gorm:"column:content;type:text"`
	Pinned    bool   `gorm:"column:pinned;not null"`
	DeletedAt *int64 `gorm:"column:deleted_at"`
	CreatedAt int64  `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt int64  `gorm:"column:updated_at;not null;autoUpdateTime:false;index:idx_notes_user_updated,priority:2"`
}

func (*remoteNote) TableName() string { return "notes" }

// remoteTag 远端标签表
type remoteTag struct {
	ID        string `gorm:"column:id;primaryKey;size:64"`
	UserID    string `gorm:"column:user_id;size:64;not null;index:idx_tags_user_updated,priority:1"`
	Name      string `gorm:"column:name;not null"`
	Color     string `gorm:"column:color;size:16;not null"`
	CreatedAt int64  `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt int64  `gorm:"column:updated_at;not null;autoUpdateTime:false;index:idx_tags_user_updated,priority:2"`
}

func (*remoteTag) TableName() string { return "tags" }

// remoteNoteTag 远端关联表
type remoteNoteTag struct {
	UserID string `gorm:"column:user_id;size:64;not null;index"`
	NoteID string `gorm:"column:note_id;primaryKey;size:64"`
	TagID  string `gorm:"column:tag_id;primaryKey;size:64"`
}

func (*remoteNoteTag) TableName() string { return "note_tags" }

// Store 实现 domain.RemoteStore
// updated_at 由本存储在每次写入时分配，同一进程内严格递增
type Store struct {
	db    *gorm.DB
	clock timex.Clock

	mu   sync.Mutex
	last int64
}

var _ domain.RemoteStore = (*Store)(nil)

// New 创建数据库远端
func New(db *gorm.DB, clock timex.Clock) *Store {
	if clock == nil {
		clock = timex.System
	}
	return &Store{db: db, clock: clock}
}

// Migrate 创建远端表
func (s *Store) Migrate() error {
	return errors.Wrap(s.db.AutoMigrate(&remoteNote{}, &remoteTag{}, &remoteNoteTag{}), "migrate remote tables")
}

// stamp 分配新的 updated_at
func (s *Store) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now().UnixMilli()
	if now <= s.last {
		now = s.last + 1
	}
	s.last = now
	return now
}

// Ping 探测数据库连接
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "network error: ping remote database")
	}
	return nil
}

func toRemoteNote(m *remoteNote) *domain.RemoteNote {
	return &domain.RemoteNote{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Content:   m.Content,
		Pinned:    m.Pinned,
		DeletedAt: timex.PtrFromMilli(m.DeletedAt),
		CreatedAt: timex.FromMilli(m.CreatedAt),
		UpdatedAt: timex.FromMilli(m.UpdatedAt),
	}
}

func toRemoteTag(m *remoteTag) *domain.RemoteTag {
	return &domain.RemoteTag{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Color:     m.Color,
		CreatedAt: timex.FromMilli(m.CreatedAt),
		UpdatedAt: timex.FromMilli(m.UpdatedAt),
	}
}

func (s *Store) scoped(ctx context.Context, uid string, since *time.Time) *gorm.DB {
	q := s.db.WithContext(ctx).Where("user_id = ?", uid)
	if since != nil {
		q = q.Where("updated_at >= ?", since.UnixMilli())
	}
	return q.Order("updated_at ASC").Order("id ASC")
}

// ListNotes 列出 updated_at >= since 的笔记
func (s *Store) ListNotes(ctx context.Context, uid string, since *time.Time) ([]*domain.RemoteNote, error) {
	var ms []*remoteNote
	if err := s.scoped(ctx, uid, since).Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "list notes")
	}
	out := make([]*domain.RemoteNote, 0, len(ms))
	for _, m := range ms {
		out = append(out, toRemoteNote(m))
	}
	return out, nil
}

// UpsertNote 创建或覆盖笔记
func (s *Store) UpsertNote(ctx context.Context, uid string, note *domain.RemoteNote) (*domain.RemoteNote, error) {
	if note.ID == "" {
		return nil, errors.New("400 Bad Request: note id is required")
	}
	created := timex.ToMilli(note.CreatedAt)
	if created == 0 {
		created = s.clock.Now().UnixMilli()
	}
	m := &remoteNote{
		ID:        note.ID,
		UserID:    uid,
		Title:     note.Title,
		Content:   note.Content,
		Pinned:    note.Pinned,
		DeletedAt: timex.PtrToMilli(note.DeletedAt),
		CreatedAt: created,
		UpdatedAt: s.stamp(),
	}
	if err := s.upsertOwned(ctx, uid, m.ID, &remoteNote{}, m); err != nil {
		return nil, err
	}
	return toRemoteNote(m), nil
}

// upsertOwned 写入记录，拒绝覆盖其他用户的同 ID 记录
func (s *Store) upsertOwned(ctx context.Context, uid, id string, table, m interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners []string
		if err := tx.Model(table).Where("id = ?", id).Pluck("user_id", &owners).Error; err != nil {
			return err
		}
		if len(owners) > 0 && owners[0] != uid {
			return errors.New("403 Forbidden: record belongs to another user")
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
	})
}

// DeleteNote 删除笔记及其关联
func (s *Store) DeleteNote(ctx context.Context, uid, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND note_id = ?", uid, id).Delete(&remoteNoteTag{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND id = ?", uid, id).Delete(&remoteNote{}).Error
	})
}

// ListTags 列出 updated_at >= since 的标签
func (s *Store) ListTags(ctx context.Context, uid string, since *time.Time) ([]*domain.RemoteTag, error) {
	var ms []*remoteTag
	if err := s.scoped(ctx, uid, since).Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "list tags")
	}
	out := make([]*domain.RemoteTag, 0, len(ms))
	for _, m := range ms {
		out = append(out, toRemoteTag(m))
	}
	return out, nil
}

// UpsertTag 创建或覆盖标签
func (s *Store) UpsertTag(ctx context.Context, uid string, tag *domain.RemoteTag) (*domain.RemoteTag, error) {
	if tag.ID == "" {
		return nil, errors.New("400 Bad Request: tag id is required")
	}
	created := timex.ToMilli(tag.CreatedAt)
	if created == 0 {
		created = s.clock.Now().UnixMilli()
	}
	m := &remoteTag{
		ID:        tag.ID,
		UserID:    uid,
		Name:      tag.Name,
		Color:     string(domain.NormalizeTagColor(tag.Color)),
		CreatedAt: created,
		UpdatedAt: s.stamp(),
	}
	if err := s.upsertOwned(ctx, uid, m.ID, &remoteTag{}, m); err != nil {
		return nil, err
	}
	return toRemoteTag(m), nil
}

// DeleteTag 删除标签及其关联
func (s *Store) DeleteTag(ctx context.Context, uid, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND tag_id = ?", uid, id).Delete(&remoteNoteTag{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND id = ?", uid, id).Delete(&remoteTag{}).Error
	})
}

// ListNoteTags 列出全部关联
func (s *Store) ListNoteTags(ctx context.Context, uid string) ([]*domain.RemoteNoteTag, error) {
	var ms []*remoteNoteTag
	if err := s.db.WithContext(ctx).Where("user_id = ?", uid).
		Order("note_id ASC").Order("tag_id ASC").
		Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "list note tags")
	}
	out := make([]*domain.RemoteNoteTag, 0, len(ms))
	for _, m := range ms {
		out = append(out, &domain.RemoteNoteTag{NoteID: m.NoteID, TagID: m.TagID})
	}
	return out, nil
}

// AddNoteTag 新增关联，已存在视为成功；引用的笔记或标签不存在时返回 404
func (s *Store) AddNoteTag(ctx context.Context, uid, noteID, tagID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var notes, tags int64
		if err := tx.Model(&remoteNote{}).Where("user_id = ? AND id = ?", uid, noteID).Count(&notes).Error; err != nil {
			return err
		}
		if err := tx.Model(&remoteTag{}).Where("user_id = ? AND id = ?", uid, tagID).Count(&tags).Error; err != nil {
			return err
		}
		if notes == 0 || tags == 0 {
			return errors.New("404 Not Found: note or tag does not exist")
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&remoteNoteTag{UserID: uid, NoteID: noteID, TagID: tagID}).Error
	})
}

// RemoveNoteTag 删除关联
func (s *Store) RemoveNoteTag(ctx context.Context, uid, noteID, tagID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND note_id = ? AND tag_id = ?", uid, noteID, tagID).
		Delete(&remoteNoteTag{}).Error
}
