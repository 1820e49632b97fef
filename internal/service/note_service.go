package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/sanitize"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/util"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NoteService 定义笔记的离线操作接口
// 所有写操作只修改本地存储并将记录标记为 pending，由同步引擎推送
type NoteService interface {
	// Create 创建笔记，可同时关联标签
	Create(ctx context.Context, uid string, params *dto.NoteCreateRequest) (*domain.Note, error)
	// Update 修改标题、正文或置顶状态
	Update(ctx context.Context, uid string, params *dto.NoteUpdateRequest) (*domain.Note, error)
	// Get 获取笔记（含标签）
	Get(ctx context.Context, uid, id string) (*domain.Note, error)
	// List 列出笔记：回收站、搜索、标签过滤（AND）
	List(ctx context.Context, uid string, params *dto.NoteListRequest) ([]*domain.Note, error)
	// SoftDelete 移入回收站
	SoftDelete(ctx context.Context, uid, id string) (*domain.Note, error)
	// Restore 从回收站恢复
	Restore(ctx context.Context, uid, id string) (*domain.Note, error)
	// DeletePermanently 永久删除；从未同步的笔记直接删除，否则等待推送删除
	DeletePermanently(ctx context.Context, uid, id string) error
	// AddTag 为笔记添加标签
	AddTag(ctx context.Context, uid string, params *dto.NoteTagRequest) (*domain.Note, error)
	// RemoveTag 移除笔记的标签
	RemoveTag(ctx context.Context, uid string, params *dto.NoteTagRequest) (*domain.Note, error)
	// CountDeleted 回收站笔记数量
	CountDeleted(ctx context.Context, uid string) (int64, error)
}

// noteService 实现 NoteService 接口
type noteService struct {
	store  domain.LocalStore
	clock  timex.Clock
	logger *zap.Logger
}

var _ NoteService = (*noteService)(nil)

// NewNoteService 创建 NoteService 实例
func NewNoteService(store domain.LocalStore, clock timex.Clock, logger *zap.Logger) NoteService {
	if clock == nil {
		clock = timex.System
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &noteService{store: store, clock: clock, logger: logger}
}

// getLive 获取未待删除的笔记
func (s *noteService) getLive(ctx context.Context, uid, id string) (*domain.Note, error) {
	n, err := s.store.Notes().GetByID(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	if n.Sync.Op == domain.PendingOpDelete {
		return nil, domain.ErrNotFound
	}
	return n, nil
}

// Create 创建笔记
func (s *noteService) Create(ctx context.Context, uid string, params *dto.NoteCreateRequest) (*domain.Note, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	note := &domain.Note{
		ID:        uuid.NewString(),
		UserID:    uid,
		Title:     strings.TrimSpace(params.Title),
		Content:   sanitize.HTML(params.Content),
		Pinned:    params.Pinned,
		CreatedAt: now,
	}

	err := s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		if _, err := s.store.Notes().UpsertPending(ctx, note, domain.PendingOpUpsert); err != nil {
			return errors.Wrap(err, "create note")
		}
		for _, tagID := range params.TagIDs {
			if err := s.store.NoteTags().AddPending(ctx, uid, note.ID, tagID); err != nil {
				return errors.Wrapf(err, "tag note with %s", tagID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("note created",
		zap.String(logger.FieldUID, uid),
		zap.String(logger.FieldEntityID, note.ID))
	return s.store.Notes().GetByID(ctx, uid, note.ID)
}

// Update 修改笔记
func (s *noteService) Update(ctx context.Context, uid string, params *dto.NoteUpdateRequest) (*domain.Note, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	current, err := s.getLive(ctx, uid, params.ID)
	if err != nil {
		return nil, err
	}

	updated := new(domain.Note)
	if err := copier.CopyWithOption(updated, current, copier.Option{DeepCopy: true}); err != nil {
		return nil, errors.Wrap(err, "copy note")
	}
	if params.Title != nil {
		updated.Title = strings.TrimSpace(*params.Title)
	}
	if params.Content != nil {
		updated.Content = sanitize.HTML(*params.Content)
	}
	if params.Pinned != nil {
		updated.Pinned = *params.Pinned
	}
	return s.store.Notes().UpsertPending(ctx, updated, domain.PendingOpUpsert)
}

// Get 获取笔记
func (s *noteService) Get(ctx context.Context, uid, id string) (*domain.Note, error) {
	return s.getLive(ctx, uid, id)
}

// List 列出笔记
func (s *noteService) List(ctx context.Context, uid string, params *dto.NoteListRequest) ([]*domain.Note, error) {
	if params == nil {
		params = &dto.NoteListRequest{}
	}

	var (
		notes []*domain.Note
		err   error
	)
	switch {
	case params.Deleted:
		notes, err = s.store.Notes().ListDeleted(ctx, uid)
		if err == nil && params.Query != "" {
			notes = filterNotes(notes, func(n *domain.Note) bool { return noteMatches(n, params.Query) })
		}
	case params.Query != "":
		notes, err = s.store.Notes().Search(ctx, uid, params.Query)
	default:
		notes, err = s.store.Notes().ListActive(ctx, uid)
	}
	if err != nil {
		return nil, err
	}

	if len(params.TagIDs) > 0 {
		notes = filterNotes(notes, func(n *domain.Note) bool { return n.HasAllTags(params.TagIDs) })
	}
	return notes, nil
}

func filterNotes(notes []*domain.Note, keep func(*domain.Note) bool) []*domain.Note {
	out := notes[:0]
	for _, n := range notes {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// SoftDelete 移入回收站
func (s *noteService) SoftDelete(ctx context.Context, uid, id string) (*domain.Note, error) {
	n, err := s.getLive(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	if n.IsDeleted() {
		return n, nil
	}
	now := s.clock.Now()
	n.DeletedAt = &now
	return s.store.Notes().UpsertPending(ctx, n, domain.PendingOpUpsert)
}

// Restore 从回收站恢复
func (s *noteService) Restore(ctx context.Context, uid, id string) (*domain.Note, error) {
	n, err := s.getLive(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	if !n.IsDeleted() {
		return n, nil
	}
	n.DeletedAt = nil
	return s.store.Notes().UpsertPending(ctx, n, domain.PendingOpUpsert)
}

// DeletePermanently 永久删除
func (s *noteService) DeletePermanently(ctx context.Context, uid, id string) error {
	n, err := s.getLive(ctx, uid, id)
	if err != nil {
		return err
	}
	return s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		if n.Sync.NeverSynced() {
			if err := s.store.Conflicts().Delete(ctx, uid, id); err != nil {
				return err
			}
			return s.store.Notes().Remove(ctx, uid, id)
		}
		_, err := s.store.Notes().UpsertPending(ctx, n, domain.PendingOpDelete)
		return err
	})
}

// AddTag 为笔记添加标签
func (s *noteService) AddTag(ctx context.Context, uid string, params *dto.NoteTagRequest) (*domain.Note, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if err := s.store.NoteTags().AddPending(ctx, uid, params.NoteID, params.TagID); err != nil {
		return nil, err
	}
	return s.store.Notes().GetByID(ctx, uid, params.NoteID)
}

// RemoveTag 移除笔记的标签
func (s *noteService) RemoveTag(ctx context.Context, uid string, params *dto.NoteTagRequest) (*domain.Note, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if _, err := s.getLive(ctx, uid, params.NoteID); err != nil {
		return nil, err
	}
	if err := s.store.NoteTags().RemovePending(ctx, uid, params.NoteID, params.TagID); err != nil {
		return nil, err
	}
	return s.store.Notes().GetByID(ctx, uid, params.NoteID)
}

// CountDeleted 回收站数量
func (s *noteService) CountDeleted(ctx context.Context, uid string) (int64, error) {
	return s.store.Notes().CountDeleted(ctx, uid)
}

func noteMatches(n *domain.Note, query string) bool {
	return util.ContainsFold(n.Title, query) || util.ContainsFold(n.Content, query)
}
