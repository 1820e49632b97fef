package dao

import (
	"context"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/model"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/util"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const hydrateBatchSize = 200

// Store 本地存储聚合，实现 domain.LocalStore
type Store struct {
	dao         *Dao
	notes       *noteRepository
	tags        *tagRepository
	noteTags    *noteTagRepository
	conflicts   *conflictRepository
	intents     *intentRepository
	checkpoints *checkpointRepository
}

var _ domain.LocalStore = (*Store)(nil)

// NewStore 创建本地存储
func NewStore(d *Dao) *Store {
	return &Store{
		dao:         d,
		notes:       &noteRepository{dao: d, tags: &tagRepository{dao: d}},
		tags:        &tagRepository{dao: d},
		noteTags:    &noteTagRepository{dao: d},
		conflicts:   &conflictRepository{dao: d},
		intents:     &intentRepository{dao: d},
		checkpoints: &checkpointRepository{dao: d},
	}
}

func (s *Store) Notes() domain.NoteRepository             { return s.notes }
func (s *Store) Tags() domain.TagRepository               { return s.tags }
func (s *Store) NoteTags() domain.NoteTagRepository       { return s.noteTags }
func (s *Store) Conflicts() domain.ConflictRepository     { return s.conflicts }
func (s *Store) Intents() domain.IntentRepository         { return s.intents }
func (s *Store) Checkpoints() domain.CheckpointRepository { return s.checkpoints }

// Transaction 在同一事务中执行 fn
func (s *Store) Transaction(ctx context.Context, uid string, fn func(ctx context.Context) error) error {
	return s.dao.Transaction(ctx, uid, fn)
}

// Hydrate 清空该用户的本地数据并写入远端快照
// 全部写入在一个事务中完成，失败时本地数据保持不变
func (s *Store) Hydrate(ctx context.Context, uid string, snapshot *domain.RemoteSnapshot) error {
	if snapshot == nil {
		return errors.New("nil snapshot")
	}
	synced := snapshot.FetchedAt.UnixMilli()

	notes := make([]*model.Note, 0, len(snapshot.Notes))
	noteIDs := make(map[string]struct{}, len(snapshot.Notes))
	for _, n := range snapshot.Notes {
		rn := *n
		rn.UserID = uid
		notes = append(notes, remoteNoteModel(&rn, snapshot.FetchedAt, 0))
		noteIDs[n.ID] = struct{}{}
	}

	tags := make([]*model.Tag, 0, len(snapshot.Tags))
	tagIDs := make(map[string]struct{}, len(snapshot.Tags))
	for _, t := range snapshot.Tags {
		server := t.UpdatedAt.UnixMilli()
		tags = append(tags, &model.Tag{
			UserID:          uid,
			ID:              t.ID,
			Name:            t.Name,
			NameFold:        util.FoldName(t.Name),
			Color:           string(domain.NormalizeTagColor(t.Color)),
			CreatedAt:       timex.ToMilli(t.CreatedAt),
			UpdatedAt:       server,
			SyncStatus:      string(domain.SyncStatusSynced),
			LastSyncedAt:    &synced,
			ServerUpdatedAt: &server,
			LocalUpdatedAt:  server,
		})
		tagIDs[t.ID] = struct{}{}
	}

	links := make([]*model.NoteTag, 0, len(snapshot.NoteTags))
	seen := make(map[string]struct{}, len(snapshot.NoteTags))
	for _, l := range snapshot.NoteTags {
		_, okNote := noteIDs[l.NoteID]
		_, okTag := tagIDs[l.TagID]
		key := domain.NoteTagKey(l.NoteID, l.TagID)
		if _, dup := seen[key]; dup || !okNote || !okTag {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, &model.NoteTag{
			UserID:         uid,
			NoteID:         l.NoteID,
			TagID:          l.TagID,
			CreatedAt:      synced,
			SyncStatus:     string(domain.SyncStatusSynced),
			LastSyncedAt:   &synced,
			LocalUpdatedAt: synced,
		})
	}

	return s.dao.Transaction(ctx, uid, func(ctx context.Context) error {
		db := s.dao.DB(ctx)
		if err := clearUser(db, uid); err != nil {
			return err
		}
		if len(notes) > 0 {
			if err := db.CreateInBatches(notes, hydrateBatchSize).Error; err != nil {
				return errors.Wrap(err, "insert notes")
			}
		}
		if len(tags) > 0 {
			if err := db.CreateInBatches(tags, hydrateBatchSize).Error; err != nil {
				return errors.Wrap(err, "insert tags")
			}
		}
		if len(links) > 0 {
			if err := db.CreateInBatches(links, hydrateBatchSize).Error; err != nil {
				return errors.Wrap(err, "insert note tags")
			}
		}
		return s.checkpoints.saveHydrated(db, uid, snapshot.Cursor(), snapshot.FetchedAt)
	})
}

// clearUser 删除用户的笔记、标签、关联、冲突与未完成意图
func clearUser(db *gorm.DB, uid string) error {
	for _, m := range []interface{}{
		&model.NoteTag{}, &model.Note{}, &model.Tag{}, &model.SyncConflict{}, &model.ResolutionIntent{},
	} {
		if err := db.Where("user_id = ?", uid).Delete(m).Error; err != nil {
			return errors.Wrapf(err, "clear %T", m)
		}
	}
	return nil
}

// PendingCount 待推送记录总数
func (s *Store) PendingCount(ctx context.Context, uid string) (int64, error) {
	var total int64
	for _, m := range []interface{}{&model.Note{}, &model.Tag{}, &model.NoteTag{}} {
		var n int64
		if err := s.dao.DB(ctx).Model(m).
			Where("user_id = ? AND sync_status = ?", uid, string(domain.SyncStatusPending)).
			Count(&n).Error; err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// ClearUser 删除该用户的全部本地数据（退出登录）
func (s *Store) ClearUser(ctx context.Context, uid string) error {
	return s.dao.Transaction(ctx, uid, func(ctx context.Context) error {
		db := s.dao.DB(ctx)
		if err := clearUser(db, uid); err != nil {
			return err
		}
		return db.Where("user_id = ?", uid).Delete(&model.SyncCheckpoint{}).Error
	})
}
