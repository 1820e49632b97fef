package service

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/retry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// errTagNameTaken 远端标签与本地已同步标签同名（大小写不敏感）
var errTagNameTaken = errors.New("409 Conflict: tag name already used by another local tag")

type pullOutcome int

const (
	pullSkipped pullOutcome = iota
	pullApplied
	pullConflict
)

// pull 拉取阶段
// 标签与笔记各自只拉取 updated_at >= 自身游标的记录；单条记录的检查与写入在同一本地事务中完成
func (s *syncService) pull(ctx context.Context, uid string, res *domain.SyncResult) ([]*domain.Conflict, error) {
	cp, err := s.store.Checkpoints().Get(ctx, uid)
	if err != nil {
		return nil, errors.Wrap(err, "load checkpoint")
	}
	since := cp.Pull

	tags, err := retry.Do(ctx, func(ctx context.Context) ([]*domain.RemoteTag, error) {
		return s.remote.ListTags(ctx, uid, since.Tags)
	}, s.config.retryOptions(s.logger, "list tags")...)
	if err != nil {
		return nil, errors.Wrap(err, "fetch tags")
	}
	notes, err := retry.Do(ctx, func(ctx context.Context) ([]*domain.RemoteNote, error) {
		return s.remote.ListNotes(ctx, uid, since.Notes)
	}, s.config.retryOptions(s.logger, "list notes")...)
	if err != nil {
		return nil, errors.Wrap(err, "fetch notes")
	}
	links, err := retry.Do(ctx, func(ctx context.Context) ([]*domain.RemoteNoteTag, error) {
		return s.remote.ListNoteTags(ctx, uid)
	}, s.config.retryOptions(s.logger, "list note tags")...)
	if err != nil {
		return nil, errors.Wrap(err, "fetch note tags")
	}

	syncedAt := s.clock.Now()
	var (
		conflicts []*domain.Conflict
		cursor    domain.PullCursor
		failedAt  *time.Time
	)
	record := func(outcome pullOutcome, c *domain.Conflict) {
		switch outcome {
		case pullApplied:
			res.Pulled++
		case pullConflict:
			res.Conflicted++
			conflicts = append(conflicts, c)
		}
	}

	for _, rt := range tags {
		t := *rt
		t.UserID = uid
		outcome, c, err := s.pullTag(ctx, uid, &t, syncedAt)
		if errors.Is(err, errTagNameTaken) {
			addFailure(res, domain.EntityTag, t.ID, domain.PendingOpNone, err)
			if failedAt == nil || t.UpdatedAt.Before(*failedAt) {
				at := t.UpdatedAt
				failedAt = &at
			}
			continue
		}
		if err != nil {
			return conflicts, errors.Wrapf(err, "apply tag %s", t.ID)
		}
		record(outcome, c)
		cursor.Tags = laterOf(cursor.Tags, t.UpdatedAt)
	}

	for _, rn := range notes {
		n := *rn
		n.UserID = uid
		outcome, c, err := s.pullNote(ctx, uid, &n, syncedAt)
		if err != nil {
			return conflicts, errors.Wrapf(err, "apply note %s", n.ID)
		}
		record(outcome, c)
		cursor.Notes = laterOf(cursor.Notes, n.UpdatedAt)
	}

	applied, err := s.reconcileLinks(ctx, uid, links, syncedAt)
	if err != nil {
		return conflicts, errors.Wrap(err, "reconcile note tags")
	}
	res.Pulled += applied

	// 失败的标签下次重新拉取
	if failedAt != nil && (cursor.Tags == nil || failedAt.Before(*cursor.Tags)) {
		cursor.Tags = failedAt
	}
	advance := domain.PullCursor{
		Tags:  advancedCursor(since.Tags, cursor.Tags),
		Notes: advancedCursor(since.Notes, cursor.Notes),
	}
	if err := s.store.Checkpoints().SavePullCursor(ctx, uid, advance); err != nil {
		return conflicts, errors.Wrap(err, "save pull cursor")
	}

	for _, c := range conflicts {
		s.logger.Info("conflict detected",
			zap.String(logger.FieldUID, uid),
			zap.String(logger.FieldEntityType, string(c.EntityType())),
			zap.String(logger.FieldEntityID, c.EntityID))
	}
	return conflicts, nil
}

func (s *syncService) pullTag(ctx context.Context, uid string, rt *domain.RemoteTag, syncedAt time.Time) (pullOutcome, *domain.Conflict, error) {
	outcome := pullSkipped
	var conflict *domain.Conflict

	err := s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		local, err := s.store.Tags().GetByID(ctx, uid, rt.ID)
		if errors.Is(err, domain.ErrNotFound) {
			if err := s.releaseTagName(ctx, uid, rt); err != nil {
				return err
			}
			outcome = pullApplied
			return s.store.Tags().ApplyRemote(ctx, rt, syncedAt)
		}
		if err != nil {
			return err
		}

		switch local.Sync.Status {
		case domain.SyncStatusConflict:
			existing, err := s.store.Conflicts().Get(ctx, uid, rt.ID)
			if err != nil {
				return err
			}
			if tc := existing.Tag(); tc != nil && tc.Server != nil && !newerMilli(rt.UpdatedAt, tc.Server.UpdatedAt) {
				return nil
			}
		case domain.SyncStatusPending:
			if !local.Sync.RemoteIsNewer(rt.UpdatedAt) {
				return nil
			}
		default:
			if !local.Sync.RemoteIsNewer(rt.UpdatedAt) {
				return nil
			}
			if err := s.releaseTagName(ctx, uid, rt); err != nil {
				return err
			}
			outcome = pullApplied
			return s.store.Tags().ApplyRemote(ctx, rt, syncedAt)
		}

		local.Sync.Status = domain.SyncStatusPending
		conflict = &domain.Conflict{
			UserID:     uid,
			EntityID:   rt.ID,
			DetectedAt: s.clock.Now(),
			Payload:    &domain.TagConflict{Local: local, Server: rt},
		}
		outcome = pullConflict
		return s.store.Conflicts().Save(ctx, conflict)
	})
	if err != nil {
		return pullSkipped, nil, err
	}
	return outcome, conflict, nil
}

// releaseTagName 处理远端标签与本地其他标签同名
// 从未同步的本地标签并入远端标签（关联迁移），否则返回 errTagNameTaken
func (s *syncService) releaseTagName(ctx context.Context, uid string, rt *domain.RemoteTag) error {
	other, err := s.store.Tags().GetByName(ctx, uid, rt.Name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.ID == rt.ID {
		return nil
	}
	if !other.Sync.NeverSynced() {
		return errors.Wrapf(errTagNameTaken, "%q", rt.Name)
	}
	if err := s.store.NoteTags().ReassignTag(ctx, uid, other.ID, rt.ID); err != nil {
		return err
	}
	if err := s.store.Tags().Remove(ctx, uid, other.ID); err != nil {
		return err
	}
	s.logger.Info("local tag merged into remote tag",
		zap.String(logger.FieldUID, uid),
		zap.String("from", other.ID),
		zap.String("to", rt.ID))
	return nil
}

func (s *syncService) pullNote(ctx context.Context, uid string, rn *domain.RemoteNote, syncedAt time.Time) (pullOutcome, *domain.Conflict, error) {
	outcome := pullSkipped
	var conflict *domain.Conflict

	err := s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		local, err := s.store.Notes().GetByID(ctx, uid, rn.ID)
		if errors.Is(err, domain.ErrNotFound) {
			outcome = pullApplied
			return s.store.Notes().ApplyRemote(ctx, rn, syncedAt)
		}
		if err != nil {
			return err
		}

		switch local.Sync.Status {
		case domain.SyncStatusConflict:
			existing, err := s.store.Conflicts().Get(ctx, uid, rn.ID)
			if err != nil {
				return err
			}
			if nc := existing.Note(); nc != nil && nc.Server != nil && !newerMilli(rn.UpdatedAt, nc.Server.UpdatedAt) {
				return nil
			}
		case domain.SyncStatusPending:
			if !local.Sync.RemoteIsNewer(rn.UpdatedAt) {
				return nil
			}
		default:
			if !local.Sync.RemoteIsNewer(rn.UpdatedAt) {
				return nil
			}
			outcome = pullApplied
			return s.store.Notes().ApplyRemote(ctx, rn, syncedAt)
		}

		local.Sync.Status = domain.SyncStatusPending
		conflict = &domain.Conflict{
			UserID:     uid,
			EntityID:   rn.ID,
			DetectedAt: s.clock.Now(),
			Payload:    &domain.NoteConflict{Local: local, Server: rn},
		}
		outcome = pullConflict
		return s.store.Conflicts().Save(ctx, conflict)
	})
	if err != nil {
		return pullSkipped, nil, err
	}
	return outcome, conflict, nil
}

// reconcileLinks 按远端全量关联对齐本地已同步关联
// 待推送的本地关联保持不变
func (s *syncService) reconcileLinks(ctx context.Context, uid string, remote []*domain.RemoteNoteTag, syncedAt time.Time) (int, error) {
	changed := 0
	err := s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		changed = 0
		local, err := s.store.NoteTags().ListAll(ctx, uid)
		if err != nil {
			return err
		}
		have := make(map[string]*domain.NoteTag, len(local))
		for _, l := range local {
			have[l.Key()] = l
		}
		want := make(map[string]struct{}, len(remote))

		for _, rl := range remote {
			key := domain.NoteTagKey(rl.NoteID, rl.TagID)
			want[key] = struct{}{}
			if _, ok := have[key]; ok {
				continue
			}
			ok, err := s.linkable(ctx, uid, rl.NoteID, rl.TagID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := s.store.NoteTags().ApplyRemote(ctx, uid, rl.NoteID, rl.TagID, syncedAt); err != nil {
				return err
			}
			have[key] = &domain.NoteTag{NoteID: rl.NoteID, TagID: rl.TagID}
			changed++
		}

		for key, l := range have {
			if _, ok := want[key]; ok || l.Sync.Status != domain.SyncStatusSynced {
				continue
			}
			if err := s.store.NoteTags().Remove(ctx, uid, l.NoteID, l.TagID); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// linkable 笔记与标签在本地存在且未待删除
func (s *syncService) linkable(ctx context.Context, uid, noteID, tagID string) (bool, error) {
	n, err := s.store.Notes().GetByID(ctx, uid, noteID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t, err := s.store.Tags().GetByID(ctx, uid, tagID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n.Sync.Op != domain.PendingOpDelete && t.Sync.Op != domain.PendingOpDelete, nil
}

// advancedCursor 仅当 next 晚于 since 时返回 next
func advancedCursor(since, next *time.Time) *time.Time {
	if next == nil || (since != nil && !next.After(*since)) {
		return nil
	}
	return next
}

func newerMilli(a, b time.Time) bool {
	return a.UnixMilli() > b.UnixMilli()
}
