package service

import (
	"context"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/retry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// push 推送阶段
// 顺序：标签、笔记、新增关联、删除关联、删除笔记、删除标签，保证远端引用先于关联存在
// 远端失败只记录到结果中，记录保持 pending；本地存储错误中止整个阶段
func (s *syncService) push(ctx context.Context, uid string, res *domain.SyncResult) error {
	conflicted, err := s.store.Conflicts().EntityIDs(ctx, uid)
	if err != nil {
		return errors.Wrap(err, "load conflicts")
	}
	tags, err := s.store.Tags().ListPending(ctx, uid)
	if err != nil {
		return errors.Wrap(err, "list pending tags")
	}
	notes, err := s.store.Notes().ListPending(ctx, uid)
	if err != nil {
		return errors.Wrap(err, "list pending notes")
	}
	links, err := s.store.NoteTags().ListPending(ctx, uid)
	if err != nil {
		return errors.Wrap(err, "list pending note tags")
	}

	skip := func(id string) bool {
		if _, ok := conflicted[id]; ok {
			res.Skipped++
			return true
		}
		return false
	}

	for _, t := range tags {
		if t.Sync.Op == domain.PendingOpDelete || skip(t.ID) {
			continue
		}
		if err := s.pushTag(ctx, uid, t, res); err != nil {
			return err
		}
	}
	for _, n := range notes {
		if n.Sync.Op == domain.PendingOpDelete || skip(n.ID) {
			continue
		}
		if err := s.pushNote(ctx, uid, n, res); err != nil {
			return err
		}
	}
	for _, l := range links {
		if l.Sync.Op == domain.PendingOpDelete {
			continue
		}
		if err := s.pushLink(ctx, uid, l, res); err != nil {
			return err
		}
	}
	for _, l := range links {
		if l.Sync.Op != domain.PendingOpDelete {
			continue
		}
		if err := s.pushLink(ctx, uid, l, res); err != nil {
			return err
		}
	}
	for _, n := range notes {
		if n.Sync.Op != domain.PendingOpDelete || skip(n.ID) {
			continue
		}
		if err := s.pushNoteDelete(ctx, uid, n, res); err != nil {
			return err
		}
	}
	for _, t := range tags {
		if t.Sync.Op != domain.PendingOpDelete || skip(t.ID) {
			continue
		}
		if err := s.pushTagDelete(ctx, uid, t, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *syncService) pushFailed(uid string, kind domain.EntityType, id string, op domain.PendingOp, err error, res *domain.SyncResult) {
	addFailure(res, kind, id, op, err)
	s.logger.Warn("push failed",
		zap.String(logger.FieldUID, uid),
		zap.String(logger.FieldEntityType, string(kind)),
		zap.String(logger.FieldEntityID, id),
		zap.String(logger.FieldOp, string(op)),
		zap.Bool("retryable", retry.IsRetryable(err)),
		zap.Error(err))
}

func (s *syncService) pushTag(ctx context.Context, uid string, t *domain.Tag, res *domain.SyncResult) error {
	saved, err := retry.Do(ctx, func(ctx context.Context) (*domain.RemoteTag, error) {
		return s.remote.UpsertTag(ctx, uid, t.ToRemote())
	}, s.config.retryOptions(s.logger, "upsert tag")...)
	if err != nil {
		s.pushFailed(uid, domain.EntityTag, t.ID, t.Sync.Op, err, res)
		return nil
	}
	if err := s.store.Tags().MarkSynced(ctx, uid, t.ID, t.Sync.LocalVersion, saved.UpdatedAt); err != nil {
		return errors.Wrapf(err, "mark tag %s synced", t.ID)
	}
	res.Pushed++
	return nil
}

func (s *syncService) pushNote(ctx context.Context, uid string, n *domain.Note, res *domain.SyncResult) error {
	saved, err := retry.Do(ctx, func(ctx context.Context) (*domain.RemoteNote, error) {
		return s.remote.UpsertNote(ctx, uid, n.ToRemote())
	}, s.config.retryOptions(s.logger, "upsert note")...)
	if err != nil {
		s.pushFailed(uid, domain.EntityNote, n.ID, n.Sync.Op, err, res)
		return nil
	}
	if err := s.store.Notes().MarkSynced(ctx, uid, n.ID, n.Sync.LocalVersion, saved.UpdatedAt); err != nil {
		return errors.Wrapf(err, "mark note %s synced", n.ID)
	}
	res.Pushed++
	return nil
}

func (s *syncService) pushLink(ctx context.Context, uid string, l *domain.NoteTag, res *domain.SyncResult) error {
	var err error
	if l.Sync.Op == domain.PendingOpDelete {
		err = retry.Run(ctx, func(ctx context.Context) error {
			return s.remote.RemoveNoteTag(ctx, uid, l.NoteID, l.TagID)
		}, s.config.retryOptions(s.logger, "remove note tag")...)
	} else {
		err = retry.Run(ctx, func(ctx context.Context) error {
			return s.remote.AddNoteTag(ctx, uid, l.NoteID, l.TagID)
		}, s.config.retryOptions(s.logger, "add note tag")...)
	}
	if err != nil {
		s.pushFailed(uid, domain.EntityNoteTag, l.Key(), l.Sync.Op, err, res)
		return nil
	}

	if l.Sync.Op == domain.PendingOpDelete {
		err = s.store.Transaction(ctx, uid, func(ctx context.Context) error {
			cur, err := s.store.NoteTags().Get(ctx, uid, l.NoteID, l.TagID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if cur.Sync.Op != domain.PendingOpDelete || cur.Sync.LocalVersion != l.Sync.LocalVersion {
				return nil
			}
			return s.store.NoteTags().Remove(ctx, uid, l.NoteID, l.TagID)
		})
	} else {
		err = s.store.NoteTags().MarkSynced(ctx, uid, l.NoteID, l.TagID, l.Sync.LocalVersion)
	}
	if err != nil {
		return errors.Wrapf(err, "settle note tag %s", l.Key())
	}
	res.Pushed++
	return nil
}

func (s *syncService) pushNoteDelete(ctx context.Context, uid string, n *domain.Note, res *domain.SyncResult) error {
	err := retry.Run(ctx, func(ctx context.Context) error {
		return s.remote.DeleteNote(ctx, uid, n.ID)
	}, s.config.retryOptions(s.logger, "delete note")...)
	if err != nil {
		s.pushFailed(uid, domain.EntityNote, n.ID, n.Sync.Op, err, res)
		return nil
	}
	err = s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		cur, err := s.store.Notes().GetByID(ctx, uid, n.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if cur.Sync.Op != domain.PendingOpDelete || cur.Sync.LocalVersion != n.Sync.LocalVersion {
			return nil
		}
		return s.store.Notes().Remove(ctx, uid, n.ID)
	})
	if err != nil {
		return errors.Wrapf(err, "remove note %s", n.ID)
	}
	res.Pushed++
	return nil
}

func (s *syncService) pushTagDelete(ctx context.Context, uid string, t *domain.Tag, res *domain.SyncResult) error {
	err := retry.Run(ctx, func(ctx context.Context) error {
		return s.remote.DeleteTag(ctx, uid, t.ID)
	}, s.config.retryOptions(s.logger, "delete tag")...)
	if err != nil {
		s.pushFailed(uid, domain.EntityTag, t.ID, t.Sync.Op, err, res)
		return nil
	}
	err = s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		cur, err := s.store.Tags().GetByID(ctx, uid, t.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if cur.Sync.Op != domain.PendingOpDelete || cur.Sync.LocalVersion != t.Sync.LocalVersion {
			return nil
		}
		return s.store.Tags().Remove(ctx, uid, t.ID)
	})
	if err != nil {
		return errors.Wrapf(err, "remove tag %s", t.ID)
	}
	res.Pushed++
	return nil
}
