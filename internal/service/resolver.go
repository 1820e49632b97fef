package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/retry"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const copySuffix = " (copy)"

// resolver 执行冲突解决意图
// 远端写入均幂等（副本使用意图中预分配的 ID），本地修改、冲突删除与意图删除在同一事务中提交
type resolver struct {
	store  domain.LocalStore
	remote domain.RemoteStore
	config SyncServiceConfig
	clock  timex.Clock
	logger *zap.Logger
}

func newResolver(store domain.LocalStore, remote domain.RemoteStore, cfg SyncServiceConfig, clock timex.Clock, log *zap.Logger) *resolver {
	return &resolver{store: store, remote: remote, config: cfg, clock: clock, logger: log}
}

// replay 重放该用户所有未完成的意图，返回完成的数量
// 单条失败不影响其余意图
func (r *resolver) replay(ctx context.Context, uid string) (int, error) {
	intents, err := r.store.Intents().List(ctx, uid)
	if err != nil {
		return 0, errors.Wrap(err, "list resolution intents")
	}
	done := 0
	var firstErr error
	for _, intent := range intents {
		if err := r.apply(ctx, intent); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}
	return done, firstErr
}

// apply 执行一条意图，失败时记录到意图上供下次重放
func (r *resolver) apply(ctx context.Context, intent *domain.ResolutionIntent) error {
	log := r.logger.With(
		zap.String(logger.FieldUID, intent.UserID),
		zap.String(logger.FieldIntentID, intent.ID),
		zap.String(logger.FieldEntityID, intent.EntityID),
		zap.String(logger.FieldChoice, string(intent.Choice)))

	var err error
	if intent.Conflict == nil {
		err = domain.ErrUnsupportedEntity
	} else {
		switch p := intent.Conflict.Payload.(type) {
		case *domain.NoteConflict:
			err = r.applyNote(ctx, intent, p)
		case *domain.TagConflict:
			err = r.applyTag(ctx, intent, p)
		default:
			err = domain.ErrUnsupportedEntity
		}
	}

	if err != nil {
		log.Warn("conflict resolution failed", zap.Int(logger.FieldAttempt, intent.Attempts+1), zap.Error(err))
		if rerr := r.store.Intents().RecordFailure(ctx, intent.UserID, intent.ID, err); rerr != nil {
			log.Error("record intent failure", zap.Error(rerr))
		}
		return err
	}
	log.Info("conflict resolved")
	return nil
}

// finish 删除冲突与意图，须在事务内调用
func (r *resolver) finish(ctx context.Context, intent *domain.ResolutionIntent) error {
	if err := r.store.Conflicts().Delete(ctx, intent.UserID, intent.EntityID); err != nil {
		return err
	}
	return r.store.Intents().Delete(ctx, intent.UserID, intent.ID)
}

func (r *resolver) applyNote(ctx context.Context, intent *domain.ResolutionIntent, c *domain.NoteConflict) error {
	uid := intent.UserID
	opts := r.config.retryOptions(r.logger, "resolve note")
	now := r.clock.Now()

	local, err := r.store.Notes().GetByID(ctx, uid, intent.EntityID)
	if errors.Is(err, domain.ErrNotFound) {
		// 本地记录已不存在，只需清理
		return r.store.Transaction(ctx, uid, func(ctx context.Context) error { return r.finish(ctx, intent) })
	}
	if err != nil {
		return err
	}

	server := *c.Server
	server.UserID = uid

	switch intent.Choice {
	case domain.ResolveLocal:
		if local.Sync.Op == domain.PendingOpDelete {
			if err := retry.Run(ctx, func(ctx context.Context) error {
				return r.remote.DeleteNote(ctx, uid, local.ID)
			}, opts...); err != nil {
				return err
			}
			return r.store.Transaction(ctx, uid, func(ctx context.Context) error {
				if err := r.store.Notes().Remove(ctx, uid, local.ID); err != nil {
					return err
				}
				return r.finish(ctx, intent)
			})
		}
		saved, err := retry.Do(ctx, func(ctx context.Context) (*domain.RemoteNote, error) {
			return r.remote.UpsertNote(ctx, uid, local.ToRemote())
		}, opts...)
		if err != nil {
			return err
		}
		return r.store.Transaction(ctx, uid, func(ctx context.Context) error {
			if err := r.store.Notes().MarkSynced(ctx, uid, local.ID, local.Sync.LocalVersion, saved.UpdatedAt); err != nil {
				return err
			}
			return r.finish(ctx, intent)
		})

	case domain.ResolveServer:
		return r.store.Transaction(ctx, uid, func(ctx context.Context) error {
			if err := r.store.Notes().ApplyRemote(ctx, &server, now); err != nil {
				return err
			}
			return r.finish(ctx, intent)
		})

	case domain.ResolveBoth:
		dup := new(domain.Note)
		if err := copier.Copy(dup, local); err != nil {
			return errors.Wrap(err, "copy note")
		}
		dup.ID = intent.CopyID
		dup.Title = copyTitle(local.Title)
		dup.Pinned = false
		dup.DeletedAt = nil
		dup.Tags = nil
		dup.CreatedAt = now
		dup.UpdatedAt = now

		saved, err := retry.Do(ctx, func(ctx context.Context) (*domain.RemoteNote, error) {
			return r.remote.UpsertNote(ctx, uid, dup.ToRemote())
		}, opts...)
		if err != nil {
			return err
		}
		saved.UserID = uid
		return r.store.Transaction(ctx, uid, func(ctx context.Context) error {
			if err := r.store.Notes().ApplyRemote(ctx, saved, now); err != nil {
				return err
			}
			if err := r.store.Notes().ApplyRemote(ctx, &server, now); err != nil {
				return err
			}
			return r.finish(ctx, intent)
		})
	}
	return domain.ErrInvalidChoice
}

func (r *resolver) applyTag(ctx context.Context, intent *domain.ResolutionIntent, c *domain.TagConflict) error {
	uid := intent.UserID
	opts := r.config.retryOptions(r.logger, "resolve tag")
	now := r.clock.Now()

	local, err := r.store.Tags().GetByID(ctx, uid, intent.EntityID)
	if errors.Is(err, domain.ErrNotFound) {
		return r.store.Transaction(ctx, uid, func(ctx context.Context) error { return r.finish(ctx, intent) })
	}
	if err != nil {
		return err
	}

	server := *c.Server
	server.UserID = uid

	switch intent.Choice {
	case domain.ResolveLocal:
		if local.Sync.Op == domain.PendingOpDelete {
			if err := retry.Run(ctx, func(ctx context.Context) error {
				return r.remote.DeleteTag(ctx, uid, local.ID)
			}, opts...); err != nil {
				return err
			}
			return r.store.Transaction(ctx, uid, func(ctx context.Context) error {
				if err := r.store.Tags().Remove(ctx, uid, local.ID); err != nil {
					return err
				}
				return r.finish(ctx, intent)
			})
		}
		saved, err := retry.Do(ctx, func(ctx context.Context) (*domain.RemoteTag, error) {
			return r.remote.UpsertTag(ctx, uid, local.ToRemote())
		}, opts...)
		if err != nil {
			return err
		}
		return r.store.Transaction(ctx, uid, func(ctx context.Context) error {
			if err := r.store.Tags().MarkSynced(ctx, uid, local.ID, local.Sync.LocalVersion, saved.UpdatedAt); err != nil {
				return err
			}
			return r.finish(ctx, intent)
		})

	case domain.ResolveServer:
		return r.store.Transaction(ctx, uid, func(ctx context.Context) error {
			if err := r.store.Tags().ApplyRemote(ctx, &server, now); err != nil {
				return err
			}
			return r.finish(ctx, intent)
		})

	case domain.ResolveBoth:
		name, err := r.copyTagName(ctx, uid, intent.CopyID, local.Name)
		if err != nil {
			return err
		}
		dup := &domain.Tag{
			ID:        intent.CopyID,
			UserID:    uid,
			Name:      name,
			Color:     local.Color,
			CreatedAt: now,
			UpdatedAt: now,
		}
		saved, err := retry.Do(ctx, func(ctx context.Context) (*domain.RemoteTag, error) {
			return r.remote.UpsertTag(ctx, uid, dup.ToRemote())
		}, opts...)
		if err != nil {
			return err
		}
		saved.UserID = uid
		return r.store.Transaction(ctx, uid, func(ctx context.Context) error {
			if err := r.store.Tags().ApplyRemote(ctx, saved, now); err != nil {
				return err
			}
			if err := r.store.Tags().ApplyRemote(ctx, &server, now); err != nil {
				return err
			}
			return r.finish(ctx, intent)
		})
	}
	return domain.ErrInvalidChoice
}

// copyTagName 为副本挑选未被占用的名称：X (copy)、X (copy 2) ...
func (r *resolver) copyTagName(ctx context.Context, uid, copyID, name string) (string, error) {
	for n := 1; ; n++ {
		candidate := name + copySuffix
		if n > 1 {
			candidate = fmt.Sprintf("%s (copy %d)", name, n)
		}
		existing, err := r.store.Tags().GetByName(ctx, uid, candidate)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && existing.ID == copyID) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
}

func copyTitle(title string) string {
	return strings.TrimSpace(title) + copySuffix
}
