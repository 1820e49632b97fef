package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/retry"
	"github.com/haierkeys/fast-note-offline/pkg/sanitize"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MigrationService 将登录前的演示数据迁移到账号
type MigrationService interface {
	// MigrateDemoToAccount 迁移演示缓冲区
	// 标签按名称（大小写不敏感）复用已有标签；任一步失败时缓冲区保留以便重试，成功后清空一次
	MigrateDemoToAccount(ctx context.Context, uid string) (*domain.MigrationResult, error)
	// HasDemoData 缓冲区中是否有待迁移的笔记
	HasDemoData(ctx context.Context) (bool, error)
	// SaveDemo 覆盖演示缓冲区
	SaveDemo(ctx context.Context, data *domain.DemoData) error
}

type migrationService struct {
	store  domain.LocalStore
	remote domain.RemoteStore
	buffer domain.DemoBuffer
	sync   SyncService
	config SyncServiceConfig
	clock  timex.Clock
	logger *zap.Logger
}

var _ MigrationService = (*migrationService)(nil)

// NewMigrationService 创建 MigrationService 实例，syncSvc 为 nil 时迁移后不触发同步
func NewMigrationService(store domain.LocalStore, remote domain.RemoteStore, buffer domain.DemoBuffer, syncSvc SyncService, cfg SyncServiceConfig, clock timex.Clock, logger *zap.Logger) MigrationService {
	if clock == nil {
		clock = timex.System
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &migrationService{
		store:  store,
		remote: remote,
		buffer: buffer,
		sync:   syncSvc,
		config: cfg,
		clock:  clock,
		logger: logger,
	}
}

func (s *migrationService) HasDemoData(ctx context.Context) (bool, error) {
	data, err := s.buffer.Load(ctx)
	if err != nil {
		return false, err
	}
	return !data.IsEmpty(), nil
}

func (s *migrationService) SaveDemo(ctx context.Context, data *domain.DemoData) error {
	if data == nil {
		data = &domain.DemoData{}
	}
	return s.buffer.Save(ctx, data)
}

func (s *migrationService) MigrateDemoToAccount(ctx context.Context, uid string) (*domain.MigrationResult, error) {
	log := s.logger.With(zap.String(logger.FieldUID, uid))
	result := &domain.MigrationResult{
		MigratedNotes: []*domain.Note{},
		NewTags:       []*domain.Tag{},
		ReusedTags:    []*domain.Tag{},
	}

	data, err := s.buffer.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load demo buffer")
	}
	if data.IsEmpty() {
		if err := s.buffer.Clear(ctx); err != nil {
			return nil, errors.Wrap(err, "clear demo buffer")
		}
		return result, nil
	}

	remoteTags, err := retry.Do(ctx, func(ctx context.Context) ([]*domain.RemoteTag, error) {
		return s.remote.ListTags(ctx, uid, nil)
	}, s.config.retryOptions(log, "list tags")...)
	if err != nil {
		if !retry.IsRetryable(err) {
			return nil, errors.Wrap(err, "fetch remote tags")
		}
		// 离线时只按本地已有标签去重
		log.Warn("remote tags unavailable, deduplicating against local tags only", zap.Error(err))
		remoteTags = nil
	}
	remoteByName := make(map[string]*domain.RemoteTag, len(remoteTags))
	for _, rt := range remoteTags {
		remoteByName[util.FoldName(rt.Name)] = rt
	}

	now := s.clock.Now()
	noteIDs := make([]string, 0, len(data.Notes))
	err = s.store.Transaction(ctx, uid, func(ctx context.Context) error {
		result.NewTags = result.NewTags[:0]
		result.ReusedTags = result.ReusedTags[:0]
		noteIDs = noteIDs[:0]

		mapping := make(map[string]string, len(data.Tags))
		seen := make(map[string]string, len(data.Tags))
		for _, dt := range data.Tags {
			name := strings.TrimSpace(dt.Name)
			if name == "" {
				continue
			}
			fold := util.FoldName(name)
			if id, ok := seen[fold]; ok {
				mapping[dt.LocalID] = id
				continue
			}
			tag, reused, err := s.resolveTag(ctx, uid, name, dt.Color, remoteByName[fold], now)
			if err != nil {
				return errors.Wrapf(err, "migrate tag %q", name)
			}
			if reused {
				result.ReusedTags = append(result.ReusedTags, tag)
			} else {
				result.NewTags = append(result.NewTags, tag)
			}
			mapping[dt.LocalID] = tag.ID
			seen[fold] = tag.ID
		}

		for _, dn := range data.Notes {
			note := &domain.Note{
				ID:        uuid.NewString(),
				UserID:    uid,
				Title:     strings.TrimSpace(dn.Title),
				Content:   sanitize.HTML(dn.Content),
				CreatedAt: now,
			}
			if _, err := s.store.Notes().UpsertPending(ctx, note, domain.PendingOpUpsert); err != nil {
				return errors.Wrap(err, "migrate note")
			}
			linked := make(map[string]struct{}, len(dn.TagIDs))
			for _, ref := range dn.TagIDs {
				tagID, ok := mapping[ref]
				if !ok {
					continue
				}
				if _, dup := linked[tagID]; dup {
					continue
				}
				linked[tagID] = struct{}{}
				if err := s.store.NoteTags().AddPending(ctx, uid, note.ID, tagID); err != nil {
					return errors.Wrap(err, "link migrated note")
				}
			}
			noteIDs = append(noteIDs, note.ID)
		}
		return nil
	})
	if err != nil {
		log.Error("demo migration failed, buffer kept", zap.Error(err))
		return nil, err
	}

	for _, id := range noteIDs {
		n, err := s.store.Notes().GetByID(ctx, uid, id)
		if err != nil {
			return nil, err
		}
		result.MigratedNotes = append(result.MigratedNotes, n)
	}
	result.NoteCount = len(result.MigratedNotes)

	if err := s.buffer.Clear(ctx); err != nil {
		return result, errors.Wrap(err, "clear demo buffer")
	}

	log.Info("demo data migrated",
		zap.Int("notes", result.NoteCount),
		zap.Int("newTags", len(result.NewTags)),
		zap.Int("reusedTags", len(result.ReusedTags)))

	if s.sync != nil {
		if err := s.sync.TriggerSync(ctx, uid, domain.TriggerMigration); err != nil {
			log.Warn("trigger sync after migration", zap.Error(err))
		}
	}
	return result, nil
}

// resolveTag 依次查找本地同名标签、远端同名标签，都没有时新建
func (s *migrationService) resolveTag(ctx context.Context, uid, name, color string, remote *domain.RemoteTag, now time.Time) (*domain.Tag, bool, error) {
	existing, err := s.store.Tags().GetByName(ctx, uid, name)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	if remote != nil {
		rt := *remote
		rt.UserID = uid
		if err := s.store.Tags().ApplyRemote(ctx, &rt, now); err != nil {
			return nil, false, err
		}
		tag, err := s.store.Tags().GetByID(ctx, uid, rt.ID)
		return tag, true, err
	}

	tag, err := s.store.Tags().UpsertPending(ctx, &domain.Tag{
		ID:        uuid.NewString(),
		UserID:    uid,
		Name:      name,
		Color:     domain.NormalizeTagColor(color),
		CreatedAt: now,
	}, domain.PendingOpUpsert)
	return tag, false, err
}
