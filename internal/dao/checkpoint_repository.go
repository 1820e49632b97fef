package dao

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/model"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// checkpointRepository 实现 domain.CheckpointRepository 接口
type checkpointRepository struct {
	dao *Dao
}

// NewCheckpointRepository 创建 CheckpointRepository 实例
func NewCheckpointRepository(dao *Dao) domain.CheckpointRepository {
	return &checkpointRepository{dao: dao}
}

// Get 获取同步游标，不存在时返回空游标
func (r *checkpointRepository) Get(ctx context.Context, uid string) (*domain.SyncCheckpoint, error) {
	var m model.SyncCheckpoint
	err := r.dao.DB(ctx).Where("user_id = ?", uid).Take(&m).Error
	if err != nil {
		if isNotFound(err) {
			return &domain.SyncCheckpoint{UserID: uid}, nil
		}
		return nil, err
	}
	cp := &domain.SyncCheckpoint{
		UserID: m.UserID,
		Pull: domain.PullCursor{
			Tags:  timex.PtrFromMilli(m.TagPullAt),
			Notes: timex.PtrFromMilli(m.NotePullAt),
		},
		LastSyncAt: timex.PtrFromMilli(m.LastSyncAt),
		HydratedAt: timex.PtrFromMilli(m.HydratedAt),
	}
	if m.LastResult != "" {
		res := new(domain.SyncResult)
		// 无法解析的历史结果忽略
		if sonic.UnmarshalString(m.LastResult, res) == nil {
			cp.LastResult = res
		}
	}
	return cp, nil
}

func (r *checkpointRepository) upsert(db *gorm.DB, m *model.SyncCheckpoint, columns ...string) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(m).Error
}

// SavePullCursor 记录已拉取的最大远端修改时间，nil 字段保持不变
func (r *checkpointRepository) SavePullCursor(ctx context.Context, uid string, cursor domain.PullCursor) error {
	m := &model.SyncCheckpoint{UserID: uid}
	var columns []string
	if cursor.Tags != nil {
		m.TagPullAt = timex.PtrToMilli(cursor.Tags)
		columns = append(columns, "tag_pull_at")
	}
	if cursor.Notes != nil {
		m.NotePullAt = timex.PtrToMilli(cursor.Notes)
		columns = append(columns, "note_pull_at")
	}
	if len(columns) == 0 {
		return nil
	}
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return r.upsert(db, m, columns...)
	})
}

// SaveResult 记录最近一次同步结果
func (r *checkpointRepository) SaveResult(ctx context.Context, uid string, result *domain.SyncResult) error {
	data, err := sonic.MarshalString(result)
	if err != nil {
		return err
	}
	finished := timex.ToMilli(result.FinishedAt)
	return r.dao.ExecuteWrite(ctx, uid, func(db *gorm.DB) error {
		return r.upsert(db, &model.SyncCheckpoint{
			UserID:     uid,
			LastSyncAt: &finished,
			LastResult: data,
		}, "last_sync_at", "last_result")
	})
}

// saveHydrated 全量灌入后重置游标
func (r *checkpointRepository) saveHydrated(db *gorm.DB, uid string, cursor domain.PullCursor, hydratedAt time.Time) error {
	at := hydratedAt.UnixMilli()
	return r.upsert(db, &model.SyncCheckpoint{
		UserID:     uid,
		TagPullAt:  timex.PtrToMilli(cursor.Tags),
		NotePullAt: timex.PtrToMilli(cursor.Notes),
		HydratedAt: &at,
	}, "tag_pull_at", "note_pull_at", "hydrated_at")
}
