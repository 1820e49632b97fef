package dao

import (
	"context"
	"sort"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/model"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/util"
	"gorm.io/gorm"
)

// syncColumns 各同步表共有的同步元数据列
type syncColumns struct {
	Status          string
	Op              string
	LastSyncedAt    *int64
	ServerUpdatedAt *int64
	LocalUpdatedAt  int64
	LocalVersion    int64
}

func (c syncColumns) toDomain() domain.SyncMeta {
	return domain.SyncMeta{
		Status:          domain.SyncStatus(c.Status),
		Op:              domain.PendingOp(c.Op),
		LastSyncedAt:    timex.PtrFromMilli(c.LastSyncedAt),
		ServerUpdatedAt: timex.PtrFromMilli(c.ServerUpdatedAt),
		LocalUpdatedAt:  timex.FromMilli(c.LocalUpdatedAt),
		LocalVersion:    c.LocalVersion,
	}
}

// markSyncedUpdates 推送成功后的更新
// 服务端时间总是记录；仅当推送期间没有新的本地修改时才置为 synced
func markSyncedUpdates(version, serverMs, nowMs int64, withTimestamps bool) map[string]interface{} {
	updates := map[string]interface{}{
		"last_synced_at": nowMs,
		"sync_status":    gorm.Expr("CASE WHEN local_version = ? THEN ? ELSE sync_status END", version, string(domain.SyncStatusSynced)),
		"pending_op":     gorm.Expr("CASE WHEN local_version = ? THEN ? ELSE pending_op END", version, string(domain.PendingOpNone)),
	}
	if withTimestamps {
		updates["server_updated_at"] = serverMs
		updates["updated_at"] = gorm.Expr("CASE WHEN local_version = ? THEN ? ELSE updated_at END", version, serverMs)
		updates["local_updated_at"] = gorm.Expr("CASE WHEN local_version = ? THEN ? ELSE local_updated_at END", version, serverMs)
	}
	return updates
}

// conflictIDs 存在未解决冲突的实体 ID，读取时叠加为 conflict 状态
func (d *Dao) conflictIDs(ctx context.Context, uid string) (map[string]struct{}, error) {
	var ids []string
	err := d.DB(ctx).Model(&model.SyncConflict{}).
		Where("user_id = ?", uid).
		Pluck("entity_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func overlayConflict(meta *domain.SyncMeta, id string, conflicts map[string]struct{}) {
	if _, ok := conflicts[id]; ok {
		meta.Status = domain.SyncStatusConflict
	}
}

func sortTags(tags []*domain.Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		return util.FoldName(tags[i].Name) < util.FoldName(tags[j].Name)
	})
}
