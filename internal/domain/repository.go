package domain

import (
	"context"
	"time"
)

// NoteRepository 本地笔记存储
// 所有写方法在同一条语句内更新同步状态、本地修改时间与版本号
type NoteRepository interface {
	// GetByID 获取笔记（含标签），不存在返回 ErrNotFound
	GetByID(ctx context.Context, uid, id string) (*Note, error)
	// ListActive 未删除笔记，置顶优先，再按修改时间倒序
	ListActive(ctx context.Context, uid string) ([]*Note, error)
	// ListDeleted 已软删除笔记，按删除时间倒序
	ListDeleted(ctx context.Context, uid string) ([]*Note, error)
	// Search 标题或正文大小写不敏感子串匹配，空查询等同 ListActive
	Search(ctx context.Context, uid, query string) ([]*Note, error)
	// ListPending 所有待推送笔记（含待删除）
	ListPending(ctx context.Context, uid string) ([]*Note, error)
	// ListDeletedBefore 软删除时间早于 before 的笔记
	ListDeletedBefore(ctx context.Context, uid string, before time.Time) ([]*Note, error)
	// Count 本地笔记数量（含已删除）
	Count(ctx context.Context, uid string) (int64, error)
	// CountDeleted 已软删除笔记数量
	CountDeleted(ctx context.Context, uid string) (int64, error)

	// UpsertPending 写入并标记为 pending
	UpsertPending(ctx context.Context, note *Note, op PendingOp) (*Note, error)
	// MarkSynced 推送成功后记录远端时间；仅当本地版本仍为 version 时才置为 synced
	MarkSynced(ctx context.Context, uid, id string, version int64, serverUpdatedAt time.Time) error
	// ApplyRemote 以远端版本覆盖本地并标记 synced
	ApplyRemote(ctx context.Context, note *RemoteNote, syncedAt time.Time) error
	// Remove 物理删除本地记录及其关联
	Remove(ctx context.Context, uid, id string) error
}

// TagRepository 本地标签存储
type TagRepository interface {
	GetByID(ctx context.Context, uid, id string) (*Tag, error)
	// GetByName 大小写不敏感按名称查找
	GetByName(ctx context.Context, uid, name string) (*Tag, error)
	// List 未待删除的标签，按名称排序
	List(ctx context.Context, uid string) ([]*Tag, error)
	ListPending(ctx context.Context, uid string) ([]*Tag, error)

	UpsertPending(ctx context.Context, tag *Tag, op PendingOp) (*Tag, error)
	MarkSynced(ctx context.Context, uid, id string, version int64, serverUpdatedAt time.Time) error
	ApplyRemote(ctx context.Context, tag *RemoteTag, syncedAt time.Time) error
	Remove(ctx context.Context, uid, id string) error
}

// NoteTagRepository 本地笔记标签关联存储
type NoteTagRepository interface {
	Get(ctx context.Context, uid, noteID, tagID string) (*NoteTag, error)
	// ListAll 全部关联（含待删除）
	ListAll(ctx context.Context, uid string) ([]*NoteTag, error)
	ListPending(ctx context.Context, uid string) ([]*NoteTag, error)

	// AddPending 新增关联或撤销待删除
	AddPending(ctx context.Context, uid, noteID, tagID string) error
	// RemovePending 标记待删除；从未同步过的关联直接删除
	RemovePending(ctx context.Context, uid, noteID, tagID string) error
	MarkSynced(ctx context.Context, uid, noteID, tagID string, version int64) error
	ApplyRemote(ctx context.Context, uid, noteID, tagID string, syncedAt time.Time) error
	Remove(ctx context.Context, uid, noteID, tagID string) error
	// ReassignTag 将 fromTagID 的关联迁移到 toTagID
	ReassignTag(ctx context.Context, uid, fromTagID, toTagID string) error
}

// ConflictRepository 未解决冲突的持久化集合，按 EntityID 唯一
type ConflictRepository interface {
	Save(ctx context.Context, c *Conflict) error
	Get(ctx context.Context, uid, entityID string) (*Conflict, error)
	List(ctx context.Context, uid string) ([]*Conflict, error)
	Delete(ctx context.Context, uid, entityID string) error
	// EntityIDs 存在冲突的实体 ID 集合
	EntityIDs(ctx context.Context, uid string) (map[string]struct{}, error)
}

// IntentRepository 冲突解决意图存储
type IntentRepository interface {
	Create(ctx context.Context, intent *ResolutionIntent) error
	List(ctx context.Context, uid string) ([]*ResolutionIntent, error)
	RecordFailure(ctx context.Context, uid, id string, cause error) error
	Delete(ctx context.Context, uid, id string) error
}

// CheckpointRepository 同步游标存储
type CheckpointRepository interface {
	Get(ctx context.Context, uid string) (*SyncCheckpoint, error)
	SavePullCursor(ctx context.Context, uid string, cursor PullCursor) error
	SaveResult(ctx context.Context, uid string, result *SyncResult) error
}

// LocalStore 本地存储聚合
type LocalStore interface {
	Notes() NoteRepository
	Tags() TagRepository
	NoteTags() NoteTagRepository
	Conflicts() ConflictRepository
	Intents() IntentRepository
	Checkpoints() CheckpointRepository

	// Transaction 在同一事务中执行 fn，fn 内部通过 ctx 使用事务
	// 任一步失败则全部回滚
	Transaction(ctx context.Context, uid string, fn func(ctx context.Context) error) error
	// Hydrate 在一个事务内清空该用户的笔记、标签、关联与冲突，并以 synced 状态写入快照
	Hydrate(ctx context.Context, uid string, snapshot *RemoteSnapshot) error
	// PendingCount 待推送记录总数
	PendingCount(ctx context.Context, uid string) (int64, error)
	// ClearUser 删除该用户的全部本地数据
	ClearUser(ctx context.Context, uid string) error
}
