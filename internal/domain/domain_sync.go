package domain

import "time"

// SyncStatus 本地记录的同步状态
type SyncStatus string

const (
	// SyncStatusPending 本地有未推送的修改
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusSynced 与远端一致
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusConflict 存在待用户处理的冲突（读取时叠加，不写入记录本身）
	SyncStatusConflict SyncStatus = "conflict"
)

// PendingOp 待推送的操作类型
type PendingOp string

const (
	PendingOpNone   PendingOp = ""
	PendingOpUpsert PendingOp = "upsert"
	PendingOpDelete PendingOp = "delete"
)

// EntityType 可同步的实体类型
type EntityType string

const (
	EntityNote    EntityType = "note"
	EntityTag     EntityType = "tag"
	EntityNoteTag EntityType = "noteTag"
)

// SyncMeta 每条本地记录的同步元数据（仅本地）
type SyncMeta struct {
	Status SyncStatus `json:"syncStatus"`
	// Op 仅在 pending 时有意义
	Op PendingOp `json:"pendingOp,omitempty"`
	// LastSyncedAt 最近一次成功同步的时间
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	// ServerUpdatedAt 最近已知的远端修改时间
	ServerUpdatedAt *time.Time `json:"serverUpdatedAt,omitempty"`
	// LocalUpdatedAt 最近一次本地修改时间
	LocalUpdatedAt time.Time `json:"localUpdatedAt"`
	// LocalVersion 每次本地修改递增，用于判断推送期间是否又有新修改
	LocalVersion int64 `json:"localVersion"`
}

// IsPending 是否有待推送修改
func (m SyncMeta) IsPending() bool {
	return m.Status == SyncStatusPending
}

// NeverSynced 远端是否从未见过该记录
func (m SyncMeta) NeverSynced() bool {
	return m.ServerUpdatedAt == nil
}

// RemoteIsNewer 远端修改时间是否晚于最近已知的远端时间
// 比较精度为毫秒，与本地存储精度一致
func (m SyncMeta) RemoteIsNewer(remoteUpdatedAt time.Time) bool {
	if m.ServerUpdatedAt == nil {
		return true
	}
	return remoteUpdatedAt.UnixMilli() > m.ServerUpdatedAt.UnixMilli()
}

// SyncTrigger 同步触发来源
type SyncTrigger string

const (
	TriggerManual    SyncTrigger = "manual"
	TriggerPeriodic  SyncTrigger = "periodic"
	TriggerReconnect SyncTrigger = "reconnect"
	TriggerStartup   SyncTrigger = "startup"
	TriggerRealtime  SyncTrigger = "realtime"
	TriggerMigration SyncTrigger = "migration"
)

// SyncFailure 推送阶段单条记录的失败
type SyncFailure struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Op         PendingOp  `json:"op"`
	Error      string     `json:"error"`
	Retryable  bool       `json:"retryable"`
}

// SyncResult 一次完整同步的结果
type SyncResult struct {
	Trigger    SyncTrigger `json:"trigger"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	Pushed     int         `json:"pushed"`
	Pulled     int         `json:"pulled"`
	Conflicted int         `json:"conflicted"`
	Failed     int         `json:"failed"`
	// Skipped 因存在未解决冲突而暂缓推送的记录数
	Skipped  int           `json:"skipped"`
	Replayed int           `json:"replayed"`
	Failures []SyncFailure `json:"failures,omitempty"`
	// PushError 推送阶段被中止的原因（本地存储错误）
	PushError string `json:"pushError,omitempty"`
	// PullError 拉取阶段被中止的原因
	PullError string `json:"pullError,omitempty"`
}

// Duration 同步耗时
func (r *SyncResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// OK 推送与拉取阶段都没有被中止，且没有失败记录
func (r *SyncResult) OK() bool {
	return r.PushError == "" && r.PullError == "" && r.Failed == 0
}

// SyncCheckpoint 每个用户的同步游标与最近结果
type SyncCheckpoint struct {
	UserID     string
	Pull       PullCursor
	LastSyncAt *time.Time
	LastResult *SyncResult
	// HydratedAt 最近一次全量灌入的时间
	HydratedAt *time.Time
}

// PullCursor 已拉取的最大远端修改时间，nil 表示从未拉取
// 标签与笔记分别请求，各自推进
type PullCursor struct {
	Tags  *time.Time
	Notes *time.Time
}

// SyncState 供 UI 观察的同步状态
type SyncState struct {
	IsSyncing    bool        `json:"isSyncing"`
	PendingCount int64       `json:"pendingCount"`
	LastResult   *SyncResult `json:"lastResult,omitempty"`
	LastSyncAt   *time.Time  `json:"lastSyncAt,omitempty"`
	Conflicts    []*Conflict `json:"conflicts"`
}
