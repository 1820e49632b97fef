package model

const (
	TableNameSyncCheckpoint   = "sync_checkpoint"
	TableNameSyncConflict     = "sync_conflict"
	TableNameResolutionIntent = "resolution_intent"
)

// SyncCheckpoint mapped from table <sync_checkpoint>
type SyncCheckpoint struct {
	UserID     string `gorm:"column:user_id;primaryKey;size:64" json:"userId"`
	TagPullAt  *int64 `gorm:"column:tag_pull_at" json:"tagPullAt"`
	NotePullAt *int64 `gorm:"column:note_pull_at" json:"notePullAt"`
	LastSyncAt *int64 `gorm:"column:last_sync_at" json:"lastSyncAt"`
	HydratedAt *int64 `gorm:"column:hydrated_at" json:"hydratedAt"`
	// LastResult JSON 编码的最近一次同步结果
	LastResult string `gorm:"column:last_result;type:text" json:"lastResult"`
}

// TableName SyncCheckpoint's table name
func (*SyncCheckpoint) TableName() string {
	return TableNameSyncCheckpoint
}

// SyncConflict mapped from table <sync_conflict>
type SyncConflict struct {
	UserID     string `gorm:"column:user_id;primaryKey;size:64" json:"userId"`
	EntityID   string `gorm:"column:entity_id;primaryKey;size:64" json:"entityId"`
	EntityType string `gorm:"column:entity_type;size:16;not null" json:"entityType"`
	// Payload JSON 编码的本地与远端版本
	Payload    string `gorm:"column:payload;type:text;not null" json:"payload"`
	DetectedAt int64  `gorm:"column:detected_at;not null" json:"detectedAt"`
}

// TableName SyncConflict's table name
func (*SyncConflict) TableName() string {
	return TableNameSyncConflict
}

// ResolutionIntent mapped from table <resolution_intent>
type ResolutionIntent struct {
	UserID     string `gorm:"column:user_id;primaryKey;size:64" json:"userId"`
	ID         string `gorm:"column:id;primaryKey;size:64" json:"id"`
	EntityType string `gorm:"column:entity_type;size:16;not null" json:"entityType"`
	EntityID   string `gorm:"column:entity_id;size:64;not null;index:idx_intent_entity" json:"entityId"`
	Choice     string `gorm:"column:choice;size:16;not null" json:"choice"`
	CopyID     string `gorm:"column:copy_id;size:64" json:"copyId"`
	// Conflict JSON 编码的冲突
	Conflict  string `gorm:"column:conflict;type:text;not null" json:"conflict"`
	Attempts  int    `gorm:"column:attempts;not null" json:"attempts"`
	LastError string `gorm:"column:last_error;type:text" json:"lastError"`
	CreatedAt int64  `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
}

// TableName ResolutionIntent's table name
func (*ResolutionIntent) TableName() string {
	return TableNameResolutionIntent
}
