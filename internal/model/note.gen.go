package model

const TableNameNote = "note"

// Note mapped from table <note>
// 时间字段均为毫秒时间戳
type Note struct {
	UserID          string `gorm:"column:user_id;primaryKey;size:64" json:"userId"`
	ID              string `gorm:"column:id;primaryKey;size:64" json:"id"`
	Title           string `gorm:"column:title;not null" json:"title"`
	Content         string `gorm:"column:content;type:text" json:"content"`
	Pinned          bool   `gorm:"column:pinned;not null" json:"pinned"`
	DeletedAt       *int64 `gorm:"column:deleted_at;index:idx_note_deleted_at" json:"deletedAt"`
	CreatedAt       int64  `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
	UpdatedAt       int64  `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updatedAt"`
	SyncStatus      string `gorm:"column:sync_status;size:16;not null;index:idx_note_sync_status" json:"syncStatus"`
	PendingOp       string `gorm:"column:pending_op;size:16;not null" json:"pendingOp"`
	LastSyncedAt    *int64 `gorm:"column:last_synced_at" json:"lastSyncedAt"`
	ServerUpdatedAt *int64 `gorm:"column:server_updated_at" json:"serverUpdatedAt"`
	LocalUpdatedAt  int64  `gorm:"column:local_updated_at;not null" json:"localUpdatedAt"`
	LocalVersion    int64  `gorm:"column:local_version;not null" json:"localVersion"`
}

// TableName Note's table name
func (*Note) TableName() string {
	return TableNameNote
}
