package model

const TableNameNoteTag = "note_tag"

// NoteTag mapped from table <note_tag>
type NoteTag struct {
	UserID         string `gorm:"column:user_id;primaryKey;size:64" json:"userId"`
	NoteID         string `gorm:"column:note_id;primaryKey;size:64" json:"noteId"`
	TagID          string `gorm:"column:tag_id;primaryKey;size:64;index:idx_note_tag_tag_id" json:"tagId"`
	CreatedAt      int64  `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
	SyncStatus     string `gorm:"column:sync_status;size:16;not null;index:idx_note_tag_sync_status" json:"syncStatus"`
	PendingOp      string `gorm:"column:pending_op;size:16;not null" json:"pendingOp"`
	LastSyncedAt   *int64 `gorm:"column:last_synced_at" json:"lastSyncedAt"`
	LocalUpdatedAt int64  `gorm:"column:local_updated_at;not null" json:"localUpdatedAt"`
	LocalVersion   int64  `gorm:"column:local_version;not null" json:"localVersion"`
}

// TableName NoteTag's table name
func (*NoteTag) TableName() string {
	return TableNameNoteTag
}
