package model

const TableNameTag = "tag"

// Tag mapped from table <tag>
// NameFold 为大小写折叠后的名称，(user_id, name_fold) 唯一
type Tag struct {
	UserID          string `gorm:"column:user_id;primaryKey;size:64;uniqueIndex:idx_tag_user_name_fold,priority:1" json:"userId"`
	ID              string `gorm:"column:id;primaryKey;size:64" json:"id"`
	Name            string `gorm:"column:name;not null" json:"name"`
	NameFold        string `gorm:"column:name_fold;not null;uniqueIndex:idx_tag_user_name_fold,priority:2" json:"-"`
	Color           string `gorm:"column:color;size:16;not null" json:"color"`
	CreatedAt       int64  `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
	UpdatedAt       int64  `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updatedAt"`
	SyncStatus      string `gorm:"column:sync_status;size:16;not null;index:idx_tag_sync_status" json:"syncStatus"`
	PendingOp       string `gorm:"column:pending_op;size:16;not null" json:"pendingOp"`
	LastSyncedAt    *int64 `gorm:"column:last_synced_at" json:"lastSyncedAt"`
	ServerUpdatedAt *int64 `gorm:"column:server_updated_at" json:"serverUpdatedAt"`
	LocalUpdatedAt  int64  `gorm:"column:local_updated_at;not null" json:"localUpdatedAt"`
	LocalVersion    int64  `gorm:"column:local_version;not null" json:"localVersion"`
}

// TableName Tag's table name
func (*Tag) TableName() string {
	return TableNameTag
}
