package domain

import "context"

// DemoTag 登录前创建的演示标签
type DemoTag struct {
	LocalID string `json:"localId"`
	Name    string `json:"name"`
	Color   string `json:"color"`
}

// DemoNote 登录前创建的演示笔记
type DemoNote struct {
	LocalID string   `json:"localId"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	TagIDs  []string `json:"tagIds"`
}

// DemoData 演示缓冲区内容
type DemoData struct {
	Notes []*DemoNote `json:"notes"`
	Tags  []*DemoTag  `json:"tags"`
}

// IsEmpty 是否没有笔记
func (d *DemoData) IsEmpty() bool {
	return d == nil || len(d.Notes) == 0
}

// DemoBuffer 登录前的本地演示数据缓冲
type DemoBuffer interface {
	Load(ctx context.Context) (*DemoData, error)
	Save(ctx context.Context, data *DemoData) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
}

// MigrationResult 迁移结果
type MigrationResult struct {
	MigratedNotes []*Note `json:"migratedNotes"`
	// NewTags 本次新建的标签
	NewTags []*Tag `json:"newTags"`
	// ReusedTags 按名称复用的已有标签
	ReusedTags []*Tag `json:"reusedTags"`
	NoteCount  int    `json:"noteCount"`
}
