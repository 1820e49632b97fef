package domain

import "time"

// TagColor 标签颜色，取值来自固定调色板
type TagColor string

const (
	TagColorDefault TagColor = "default"
	TagColorRed     TagColor = "red"
	TagColorOrange  TagColor = "orange"
	TagColorYellow  TagColor = "yellow"
	TagColorGreen   TagColor = "green"
	TagColorBlue    TagColor = "blue"
	TagColorPurple  TagColor = "purple"
	TagColorPink    TagColor = "pink"
	TagColorGray    TagColor = "gray"
)

// TagPalette 全部可用颜色
var TagPalette = []TagColor{
	TagColorDefault, TagColorRed, TagColorOrange, TagColorYellow, TagColorGreen,
	TagColorBlue, TagColorPurple, TagColorPink, TagColorGray,
}

// Valid 是否为调色板中的颜色
func (c TagColor) Valid() bool {
	for _, p := range TagPalette {
		if c == p {
			return true
		}
	}
	return false
}

// NormalizeTagColor 未知颜色回退为 default
func NormalizeTagColor(c string) TagColor {
	if tc := TagColor(c); tc.Valid() {
		return tc
	}
	return TagColorDefault
}

// Tag 标签领域模型
// 同一用户下名称大小写不敏感唯一
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     TagColor  `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Sync      SyncMeta  `json:"sync"`
}

// ToRemote 转换为远端表示
func (t *Tag) ToRemote() *RemoteTag {
	return &RemoteTag{
		ID:        t.ID,
		UserID:    t.UserID,
		Name:      t.Name,
		Color:     string(t.Color),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// NoteTag 笔记与标签的关联，复合主键 (NoteID, TagID)
type NoteTag struct {
	UserID    string    `json:"userId"`
	NoteID    string    `json:"noteId"`
	TagID     string    `json:"tagId"`
	CreatedAt time.Time `json:"createdAt"`
	Sync      SyncMeta  `json:"sync"`
}

// Key 关联的复合键
func (l *NoteTag) Key() string {
	return NoteTagKey(l.NoteID, l.TagID)
}

// NoteTagKey 关联复合键
func NoteTagKey(noteID, tagID string) string {
	return noteID + ":" + tagID
}
