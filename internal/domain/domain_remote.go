package domain

import (
	"context"
	"time"
)

// RemoteNote 远端笔记
type RemoteNote struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Pinned    bool       `json:"pinned"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
	// UpdatedAt 由远端在每次写入时分配
	UpdatedAt time.Time `json:"updated_at"`
}

// ToNote 转换为本地笔记（不含同步元数据）
func (r *RemoteNote) ToNote() *Note {
	return &Note{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Content:   r.Content,
		Pinned:    r.Pinned,
		DeletedAt: r.DeletedAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// RemoteTag 远端标签
type RemoteTag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToTag 转换为本地标签（不含同步元数据）
func (r *RemoteTag) ToTag() *Tag {
	return &Tag{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Color:     NormalizeTagColor(r.Color),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// RemoteNoteTag 远端笔记标签关联
type RemoteNoteTag struct {
	NoteID string `json:"note_id"`
	TagID  string `json:"tag_id"`
}

// RemoteSnapshot 某用户的远端全量数据
type RemoteSnapshot struct {
	Notes    []*RemoteNote
	Tags     []*RemoteTag
	NoteTags []*RemoteNoteTag
	// FetchedAt 抓取完成时间，作为灌入记录的 LastSyncedAt
	FetchedAt time.Time
}

// Cursor 快照中标签与笔记各自最大的远端修改时间
func (s *RemoteSnapshot) Cursor() PullCursor {
	var c PullCursor
	for _, n := range s.Notes {
		if c.Notes == nil || n.UpdatedAt.After(*c.Notes) {
			t := n.UpdatedAt
			c.Notes = &t
		}
	}
	for _, t := range s.Tags {
		if c.Tags == nil || t.UpdatedAt.After(*c.Tags) {
			u := t.UpdatedAt
			c.Tags = &u
		}
	}
	return c
}

// RemoteStore 远端存储契约
// 写操作返回远端分配 updated_at 后的记录；删除操作对不存在的记录应视为成功
type RemoteStore interface {
	// Ping 探测远端是否可达
	Ping(ctx context.Context) error

	// ListNotes 列出笔记，since 非空时只返回 updated_at >= since 的记录
	ListNotes(ctx context.Context, uid string, since *time.Time) ([]*RemoteNote, error)
	UpsertNote(ctx context.Context, uid string, note *RemoteNote) (*RemoteNote, error)
	DeleteNote(ctx context.Context, uid, id string) error

	// ListTags 列出标签，since 语义同 ListNotes
	ListTags(ctx context.Context, uid string, since *time.Time) ([]*RemoteTag, error)
	UpsertTag(ctx context.Context, uid string, tag *RemoteTag) (*RemoteTag, error)
	DeleteTag(ctx context.Context, uid, id string) error

	// ListNoteTags 列出全部关联
	ListNoteTags(ctx context.Context, uid string) ([]*RemoteNoteTag, error)
	AddNoteTag(ctx context.Context, uid, noteID, tagID string) error
	RemoveNoteTag(ctx context.Context, uid, noteID, tagID string) error
}
