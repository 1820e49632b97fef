package domain

import "time"

// Note 笔记领域模型
type Note struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Pinned  bool   `json:"pinned"`
	// DeletedAt 软删除时间，nil 表示未删除
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	// Tags 读取时填充
	Tags []*Tag   `json:"tags"`
	Sync SyncMeta `json:"sync"`
}

// IsDeleted 是否已软删除
func (n *Note) IsDeleted() bool {
	return n.DeletedAt != nil
}

// TagIDs 返回标签 ID 列表
func (n *Note) TagIDs() []string {
	ids := make([]string, 0, len(n.Tags))
	for _, t := range n.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// HasAllTags 是否包含全部给定标签（AND）
func (n *Note) HasAllTags(tagIDs []string) bool {
	have := make(map[string]struct{}, len(n.Tags))
	for _, t := range n.Tags {
		have[t.ID] = struct{}{}
	}
	for _, id := range tagIDs {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

// ToRemote 转换为远端表示
func (n *Note) ToRemote() *RemoteNote {
	return &RemoteNote{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		Pinned:    n.Pinned,
		DeletedAt: n.DeletedAt,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}
