// Package dto Defines data transfer objects (request parameters and response structs)
// Package dto 定义数据传输对象（请求参数和响应结构体）
package dto

// NoteCreateRequest Request parameters for creating a note
// 创建笔记的请求参数
type NoteCreateRequest struct {
	Title   string   `json:"title" form:"title" binding:"max=500"`         // Note title // 笔记标题
	Content string   `json:"content" form:"content"`                       // HTML content // HTML 正文
	Pinned  bool     `json:"pinned" form:"pinned"`                         // Pinned flag // 是否置顶
	TagIDs  []string `json:"tagIds" form:"tagIds" binding:"dive,required"` // Initial tags // 初始标签
}

// NoteUpdateRequest Request parameters for updating a note, nil fields stay unchanged
// 修改笔记的请求参数，nil 字段保持不变
type NoteUpdateRequest struct {
	ID      string  `json:"id" form:"id" binding:"required"`
	Title   *string `json:"title" form:"title" binding:"omitempty,max=500"`
	Content *string `json:"content" form:"content"`
	Pinned  *bool   `json:"pinned" form:"pinned"`
}

// NoteListRequest Request parameters for listing notes
// 笔记列表的请求参数
type NoteListRequest struct {
	Query   string   `json:"q" form:"q"`             // Case-insensitive search // 大小写不敏感搜索
	TagIDs  []string `json:"tagIds" form:"tagIds"`   // Tag filter, all must match // 标签过滤（全部匹配）
	Deleted bool     `json:"deleted" form:"deleted"` // List the recycle bin // 列出回收站
}

// NoteTagRequest Request parameters for tagging a note
// 为笔记添加或移除标签的请求参数
type NoteTagRequest struct {
	NoteID string `json:"noteId" form:"noteId" binding:"required"`
	TagID  string `json:"tagId" form:"tagId" binding:"required"`
}

// NoteIDRequest 单个笔记 ID
type NoteIDRequest struct {
	ID string `json:"id" form:"id" uri:"id" binding:"required"`
}
