package dto

import "github.com/haierkeys/fast-note-offline/internal/domain"

// ConflictResolveRequest Request parameters for resolving a conflict
// 解决冲突的请求参数
type ConflictResolveRequest struct {
	EntityID string `json:"entityId" form:"entityId" uri:"id" binding:"required"`
	Choice   string `json:"choice" form:"choice" binding:"required,oneof=local server both"`
}

// ConflictPreview Line diff between the local and server versions
// 冲突预览：本地版本与远端版本的行级差异
type ConflictPreview struct {
	Conflict *domain.Conflict `json:"conflict"`
	// TitleChanged 标题是否不同
	TitleChanged bool `json:"titleChanged"`
	// Diff unified 格式差异（笔记为正文，标签为名称与颜色）
	Diff string `json:"diff"`
}

// HydrateRequest Request parameters for rebuilding the local store from the server
// 从远端重建本地存储的请求参数
type HydrateRequest struct {
	// Force 存在未推送修改时仍然覆盖
	Force bool `json:"force" form:"force"`
}

// SyncRequest 手动同步
type SyncRequest struct {
	// Wait 等待同步完成后返回结果
	Wait bool `json:"wait" form:"wait"`
}

// DemoSaveRequest Replace the pre-login demo buffer
// 覆盖登录前的演示缓冲区
type DemoSaveRequest struct {
	Notes []*domain.DemoNote `json:"notes" binding:"dive"`
	Tags  []*domain.DemoTag  `json:"tags" binding:"dive"`
}
