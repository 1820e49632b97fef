package api_router

import (
	"github.com/haierkeys/fast-note-offline/internal/app"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	pkgapp "github.com/haierkeys/fast-note-offline/pkg/app"
	"github.com/haierkeys/fast-note-offline/pkg/code"

	"github.com/gin-gonic/gin"
)

// NoteHandler 笔记 API 路由处理器
type NoteHandler struct {
	*Handler
}

// NewNoteHandler 创建 NoteHandler 实例
func NewNoteHandler(a *app.App) *NoteHandler {
	return &NoteHandler{Handler: NewHandler(a)}
}

// List 笔记列表
// @Summary 获取笔记列表
// @Description 置顶优先，其次按修改时间倒序；deleted=true 时列出回收站
// @Tags 笔记
// @Produce json
// @Param params query dto.NoteListRequest true "查询参数"
// @Success 200 {object} pkgapp.Res{data=pkgapp.ListRes} "成功"
// @Router /api/notes [get]
func (h *NoteHandler) List(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	params := &dto.NoteListRequest{}
	if !h.bind(c, "NoteHandler.List", params) {
		return
	}

	notes, err := h.App.NoteService.List(c.Request.Context(), uid, params)
	if err != nil {
		h.fail(c, "NoteHandler.List", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponseList(code.Success, notes, len(notes))
}

// Get 笔记详情
// @Summary 获取笔记详情
// @Tags 笔记
// @Produce json
// @Param id path string true "笔记 ID"
// @Success 200 {object} pkgapp.Res{data=domain.Note} "成功"
// @Router /api/notes/{id} [get]
func (h *NoteHandler) Get(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	note, err := h.App.NoteService.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, "NoteHandler.Get", err, code.ErrorNoteNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(note))
}

// Create 新建笔记
// @Summary 新建笔记
// @Description 笔记只写入本地存储并标记为待推送
// @Tags 笔记
// @Accept json
// @Produce json
// @Param params body dto.NoteCreateRequest true "笔记内容"
// @Success 200 {object} pkgapp.Res{data=domain.Note} "成功"
// @Router /api/notes [post]
func (h *NoteHandler) Create(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	params := &dto.NoteCreateRequest{}
	if !h.bind(c, "NoteHandler.Create", params) {
		return
	}

	note, err := h.App.NoteService.Create(c.Request.Context(), uid, params)
	if err != nil {
		h.fail(c, "NoteHandler.Create", err, code.ErrorTagNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(note))
}

// Update 修改笔记
// @Summary 修改笔记
// @Tags 笔记
// @Accept json
// @Produce json
// @Param id path string true "笔记 ID"
// @Param params body dto.NoteUpdateRequest true "修改内容"
// @Success 200 {object} pkgapp.Res{data=domain.Note} "成功"
// @Router /api/notes/{id} [put]
func (h *NoteHandler) Update(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	params := &dto.NoteUpdateRequest{ID: c.Param("id")}
	if !h.bind(c, "NoteHandler.Update", params) {
		return
	}
	params.ID = c.Param("id")

	note, err := h.App.NoteService.Update(c.Request.Context(), uid, params)
	if err != nil {
		h.fail(c, "NoteHandler.Update", err, code.ErrorNoteNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(note))
}

// Delete 移入回收站
// @Summary 删除笔记（软删除）
// @Tags 笔记
// @Produce json
// @Param id path string true "笔记 ID"
// @Success 200 {object} pkgapp.Res{data=domain.Note} "成功"
// @Router /api/notes/{id} [delete]
func (h *NoteHandler) Delete(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	note, err := h.App.NoteService.SoftDelete(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, "NoteHandler.Delete", err, code.ErrorNoteNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(note))
}

// Restore 从回收站恢复
// @Summary 恢复笔记
// @Tags 笔记
// @Produce json
// @Param id path string true "笔记 ID"
// @Success 200 {object} pkgapp.Res{data=domain.Note} "成功"
// @Router /api/notes/{id}/restore [post]
func (h *NoteHandler) Restore(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	note, err := h.App.NoteService.Restore(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, "NoteHandler.Restore", err, code.ErrorNoteNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(note))
}

// DeletePermanently 彻底删除
// @Summary 彻底删除笔记
// @Description 远端删除在下次同步时推送
// @Tags 笔记
// @Produce json
// @Param id path string true "笔记 ID"
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/notes/{id}/permanent [delete]
func (h *NoteHandler) DeletePermanently(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	if err := h.App.NoteService.DeletePermanently(c.Request.Context(), uid, c.Param("id")); err != nil {
		h.fail(c, "NoteHandler.DeletePermanently", err, code.ErrorNoteNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success)
}

// AddTag 为笔记添加标签
// @Summary 添加标签
// @Tags 笔记
// @Produce json
// @Param id path string true "笔记 ID"
// @Param tagId path string true "标签 ID"
// @Success 200 {object} pkgapp.Res{data=domain.Note} "成功"
// @Router /api/notes/{id}/tags/{tagId} [post]
func (h *NoteHandler) AddTag(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	note, err := h.App.NoteService.AddTag(c.Request.Context(), uid, &dto.NoteTagRequest{
		NoteID: c.Param("id"),
		TagID:  c.Param("tagId"),
	})
	if err != nil {
		h.fail(c, "NoteHandler.AddTag", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(note))
}

// RemoveTag 移除笔记标签
// @Summary 移除标签
// @Tags 笔记
// @Produce json
// @Param id path string true "笔记 ID"
// @Param tagId path string true "标签 ID"
// @Success 200 {object} pkgapp.Res{data=domain.Note} "成功"
// @Router /api/notes/{id}/tags/{tagId} [delete]
func (h *NoteHandler) RemoveTag(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	note, err := h.App.NoteService.RemoveTag(c.Request.Context(), uid, &dto.NoteTagRequest{
		NoteID: c.Param("id"),
		TagID:  c.Param("tagId"),
	})
	if err != nil {
		h.fail(c, "NoteHandler.RemoveTag", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(note))
}

// RecycleBinCount 回收站笔记数量
// @Summary 回收站数量
// @Tags 笔记
// @Produce json
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/recycle-bin/count [get]
func (h *NoteHandler) RecycleBinCount(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	n, err := h.App.NoteService.CountDeleted(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "NoteHandler.RecycleBinCount", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(gin.H{"count": n}))
}
