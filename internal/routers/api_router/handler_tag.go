package api_router

import (
	"github.com/haierkeys/fast-note-offline/internal/app"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	pkgapp "github.com/haierkeys/fast-note-offline/pkg/app"
	"github.com/haierkeys/fast-note-offline/pkg/code"

	"github.com/gin-gonic/gin"
)

// TagHandler 标签 API 路由处理器
type TagHandler struct {
	*Handler
}

// NewTagHandler 创建 TagHandler 实例
func NewTagHandler(a *app.App) *TagHandler {
	return &TagHandler{Handler: NewHandler(a)}
}

// List 标签列表
// @Summary 获取标签列表
// @Tags 标签
// @Produce json
// @Success 200 {object} pkgapp.Res{data=pkgapp.ListRes} "成功"
// @Router /api/tags [get]
func (h *TagHandler) List(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	tags, err := h.App.TagService.List(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "TagHandler.List", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponseList(code.Success, tags, len(tags))
}

// Get 标签详情
// @Summary 获取标签
// @Tags 标签
// @Produce json
// @Param id path string true "标签 ID"
// @Success 200 {object} pkgapp.Res{data=domain.Tag} "成功"
// @Router /api/tags/{id} [get]
func (h *TagHandler) Get(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	tag, err := h.App.TagService.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, "TagHandler.Get", err, code.ErrorTagNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(tag))
}

// Create 新建标签
// @Summary 新建标签
// @Description 名称大小写不敏感唯一
// @Tags 标签
// @Accept json
// @Produce json
// @Param params body dto.TagCreateRequest true "标签"
// @Success 200 {object} pkgapp.Res{data=domain.Tag} "成功"
// @Router /api/tags [post]
func (h *TagHandler) Create(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	params := &dto.TagCreateRequest{}
	if !h.bind(c, "TagHandler.Create", params) {
		return
	}
	tag, err := h.App.TagService.Create(c.Request.Context(), uid, params)
	if err != nil {
		h.fail(c, "TagHandler.Create", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(tag))
}

// Update 修改标签
// @Summary 修改标签名称或颜色
// @Tags 标签
// @Accept json
// @Produce json
// @Param id path string true "标签 ID"
// @Param params body dto.TagUpdateRequest true "修改内容"
// @Success 200 {object} pkgapp.Res{data=domain.Tag} "成功"
// @Router /api/tags/{id} [put]
func (h *TagHandler) Update(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	params := &dto.TagUpdateRequest{ID: c.Param("id")}
	if !h.bind(c, "TagHandler.Update", params) {
		return
	}
	params.ID = c.Param("id")

	tag, err := h.App.TagService.Update(c.Request.Context(), uid, params)
	if err != nil {
		h.fail(c, "TagHandler.Update", err, code.ErrorTagNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(tag))
}

// Delete 删除标签
// @Summary 删除标签
// @Description 同时解除与笔记的关联
// @Tags 标签
// @Produce json
// @Param id path string true "标签 ID"
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/tags/{id} [delete]
func (h *TagHandler) Delete(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	if err := h.App.TagService.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		h.fail(c, "TagHandler.Delete", err, code.ErrorTagNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success)
}
