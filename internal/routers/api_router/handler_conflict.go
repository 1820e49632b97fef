package api_router

import (
	"github.com/haierkeys/fast-note-offline/internal/app"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	pkgapp "github.com/haierkeys/fast-note-offline/pkg/app"
	"github.com/haierkeys/fast-note-offline/pkg/code"

	"github.com/gin-gonic/gin"
)

// ConflictHandler 冲突 API 路由处理器
type ConflictHandler struct {
	*Handler
}

// NewConflictHandler 创建 ConflictHandler 实例
func NewConflictHandler(a *app.App) *ConflictHandler {
	return &ConflictHandler{Handler: NewHandler(a)}
}

// List 未解决冲突
// @Summary 冲突列表
// @Tags 冲突
// @Produce json
// @Success 200 {object} pkgapp.Res{data=pkgapp.ListRes} "成功"
// @Router /api/conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	list, err := h.App.ConflictService.List(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "ConflictHandler.List", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponseList(code.Success, list, len(list))
}

// Preview 冲突差异预览
// @Summary 冲突预览
// @Tags 冲突
// @Produce json
// @Param id path string true "实体 ID"
// @Success 200 {object} pkgapp.Res{data=dto.ConflictPreview} "成功"
// @Router /api/conflicts/{id} [get]
func (h *ConflictHandler) Preview(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	preview, err := h.App.ConflictService.Preview(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, "ConflictHandler.Preview", err, code.ErrorConflictNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(preview))
}

// Resolve 解决冲突
// @Summary 解决冲突
// @Description choice 为 local、server 或 both；远端不可达时意图会保存并在稍后重放
// @Tags 冲突
// @Accept json
// @Produce json
// @Param id path string true "实体 ID"
// @Param params body dto.ConflictResolveRequest true "解决方式"
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/conflicts/{id}/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	params := &dto.ConflictResolveRequest{EntityID: c.Param("id")}
	if !h.bind(c, "ConflictHandler.Resolve", params) {
		return
	}
	choice, err := domain.ParseResolution(params.Choice)
	if err != nil {
		h.fail(c, "ConflictHandler.Resolve", err, nil)
		return
	}

	if err := h.App.ConflictService.Resolve(c.Request.Context(), uid, c.Param("id"), choice); err != nil {
		h.fail(c, "ConflictHandler.Resolve", err, code.ErrorConflictNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success)
}

// Dismiss 忽略冲突，本地记录保持不变
// @Summary 忽略冲突
// @Tags 冲突
// @Produce json
// @Param id path string true "实体 ID"
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/conflicts/{id} [delete]
func (h *ConflictHandler) Dismiss(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	if err := h.App.SyncService.RemoveConflict(c.Request.Context(), uid, c.Param("id")); err != nil {
		h.fail(c, "ConflictHandler.Dismiss", err, code.ErrorConflictNotFound)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success)
}
