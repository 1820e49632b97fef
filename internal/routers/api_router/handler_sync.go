package api_router

import (
	"github.com/haierkeys/fast-note-offline/internal/app"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	pkgapp "github.com/haierkeys/fast-note-offline/pkg/app"
	"github.com/haierkeys/fast-note-offline/pkg/code"

	"github.com/gin-gonic/gin"
)

// SyncHandler 同步 API 路由处理器
type SyncHandler struct {
	*Handler
}

// NewSyncHandler 创建 SyncHandler 实例
func NewSyncHandler(a *app.App) *SyncHandler {
	return &SyncHandler{Handler: NewHandler(a)}
}

// Sync 手动同步
// @Summary 立即同步
// @Description wait=true 时同步执行并返回结果，已有同步在进行时返回 1005；否则提交到后台
// @Tags 同步
// @Produce json
// @Param params query dto.SyncRequest false "参数"
// @Success 200 {object} pkgapp.Res{data=domain.SyncResult} "成功"
// @Router /api/sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	params := &dto.SyncRequest{}
	if !h.bind(c, "SyncHandler.Sync", params) {
		return
	}

	ctx := c.Request.Context()
	if !params.Wait {
		if err := h.App.SyncService.TriggerSync(ctx, uid, domain.TriggerManual); err != nil {
			h.fail(c, "SyncHandler.Sync", err, nil)
			return
		}
		pkgapp.NewResponse(c).ToResponse(code.Success)
		return
	}

	res, err := h.App.SyncService.FullSync(ctx, uid, domain.TriggerManual)
	if err != nil {
		h.fail(c, "SyncHandler.Sync", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(res))
}

// State 同步状态
// @Summary 同步状态
// @Description 是否正在同步、待推送数量、上次结果与未解决冲突
// @Tags 同步
// @Produce json
// @Success 200 {object} pkgapp.Res{data=domain.SyncState} "成功"
// @Router /api/sync/state [get]
func (h *SyncHandler) State(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	state, err := h.App.SyncService.State(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "SyncHandler.State", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(state))
}

// Hydrate 以远端数据重建本地存储
// @Summary 重建本地存储
// @Description 存在未推送修改时需 force=true
// @Tags 同步
// @Produce json
// @Param params query dto.HydrateRequest false "参数"
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/sync/hydrate [post]
func (h *SyncHandler) Hydrate(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	params := &dto.HydrateRequest{}
	if !h.bind(c, "SyncHandler.Hydrate", params) {
		return
	}
	if err := h.App.SyncService.Hydrate(c.Request.Context(), uid, params.Force); err != nil {
		h.fail(c, "SyncHandler.Hydrate", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success)
}
