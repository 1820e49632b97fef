package api_router

import (
	"github.com/haierkeys/fast-note-offline/internal/app"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/dto"
	pkgapp "github.com/haierkeys/fast-note-offline/pkg/app"
	"github.com/haierkeys/fast-note-offline/pkg/code"
	apperrors "github.com/haierkeys/fast-note-offline/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// DemoHandler 演示模式 API 路由处理器
// 演示接口不需要账号
type DemoHandler struct {
	*Handler
}

// NewDemoHandler 创建 DemoHandler 实例
func NewDemoHandler(a *app.App) *DemoHandler {
	return &DemoHandler{Handler: NewHandler(a)}
}

// Get 读取演示数据
// @Summary 演示数据
// @Tags 演示
// @Produce json
// @Success 200 {object} pkgapp.Res{data=domain.DemoData} "成功"
// @Router /api/demo [get]
func (h *DemoHandler) Get(c *gin.Context) {
	data, err := h.App.DemoBuffer.Load(c.Request.Context())
	if err != nil {
		h.fail(c, "DemoHandler.Get", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(data))
}

// Save 覆盖演示数据
// @Summary 保存演示数据
// @Tags 演示
// @Accept json
// @Produce json
// @Param params body dto.DemoSaveRequest true "演示数据"
// @Success 200 {object} pkgapp.Res "成功"
// @Router /api/demo [put]
func (h *DemoHandler) Save(c *gin.Context) {
	params := &dto.DemoSaveRequest{}
	if !h.bind(c, "DemoHandler.Save", params) {
		return
	}
	data := &domain.DemoData{}
	if err := copier.Copy(data, params); err != nil {
		h.fail(c, "DemoHandler.Save", err, nil)
		return
	}
	if err := h.App.MigrationService.SaveDemo(c.Request.Context(), data); err != nil {
		h.fail(c, "DemoHandler.Save", err, nil)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success)
}

// Migrate 将演示数据迁移到当前账号
// @Summary 迁移演示数据
// @Description 按名称（大小写不敏感）复用已有标签，迁移后触发一次同步
// @Tags 演示
// @Produce json
// @Success 200 {object} pkgapp.Res{data=domain.MigrationResult} "成功"
// @Router /api/demo/migrate [post]
func (h *DemoHandler) Migrate(c *gin.Context) {
	uid, ok := h.uid(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	has, err := h.App.MigrationService.HasDemoData(ctx)
	if err != nil {
		h.fail(c, "DemoHandler.Migrate", err, nil)
		return
	}
	if !has {
		pkgapp.NewResponse(c).ToResponse(code.ErrorNothingToMigrate)
		return
	}

	res, err := h.App.MigrationService.MigrateDemoToAccount(ctx, uid)
	if err != nil {
		h.App.Logger().Warn("DemoHandler.Migrate", zap.Error(err))
		apperrors.ErrorResponse(c, code.ErrorMigrationFailed.WithDetails(err.Error()))
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(res))
}
