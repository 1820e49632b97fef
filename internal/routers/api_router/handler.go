// Package api_router 提供本地 HTTP API 路由处理器
package api_router

import (
	"errors"

	"github.com/haierkeys/fast-note-offline/internal/app"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/middleware"
	pkgapp "github.com/haierkeys/fast-note-offline/pkg/app"
	"github.com/haierkeys/fast-note-offline/pkg/code"
	apperrors "github.com/haierkeys/fast-note-offline/pkg/errors"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/retry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 基础 Handler 结构体，封装 App Container
// 所有 API Handler 都应该嵌入此结构体以获得依赖注入能力
type Handler struct {
	App *app.App
}

// NewHandler 创建基础 Handler 实例
func NewHandler(a *app.App) *Handler {
	return &Handler{App: a}
}

// uid 返回当前账号，未配置账号时直接输出错误响应
func (h *Handler) uid(c *gin.Context) (string, bool) {
	uid := h.App.UID()
	if uid == "" {
		pkgapp.NewResponse(c).ToResponse(code.ErrorNotLoggedIn)
		return "", false
	}
	return uid, true
}

// bind 绑定请求参数，失败时输出参数错误
func (h *Handler) bind(c *gin.Context, op string, params interface{}) bool {
	if err := c.ShouldBind(params); err != nil {
		h.App.Logger().Warn(op+".Bind err", zap.Error(err))
		pkgapp.NewResponse(c).ToResponse(code.ErrorInvalidParams.WithDetails(err.Error()))
		return false
	}
	return true
}

// fail 记录错误并转换为统一错误响应
// notFound 为 ErrNotFound 对应的响应码
func (h *Handler) fail(c *gin.Context, op string, err error, notFound *code.Code) {
	h.App.Logger().Warn(op,
		zap.String(logger.FieldTraceID, middleware.GetTraceIDFromGin(c)),
		zap.Error(err))
	apperrors.ErrorResponse(c, toCode(err, notFound).WithDetails(err.Error()))
}

// toCode 领域错误到响应码
func toCode(err error, notFound *code.Code) *code.Code {
	var sc retry.StatusCoder
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedEntity):
		return code.ErrorInvalidParams
	case errors.Is(err, domain.ErrInvalidChoice):
		return code.ErrorInvalidChoice
	case errors.Is(err, domain.ErrDuplicateTagName):
		return code.ErrorTagNameExists
	case errors.Is(err, domain.ErrSyncInProgress):
		return code.ErrorSyncInProgress
	case errors.Is(err, domain.ErrConflictNotFound):
		return code.ErrorConflictNotFound
	case errors.Is(err, domain.ErrPendingChanges):
		return code.ErrorPendingChanges
	case errors.Is(err, domain.ErrNotFound):
		if notFound == nil {
			return code.ErrorNotFound
		}
		return notFound
	case errors.As(err, &sc), retry.IsRetryable(err):
		return code.ErrorRemote
	default:
		return code.ErrorServerInternal
	}
}
