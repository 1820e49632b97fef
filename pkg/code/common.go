package code

import "net/http"

var (
	Success = NewSuss(1, lang{en: "Success", zh_cn: "成功"})

	Failed               = NewError(400, http.StatusBadRequest, lang{en: "Failed", zh_cn: "失败"})
	ErrorInvalidParams   = NewError(401, http.StatusBadRequest, lang{en: "Invalid params", zh_cn: "参数错误"})
	ErrorUnauthorized    = NewError(403, http.StatusUnauthorized, lang{en: "Invalid auth token", zh_cn: "无效的授权令牌"})
	ErrorNotFound        = NewError(404, http.StatusNotFound, lang{en: "Resource not found", zh_cn: "资源不存在"})
	ErrorServerInternal  = NewError(500, http.StatusInternalServerError, lang{en: "Internal server error", zh_cn: "服务内部错误"})
	ErrorTooManyRequests = NewError(429, http.StatusTooManyRequests, lang{en: "Too many requests", zh_cn: "请求过多"})

	ErrorDBQuery          = NewError(1001, http.StatusInternalServerError, lang{en: "Local store error", zh_cn: "本地存储错误"})
	ErrorNoteNotFound     = NewError(1002, http.StatusNotFound, lang{en: "Note not found", zh_cn: "笔记不存在"})
	ErrorTagNotFound      = NewError(1003, http.StatusNotFound, lang{en: "Tag not found", zh_cn: "标签不存在"})
	ErrorTagNameExists    = NewError(1004, http.StatusConflict, lang{en: "A tag with this name already exists", zh_cn: "同名标签已存在"})
	ErrorSyncInProgress   = NewError(1005, http.StatusConflict, lang{en: "A sync is already running", zh_cn: "同步正在进行中"})
	ErrorConflictNotFound = NewError(1006, http.StatusNotFound, lang{en: "Conflict not found", zh_cn: "冲突不存在"})
	ErrorInvalidChoice    = NewError(1007, http.StatusBadRequest, lang{en: "Resolution must be local, server or both", zh_cn: "解决方式必须为 local、server 或 both"})
	ErrorRemote           = NewError(1008, http.StatusBadGateway, lang{en: "Remote store error", zh_cn: "远端存储错误"})
	ErrorMigrationFailed  = NewError(1009, http.StatusBadGateway, lang{en: "Demo migration failed", zh_cn: "演示数据迁移失败"})
	ErrorNothingToMigrate = NewError(1010, http.StatusOK, lang{en: "No demo data to migrate", zh_cn: "没有需要迁移的演示数据"})
	ErrorPendingChanges   = NewError(1011, http.StatusConflict, lang{en: "Local changes have not been pushed yet", zh_cn: "存在尚未推送的本地修改"})
	ErrorNotLoggedIn      = NewError(1012, http.StatusUnauthorized, lang{en: "No account is configured", zh_cn: "尚未配置账号"})
)
