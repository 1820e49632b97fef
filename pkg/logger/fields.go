package logger

// 统一的日志字段命名常量
// 用于确保整个项目中日志字段命名的一致性，便于日志查询和分析
const (
	// FieldTraceID 追踪 ID 字段
	FieldTraceID = "traceId"

	// FieldUID 用户 ID 字段
	FieldUID = "uid"

	// FieldMethod 方法名称字段
	FieldMethod = "method"

	// FieldDuration 耗时字段
	FieldDuration = "duration"

	// FieldEntityType 实体类型字段（note / tag / noteTag）
	FieldEntityType = "entityType"

	// FieldEntityID 实体 ID 字段
	FieldEntityID = "entityId"

	// FieldOp 待同步操作字段（upsert / delete）
	FieldOp = "op"

	// FieldAttempt 重试次数字段
	FieldAttempt = "attempt"

	// FieldChoice 冲突解决选项字段
	FieldChoice = "choice"

	// FieldTrigger 同步触发来源字段
	FieldTrigger = "trigger"

	// FieldIntentID 解决意图 ID 字段
	FieldIntentID = "intentId"

	// FieldCount 数量字段
	FieldCount = "count"
)
