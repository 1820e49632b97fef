package domain

import "errors"

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrSyncInProgress 已有同步在进行
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrDuplicateTagName 同名标签已存在（大小写不敏感）
	ErrDuplicateTagName = errors.New("tag name already exists")
	// ErrInvalidChoice 无效的冲突解决方式
	ErrInvalidChoice = errors.New("invalid resolution choice")
	// ErrUnsupportedEntity 不支持的实体类型
	ErrUnsupportedEntity = errors.New("unsupported entity type")
	// ErrConflictNotFound 冲突不存在或已解决
	ErrConflictNotFound = errors.New("conflict not found")
	// ErrPendingChanges 存在未推送的本地修改
	ErrPendingChanges = errors.New("local store has pending changes")
	// ErrInvalidInput 输入校验失败
	ErrInvalidInput = errors.New("invalid input")
)
