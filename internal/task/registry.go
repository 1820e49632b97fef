package task

import (
	"sync"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/service"
	"go.uber.org/zap"
)

// Config 后台任务配置
type Config struct {
	SyncInterval    time.Duration // 周期同步间隔，<= 0 关闭
	StartupDelay    time.Duration // 启动后首次同步前的等待
	ReplayInterval  time.Duration // 解决意图重放间隔，<= 0 只在启动时执行
	PurgeSchedule   string        // 回收站清理的 cron 表达式，空表示关闭
	PendingInterval time.Duration // 刷新待推送数量指标的间隔，<= 0 关闭
}

// Deps 任务依赖
type Deps struct {
	UID       string
	Config    Config
	Store     domain.LocalStore
	Sync      service.SyncService
	Conflicts service.ConflictService
	Retention service.RetentionService
	Observer  service.SyncObserver
	Logger    *zap.Logger
}

// TaskFactory 任务工厂函数类型,用于创建任务实例
// 返回 nil, nil 表示该任务未启用
type TaskFactory func(deps *Deps) (Task, error)

// taskRegistry 全局任务注册表
var (
	taskRegistry  []TaskFactory
	registryMutex sync.RWMutex
)

// Register 注册任务工厂函数
// 通常在各个任务文件的 init() 函数中调用
func Register(factory TaskFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	taskRegistry = append(taskRegistry, factory)
}

// GetFactories 获取所有已注册的任务工厂
func GetFactories() []TaskFactory {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	// 返回副本,避免外部修改
	factories := make([]TaskFactory, len(taskRegistry))
	copy(factories, taskRegistry)
	return factories
}
