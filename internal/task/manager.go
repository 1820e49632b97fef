package task

import (
	"github.com/haierkeys/fast-note-offline/pkg/safe_close"
	"go.uber.org/zap"
)

// Manager 任务管理器,负责创建和管理所有任务
type Manager struct {
	scheduler *Scheduler
	deps      *Deps
	logger    *zap.Logger
}

// NewManager 创建任务管理器
func NewManager(deps *Deps, logger *zap.Logger, sc *safe_close.SafeClose) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Manager{
		scheduler: NewScheduler(logger, sc),
		deps:      deps,
		logger:    logger,
	}
}

// RegisterTasks 用已注册的工厂创建任务
// 单个工厂失败不影响其他任务，返回第一个错误
func (m *Manager) RegisterTasks() error {
	var first error
	for _, factory := range GetFactories() {
		t, err := factory(m.deps)
		if err != nil {
			m.logger.Warn("failed to create task", zap.Error(err))
			if first == nil {
				first = err
			}
			continue
		}
		if t == nil {
			continue
		}
		m.scheduler.AddTask(t)
		m.logger.Info("task registered", zap.String("name", t.Name()))
	}
	return first
}

// Start 启动所有已注册的任务
func (m *Manager) Start() {
	m.scheduler.Start()
}

// Tasks 已创建的任务
func (m *Manager) Tasks() []Task {
	return m.scheduler.Tasks()
}
