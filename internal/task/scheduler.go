package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-offline/pkg/safe_close"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task 定义任务接口
type Task interface {
	Name() string                  // 任务名称
	Run(ctx context.Context) error // 执行任务
	LoopInterval() time.Duration   // 执行间隔，<= 0 表示不循环
	IsStartupRun() bool            // 是否立即执行一次
}

// DelayedTask 启动执行前需要等待的任务
type DelayedTask interface {
	Task
	StartupDelay() time.Duration
}

// CronTask 按 cron 表达式执行的任务，忽略 LoopInterval
type CronTask interface {
	Task
	Schedule() cron.Schedule
}

// Scheduler 任务调度器
type Scheduler struct {
	logger *zap.Logger
	tasks  []Task
	sc     *safe_close.SafeClose
}

// NewScheduler 创建任务调度器
func NewScheduler(logger *zap.Logger, sc *safe_close.SafeClose) *Scheduler {
	return &Scheduler{
		logger: logger,
		tasks:  make([]Task, 0),
		sc:     sc,
	}
}

// AddTask 添加任务
func (s *Scheduler) AddTask(task Task) {
	s.tasks = append(s.tasks, task)
}

// Tasks 已添加的任务
func (s *Scheduler) Tasks() []Task {
	return s.tasks
}

// Start 启动所有任务
func (s *Scheduler) Start() {
	if len(s.tasks) == 0 {
		s.logger.Info("no tasks to schedule")
		return
	}

	s.logger.Info("tasks starting", zap.Int("count", len(s.tasks)))

	for _, task := range s.tasks {
		s.startTask(task)
	}
}

// runOnce 执行一次任务，捕获 panic
func (s *Scheduler) runOnce(ctx context.Context, task Task, mode string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panic",
				zap.String("name", task.Name()),
				zap.String("mode", mode),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	s.logger.Debug("task running", zap.String("name", task.Name()), zap.String("mode", mode))
	if err := task.Run(ctx); err != nil {
		s.logger.Error("task running error",
			zap.String("name", task.Name()),
			zap.String("mode", mode),
			zap.Error(err))
	}
}

// wait 等待 d，关闭信号到达时返回 false
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// startTask 启动单个任务
func (s *Scheduler) startTask(task Task) {
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-closeSignal:
				cancel()
			case <-ctx.Done():
			}
		}()

		if task.IsStartupRun() {
			var delay time.Duration
			if d, ok := task.(DelayedTask); ok {
				delay = d.StartupDelay()
			}
			if !wait(ctx, delay) {
				return
			}
			s.runOnce(ctx, task, "startup")
		}

		if c, ok := task.(CronTask); ok {
			s.runCron(ctx, c)
			return
		}

		if task.LoopInterval() <= 0 {
			return
		}

		ticker := time.NewTicker(task.LoopInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx, task, "loop")
			case <-ctx.Done():
				s.logger.Info("task stopped", zap.String("name", task.Name()))
				return
			}
		}
	})
}

func (s *Scheduler) runCron(ctx context.Context, task CronTask) {
	schedule := task.Schedule()
	for {
		now := time.Now()
		next := schedule.Next(now)
		if next.IsZero() {
			return
		}
		s.logger.Debug("task scheduled", zap.String("name", task.Name()), zap.Time("next", next))
		if !wait(ctx, next.Sub(now)) {
			s.logger.Info("task stopped", zap.String("name", task.Name()))
			return
		}
		s.runOnce(ctx, task, "cron")
	}
}
