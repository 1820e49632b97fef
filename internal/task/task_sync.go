package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func init() {
	Register(NewStartupSyncTask)
	Register(NewPeriodicSyncTask)
}

// StartupSyncTask 启动后延迟执行一次同步，本地为空时先从远端灌入
type StartupSyncTask struct {
	deps *Deps
}

// NewStartupSyncTask 创建启动同步任务
func NewStartupSyncTask(deps *Deps) (Task, error) {
	if deps.UID == "" || deps.Sync == nil {
		return nil, nil
	}
	return &StartupSyncTask{deps: deps}, nil
}

func (t *StartupSyncTask) Name() string                { return "StartupSyncTask" }
func (t *StartupSyncTask) LoopInterval() time.Duration { return 0 }
func (t *StartupSyncTask) IsStartupRun() bool          { return true }

// StartupDelay 首次同步前的等待
func (t *StartupSyncTask) StartupDelay() time.Duration {
	return t.deps.Config.StartupDelay
}

func (t *StartupSyncTask) Run(ctx context.Context) error {
	uid := t.deps.UID
	log := t.deps.Logger.With(zap.String(logger.FieldUID, uid))

	empty, err := t.deps.Sync.NeedsHydration(ctx, uid)
	if err != nil {
		return errors.Wrap(err, "check hydration")
	}
	if empty {
		if err := t.deps.Sync.Hydrate(ctx, uid, false); err != nil {
			log.Warn("initial hydration failed", zap.Error(err))
		}
	}
	return runSync(ctx, t.deps, domain.TriggerStartup)
}

// PeriodicSyncTask 周期同步
type PeriodicSyncTask struct {
	deps *Deps
}

// NewPeriodicSyncTask 创建周期同步任务，间隔 <= 0 时不启用
func NewPeriodicSyncTask(deps *Deps) (Task, error) {
	if deps.UID == "" || deps.Sync == nil || deps.Config.SyncInterval <= 0 {
		return nil, nil
	}
	return &PeriodicSyncTask{deps: deps}, nil
}

func (t *PeriodicSyncTask) Name() string                { return "PeriodicSyncTask" }
func (t *PeriodicSyncTask) LoopInterval() time.Duration { return t.deps.Config.SyncInterval }
func (t *PeriodicSyncTask) IsStartupRun() bool          { return false }

func (t *PeriodicSyncTask) Run(ctx context.Context) error {
	return runSync(ctx, t.deps, domain.TriggerPeriodic)
}

// runSync 执行一次同步；已有同步进行中时跳过
func runSync(ctx context.Context, deps *Deps, trigger domain.SyncTrigger) error {
	_, err := deps.Sync.FullSync(ctx, deps.UID, trigger)
	if errors.Is(err, domain.ErrSyncInProgress) {
		deps.Logger.Debug("sync skipped, another pass is running", zap.String(logger.FieldTrigger, string(trigger)))
		return nil
	}
	return err
}
