package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"go.uber.org/zap"
)

func init() {
	Register(NewReplayIntentTask)
}

// ReplayIntentTask 重放未完成的冲突解决意图
type ReplayIntentTask struct {
	deps *Deps
}

// NewReplayIntentTask 创建意图重放任务
func NewReplayIntentTask(deps *Deps) (Task, error) {
	if deps.UID == "" || deps.Conflicts == nil {
		return nil, nil
	}
	return &ReplayIntentTask{deps: deps}, nil
}

func (t *ReplayIntentTask) Name() string                { return "ReplayIntentTask" }
func (t *ReplayIntentTask) LoopInterval() time.Duration { return t.deps.Config.ReplayInterval }
func (t *ReplayIntentTask) IsStartupRun() bool          { return true }

func (t *ReplayIntentTask) Run(ctx context.Context) error {
	n, err := t.deps.Conflicts.ReplayPending(ctx, t.deps.UID)
	if n > 0 {
		t.deps.Logger.Info("resolution intents replayed",
			zap.String(logger.FieldUID, t.deps.UID),
			zap.Int(logger.FieldCount, n))
	}
	return err
}
