package task

import (
	"context"
	"time"
)

func init() {
	Register(NewPendingGaugeTask)
}

// PendingGaugeTask 周期刷新待推送数量，覆盖同步之外的本地修改
type PendingGaugeTask struct {
	deps *Deps
}

// NewPendingGaugeTask 创建待推送数量刷新任务
func NewPendingGaugeTask(deps *Deps) (Task, error) {
	if deps.UID == "" || deps.Store == nil || deps.Observer == nil || deps.Config.PendingInterval <= 0 {
		return nil, nil
	}
	return &PendingGaugeTask{deps: deps}, nil
}

func (t *PendingGaugeTask) Name() string                { return "PendingGaugeTask" }
func (t *PendingGaugeTask) LoopInterval() time.Duration { return t.deps.Config.PendingInterval }
func (t *PendingGaugeTask) IsStartupRun() bool          { return true }

func (t *PendingGaugeTask) Run(ctx context.Context) error {
	n, err := t.deps.Store.PendingCount(ctx, t.deps.UID)
	if err != nil {
		return err
	}
	t.deps.Observer.PendingChanged(t.deps.UID, n)
	return nil
}
