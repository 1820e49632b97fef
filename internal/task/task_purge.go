package task

import (
	"context"
	"time"

	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func init() {
	Register(NewPurgeTask)
}

// PurgeTask 按计划清理超过保留期的回收站笔记
type PurgeTask struct {
	deps     *Deps
	schedule cron.Schedule
}

// NewPurgeTask 创建回收站清理任务，表达式为空时不启用
func NewPurgeTask(deps *Deps) (Task, error) {
	if deps.UID == "" || deps.Retention == nil || deps.Config.PurgeSchedule == "" {
		return nil, nil
	}
	schedule, err := ParseSchedule(deps.Config.PurgeSchedule)
	if err != nil {
		return nil, err
	}
	return &PurgeTask{deps: deps, schedule: schedule}, nil
}

// ParseSchedule 解析五段式 cron 表达式，支持 @every / @daily 等描述符
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "parse cron expression %q", expr)
	}
	return s, nil
}

func (t *PurgeTask) Name() string                { return "PurgeTask" }
func (t *PurgeTask) LoopInterval() time.Duration { return 0 }
func (t *PurgeTask) IsStartupRun() bool          { return true }
func (t *PurgeTask) Schedule() cron.Schedule     { return t.schedule }

func (t *PurgeTask) Run(ctx context.Context) error {
	n, err := t.deps.Retention.PurgeExpired(ctx, t.deps.UID)
	if err != nil {
		return err
	}
	t.deps.Logger.Info("recycle bin purged",
		zap.String(logger.FieldUID, t.deps.UID),
		zap.Int(logger.FieldCount, n))
	return nil
}
