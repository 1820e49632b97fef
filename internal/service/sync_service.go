package service

import (
	"context"
	"sync"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/retry"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/workerpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SyncService Sync engine: push local pending changes, then pull remote changes
// SyncService 同步引擎：先推送本地待同步修改，再拉取远端修改
type SyncService interface {
	// FullSync 执行一次完整同步；已有同步进行中时返回 ErrSyncInProgress
	// 某阶段被中止时同时返回结果与错误
	FullSync(ctx context.Context, uid string, trigger domain.SyncTrigger) (*domain.SyncResult, error)
	// TriggerSync 在后台发起同步，重复触发合并为一次
	TriggerSync(ctx context.Context, uid string, trigger domain.SyncTrigger) error
	// Hydrate 以远端全量数据重建本地存储
	// 存在未推送修改且未指定 force 时返回 ErrPendingChanges
	Hydrate(ctx context.Context, uid string, force bool) error
	// NeedsHydration 本地没有任何笔记时需要灌入
	NeedsHydration(ctx context.Context, uid string) (bool, error)
	// SetConflictHandler 注册冲突回调，替换已有回调，nil 表示取消
	SetConflictHandler(h domain.ConflictHandler)
	// RemoveConflict 从未解决集合中移除冲突，本地待推送修改保留
	RemoveConflict(ctx context.Context, uid, entityID string) error
	// State 同步状态快照
	State(ctx context.Context, uid string) (*domain.SyncState, error)
	// IsSyncing 是否有同步正在进行
	IsSyncing() bool
}

// SyncOption 同步服务可选项
type SyncOption func(*syncService)

// WithSyncObserver 注册同步事件观察者
func WithSyncObserver(o SyncObserver) SyncOption {
	return func(s *syncService) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithWorkerPool TriggerSync 使用的后台池
func WithWorkerPool(p *workerpool.Pool) SyncOption {
	return func(s *syncService) { s.pool = p }
}

type syncService struct {
	store    domain.LocalStore
	remote   domain.RemoteStore
	gate     *SyncGate
	resolver *resolver
	config   SyncServiceConfig
	clock    timex.Clock
	logger   *zap.Logger
	pool     *workerpool.Pool
	observer SyncObserver

	handlerMu sync.RWMutex
	handler   domain.ConflictHandler
}

var _ SyncService = (*syncService)(nil)

// NewSyncService 创建 SyncService 实例
func NewSyncService(store domain.LocalStore, remote domain.RemoteStore, gate *SyncGate, cfg SyncServiceConfig, clock timex.Clock, logger *zap.Logger, opts ...SyncOption) SyncService {
	if clock == nil {
		clock = timex.System
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &syncService{
		store:    store,
		remote:   remote,
		gate:     gate,
		resolver: newResolver(store, remote, cfg, clock, logger),
		config:   cfg,
		clock:    clock,
		logger:   logger,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *syncService) IsSyncing() bool {
	return s.gate.Syncing()
}

func (s *syncService) SetConflictHandler(h domain.ConflictHandler) {
	s.handlerMu.Lock()
	s.handler = h
	s.handlerMu.Unlock()
}

func (s *syncService) notify(conflicts []*domain.Conflict) {
	s.handlerMu.RLock()
	h := s.handler
	s.handlerMu.RUnlock()
	if h == nil {
		return
	}
	for _, c := range conflicts {
		h(c)
	}
}

// FullSync 完整同步
func (s *syncService) FullSync(ctx context.Context, uid string, trigger domain.SyncTrigger) (*domain.SyncResult, error) {
	if !s.gate.TryEnter() {
		return nil, domain.ErrSyncInProgress
	}
	// 回调在释放闸门之后执行，回调内可以直接解决冲突
	res, conflicts, err := func() (*domain.SyncResult, []*domain.Conflict, error) {
		defer s.gate.Leave()
		return s.run(ctx, uid, trigger)
	}()
	s.notify(conflicts)
	return res, err
}

func (s *syncService) run(ctx context.Context, uid string, trigger domain.SyncTrigger) (*domain.SyncResult, []*domain.Conflict, error) {
	log := s.logger.With(zap.String(logger.FieldUID, uid), zap.String(logger.FieldTrigger, string(trigger)))
	res := &domain.SyncResult{Trigger: trigger, StartedAt: s.clock.Now()}
	s.observer.SyncStarted(trigger)

	replayed, err := s.resolver.replay(ctx, uid)
	res.Replayed = replayed
	if err != nil {
		log.Warn("replay resolution intents", zap.Error(err))
	}

	if err := s.push(ctx, uid, res); err != nil {
		res.PushError = err.Error()
		log.Error("push phase aborted", zap.Error(err))
	}

	// 本地存储故障时本轮不再拉取，刚推送的记录可能尚未标记为已同步
	var conflicts []*domain.Conflict
	if res.PushError == "" {
		conflicts, err = s.pull(ctx, uid, res)
		if err != nil {
			res.PullError = err.Error()
			log.Error("pull phase aborted", zap.Error(err))
		}
	}

	res.FinishedAt = s.clock.Now()
	if err := s.store.Checkpoints().SaveResult(ctx, uid, res); err != nil {
		log.Error("save sync result", zap.Error(err))
	}
	s.observer.SyncFinished(res)
	if pending, err := s.store.PendingCount(ctx, uid); err == nil {
		s.observer.PendingChanged(uid, pending)
	}

	log.Info("sync finished",
		zap.Int("pushed", res.Pushed),
		zap.Int("pulled", res.Pulled),
		zap.Int("conflicted", res.Conflicted),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Duration(logger.FieldDuration, res.Duration()))

	switch {
	case res.PushError != "":
		return res, conflicts, errors.Errorf("push aborted: %s", res.PushError)
	case res.PullError != "":
		return res, conflicts, errors.Errorf("pull aborted: %s", res.PullError)
	}
	return res, conflicts, nil
}

// TriggerSync 后台同步
func (s *syncService) TriggerSync(ctx context.Context, uid string, trigger domain.SyncTrigger) error {
	if s.gate.Syncing() {
		return nil
	}
	job := func(ctx context.Context) error {
		_, err := s.FullSync(ctx, uid, trigger)
		if errors.Is(err, domain.ErrSyncInProgress) {
			return nil
		}
		if err != nil {
			s.logger.Warn("background sync", zap.String(logger.FieldUID, uid), zap.Error(err))
		}
		return err
	}
	bg := context.WithoutCancel(ctx)
	if s.pool == nil {
		go func() { _ = job(bg) }()
		return nil
	}
	if err := s.pool.SubmitAsync(bg, job); err != nil && !errors.Is(err, workerpool.ErrWorkerPoolFull) {
		return err
	}
	return nil
}

// Hydrate 从远端重建本地存储
func (s *syncService) Hydrate(ctx context.Context, uid string, force bool) error {
	if !s.gate.TryEnter() {
		return domain.ErrSyncInProgress
	}
	defer s.gate.Leave()
	log := s.logger.With(zap.String(logger.FieldUID, uid))

	if _, err := s.resolver.replay(ctx, uid); err != nil {
		log.Warn("replay resolution intents", zap.Error(err))
	}
	if !force {
		pending, err := s.store.PendingCount(ctx, uid)
		if err != nil {
			return err
		}
		if pending > 0 {
			return errors.Wrapf(domain.ErrPendingChanges, "%d records", pending)
		}
	}

	var (
		notes []*domain.RemoteNote
		tags  []*domain.RemoteTag
		links []*domain.RemoteNoteTag
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		notes, err = retry.Do(gctx, func(ctx context.Context) ([]*domain.RemoteNote, error) {
			return s.remote.ListNotes(ctx, uid, nil)
		}, s.config.retryOptions(log, "list notes")...)
		return errors.Wrap(err, "fetch notes")
	})
	g.Go(func() error {
		var err error
		tags, err = retry.Do(gctx, func(ctx context.Context) ([]*domain.RemoteTag, error) {
			return s.remote.ListTags(ctx, uid, nil)
		}, s.config.retryOptions(log, "list tags")...)
		return errors.Wrap(err, "fetch tags")
	})
	g.Go(func() error {
		var err error
		links, err = retry.Do(gctx, func(ctx context.Context) ([]*domain.RemoteNoteTag, error) {
			return s.remote.ListNoteTags(ctx, uid)
		}, s.config.retryOptions(log, "list note tags")...)
		return errors.Wrap(err, "fetch note tags")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	snapshot := &domain.RemoteSnapshot{Notes: notes, Tags: tags, NoteTags: links, FetchedAt: s.clock.Now()}
	if err := s.store.Hydrate(ctx, uid, snapshot); err != nil {
		return errors.Wrap(err, "hydrate local store")
	}
	log.Info("local store hydrated",
		zap.Int("notes", len(notes)),
		zap.Int("tags", len(tags)),
		zap.Int("noteTags", len(links)))
	s.observer.PendingChanged(uid, 0)
	return nil
}

func (s *syncService) NeedsHydration(ctx context.Context, uid string) (bool, error) {
	n, err := s.store.Notes().Count(ctx, uid)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (s *syncService) RemoveConflict(ctx context.Context, uid, entityID string) error {
	if _, err := s.store.Conflicts().Get(ctx, uid, entityID); err != nil {
		return err
	}
	return s.store.Conflicts().Delete(ctx, uid, entityID)
}

func (s *syncService) State(ctx context.Context, uid string) (*domain.SyncState, error) {
	cp, err := s.store.Checkpoints().Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.PendingCount(ctx, uid)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.store.Conflicts().List(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &domain.SyncState{
		IsSyncing:    s.gate.Syncing(),
		PendingCount: pending,
		LastResult:   cp.LastResult,
		LastSyncAt:   cp.LastSyncAt,
		Conflicts:    conflicts,
	}, nil
}

// addFailure 记录推送或拉取阶段的单条失败
func addFailure(res *domain.SyncResult, kind domain.EntityType, id string, op domain.PendingOp, err error) {
	res.Failed++
	res.Failures = append(res.Failures, domain.SyncFailure{
		EntityType: kind,
		EntityID:   id,
		Op:         op,
		Error:      err.Error(),
		Retryable:  retry.IsRetryable(err),
	})
}

func laterOf(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.After(*cur) {
		return &t
	}
	return cur
}
