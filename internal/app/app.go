// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/dao"
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/haierkeys/fast-note-offline/internal/metrics"
	"github.com/haierkeys/fast-note-offline/internal/netstatus"
	"github.com/haierkeys/fast-note-offline/internal/realtime"
	"github.com/haierkeys/fast-note-offline/internal/remote/dbremote"
	"github.com/haierkeys/fast-note-offline/internal/remote/httpremote"
	"github.com/haierkeys/fast-note-offline/internal/service"
	"github.com/haierkeys/fast-note-offline/internal/task"
	pkglogger "github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/safe_close"
	"github.com/haierkeys/fast-note-offline/pkg/timex"
	"github.com/haierkeys/fast-note-offline/pkg/util"
	"github.com/haierkeys/fast-note-offline/pkg/workerpool"
	"github.com/haierkeys/fast-note-offline/pkg/writequeue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 应用容器，封装所有依赖和服务
type App struct {
	// 基础设施（注入的依赖）
	config *AppConfig
	logger *zap.Logger
	clock  timex.Clock
	DB     *gorm.DB
	Dao    *dao.Dao
	Store  *dao.Store

	// 远端
	Remote   domain.RemoteStore
	remoteDB *gorm.DB

	// 并发控制组件
	workerPool    *workerpool.Pool
	writeQueueMgr *writequeue.Manager

	// 指标
	Registry *prometheus.Registry
	Metrics  *metrics.SyncMetrics

	// Service 层
	Gate             *service.SyncGate
	DemoBuffer       *dao.FileDemoBuffer
	NoteService      service.NoteService
	TagService       service.TagService
	SyncService      service.SyncService
	ConflictService  service.ConflictService
	MigrationService service.MigrationService
	RetentionService service.RetentionService

	// 后台组件
	Monitor  *netstatus.Monitor
	Realtime *realtime.Listener

	// StartTime 容器创建时间
	StartTime time.Time

	// 关闭控制
	shutdownCh chan struct{}
}

// Option App 可选项
type Option func(*App)

// WithRemote 使用指定的远端存储，替代按配置创建
func WithRemote(r domain.RemoteStore) Option {
	return func(a *App) { a.Remote = r }
}

// WithClock 注入时钟
func WithClock(c timex.Clock) Option {
	return func(a *App) { a.clock = c }
}

// NewApp 创建应用容器实例
// 初始化所有依赖并进行依赖注入
// cfg: 应用配置（必须）
// logger: zap 日志器（必须）
// db: 本地存储连接（必须）
func NewApp(cfg *AppConfig, logger *zap.Logger, db *gorm.DB, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	a := &App{
		config:     cfg,
		logger:     logger,
		clock:      timex.System,
		DB:         db,
		StartTime:  time.Now(),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	// 初始化 Worker Pool
	wpConfig := cfg.GetWorkerPoolConfig()
	a.workerPool = workerpool.New(&wpConfig, logger)

	// 初始化 Write Queue Manager
	wqConfig := cfg.GetWriteQueueConfig()
	a.writeQueueMgr = writequeue.New(&wqConfig, logger)

	// 初始化 DAO（使用依赖注入）
	a.Dao = dao.New(db,
		dao.WithWriteQueue(a.writeQueueMgr),
		dao.WithClock(a.clock),
		dao.WithLogger(logger),
	)
	if err := a.Dao.Migrate(); err != nil {
		return nil, err
	}
	a.Store = dao.NewStore(a.Dao)
	a.DemoBuffer = dao.NewFileDemoBuffer(cfg.Demo.BufferPath)

	if a.Remote == nil {
		remote, err := a.newRemote()
		if err != nil {
			return nil, err
		}
		a.Remote = remote
	}

	// 每个容器独立的注册器，配置热重载重建容器时不会重复注册
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	// 初始化 Service 层（依赖注入）
	syncCfg := cfg.GetSyncServiceConfig()
	a.Gate = service.NewSyncGate()
	a.NoteService = service.NewNoteService(a.Store, a.clock, logger)
	a.TagService = service.NewTagService(a.Store, a.clock, logger)
	a.SyncService = service.NewSyncService(a.Store, a.Remote, a.Gate, syncCfg, a.clock, logger,
		service.WithSyncObserver(a.Metrics),
		service.WithWorkerPool(a.workerPool),
	)
	a.ConflictService = service.NewConflictService(a.Store, a.Remote, a.Gate, syncCfg, a.clock, logger)
	a.MigrationService = service.NewMigrationService(a.Store, a.Remote, a.DemoBuffer, a.SyncService, syncCfg, a.clock, logger)
	a.RetentionService = service.NewRetentionService(a.Store, a.Remote, syncCfg, a.clock, logger)

	a.SyncService.SetConflictHandler(func(c *domain.Conflict) {
		logger.Warn("sync conflict detected",
			zap.String(pkglogger.FieldUID, c.UserID),
			zap.String(pkglogger.FieldEntityType, string(c.EntityType())),
			zap.String(pkglogger.FieldEntityID, c.EntityID))
	})

	// 网络恢复与远端通知均只触发后台同步
	a.Monitor = netstatus.New(a.Remote, cfg.GetNetstatusConfig(), logger)
	a.Monitor.OnReconnect(func(ctx context.Context) {
		a.triggerSync(ctx, domain.TriggerReconnect)
	})
	a.Realtime = realtime.New(cfg.GetRealtimeConfig(), a.UID(), func(ctx context.Context, _ *realtime.Notice) {
		a.triggerSync(ctx, domain.TriggerRealtime)
	}, logger)

	logger.Info("App container initialized successfully",
		zap.String("remote", cfg.Remote.Type),
		zap.String(pkglogger.FieldUID, a.UID()),
		zap.Int("workerPoolMaxWorkers", wpConfig.MaxWorkers),
		zap.Int("writeQueueCapacity", wqConfig.QueueCapacity))

	return a, nil
}

// newRemote 按配置创建远端存储
func (a *App) newRemote() (domain.RemoteStore, error) {
	cfg := a.config
	switch strings.ToLower(cfg.Remote.Type) {
	case RemoteTypeDB:
		rdb, err := dao.NewDBEngine(cfg.GetRemoteDatabaseConfig())
		if err != nil {
			return nil, fmt.Errorf("open remote database: %w", err)
		}
		store := dbremote.New(rdb, a.clock)
		if err := store.Migrate(); err != nil {
			return nil, err
		}
		a.remoteDB = rdb
		return store, nil
	default:
		client, err := httpremote.New(cfg.GetHTTPRemoteConfig(util.DeviceID(Name)), nil, a.logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func (a *App) triggerSync(ctx context.Context, trigger domain.SyncTrigger) {
	uid := a.UID()
	if uid == "" {
		return
	}
	if err := a.SyncService.TriggerSync(ctx, uid, trigger); err != nil {
		a.logger.Warn("trigger sync failed", zap.String(pkglogger.FieldTrigger, string(trigger)), zap.Error(err))
	}
}

// UID 当前账号，未登录时为空
func (a *App) UID() string {
	return a.config.Remote.UserID
}

// Config 获取应用配置
func (a *App) Config() *AppConfig {
	return a.config
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Clock 获取时钟
func (a *App) Clock() timex.Clock {
	return a.clock
}

// Version 获取版本信息
func (a *App) Version() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitTag:    GitTag,
		BuildTime: BuildTime,
	}
}

// IsProductionMode 是否为生产模式
// 根据日志配置中的 Production 字段判断
func (a *App) IsProductionMode() bool {
	return a.config.Log.Production
}

// SubmitTaskAsync 异步提交任务到 Worker Pool（不等待结果）
// 返回错误如果池已满或已关闭
func (a *App) SubmitTaskAsync(ctx context.Context, fn func(context.Context) error) error {
	return a.workerPool.SubmitAsync(ctx, fn)
}

// WorkerPool 获取 Worker Pool（用于高级操作）
func (a *App) WorkerPool() *workerpool.Pool {
	return a.workerPool
}

// TaskDeps 后台任务依赖
func (a *App) TaskDeps() *task.Deps {
	return &task.Deps{
		UID:       a.UID(),
		Config:    a.config.GetTaskConfig(),
		Store:     a.Store,
		Sync:      a.SyncService,
		Conflicts: a.ConflictService,
		Retention: a.RetentionService,
		Observer:  a.Metrics,
		Logger:    a.logger,
	}
}

// StartBackground 启动调度器、连通性监视与实时通道，随 sc 的关闭信号停止
// 未登录时只启动调度器中不依赖账号的任务
func (a *App) StartBackground(sc *safe_close.SafeClose) error {
	manager := task.NewManager(a.TaskDeps(), a.logger, sc)
	err := manager.RegisterTasks()
	manager.Start()

	if a.UID() == "" {
		a.logger.Info("no account configured, sync triggers disabled")
		return err
	}

	for _, run := range []func(context.Context){a.Monitor.Run, a.Realtime.Run} {
		sc.Attach(func(done func(), closeSignal <-chan struct{}) {
			defer done()
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				<-closeSignal
				cancel()
			}()
			run(ctx)
		})
	}
	return err
}

// Close 释放应用容器持有的数据库连接
func (a *App) Close() error {
	var errs []error
	for name, db := range map[string]*gorm.DB{"local": a.DB, "remote": a.remoteDB} {
		if db == nil {
			continue
		}
		sqlDB, err := db.DB()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get %s sql.DB: %w", name, err))
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s database: %w", name, err))
			continue
		}
		a.logger.Info("Database connection closed", zap.String("db", name))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%v", errs)
	}
	return nil
}

// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

// Shutdown 优雅关闭应用容器
// 按顺序关闭：Worker Pool -> Write Queue Manager -> Database
// ctx 用于控制关闭超时，如果为 nil 则使用默认 30 秒超时
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("App container shutting down...")

	// 如果没有提供 context，使用默认超时
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
	}

	// 标记关闭
	select {
	case <-a.shutdownCh:
		// 已经关闭
		return nil
	default:
		close(a.shutdownCh)
	}

	var errs []error

	// 1. 关闭 Worker Pool（停止接受新任务，等待进行中的同步完成）
	if a.workerPool != nil {
		a.logger.Info("Shutting down worker pool...")
		if err := a.workerPool.Shutdown(ctx); err != nil {
			a.logger.Warn("Worker pool shutdown error", zap.Error(err))
			errs = append(errs, fmt.Errorf("worker pool shutdown: %w", err))
		} else {
			a.logger.Info("Worker pool shutdown completed")
		}
	}

	// 2. 关闭 Write Queue Manager（排空所有队列）
	if a.writeQueueMgr != nil {
		a.logger.Info("Shutting down write queue manager...")
		if err := a.writeQueueMgr.Shutdown(ctx); err != nil {
			a.logger.Warn("write queue manager shutdown error", zap.Error(err))
			errs = append(errs, fmt.Errorf("write queue manager shutdown: %w", err))
		} else {
			a.logger.Info("write queue manager shutdown completed")
		}
	}

	// 3. 关闭数据库连接
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		a.logger.Warn("App container shutdown completed with errors",
			zap.Int("errorCount", len(errs)))
		return fmt.Errorf("shutdown completed with %d errors: %v", len(errs), errs)
	}

	a.logger.Info("App container shutdown completed successfully")
	return nil
}
