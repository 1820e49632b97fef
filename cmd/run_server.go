package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	internalApp "github.com/haierkeys/fast-note-offline/internal/app"
	"github.com/haierkeys/fast-note-offline/internal/dao"
	"github.com/haierkeys/fast-note-offline/internal/routers"
	"github.com/haierkeys/fast-note-offline/pkg/code"
	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/safe_close"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	validatorV10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// DefaultShutdownTimeout default shutdown timeout duration
// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

type Server struct {
	logger            *zap.Logger            // Logger // 日志对象
	config            *internalApp.AppConfig // App configuration // 应用配置
	httpServer        *http.Server
	privateHttpServer *http.Server
	sc                *safe_close.SafeClose
	app               *internalApp.App // App Container
}

func NewServer(runEnv *runFlags) (*Server, error) {
	appConfig, configRealpath, err := internalApp.LoadConfig(runEnv.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	runMode := runEnv.runMode
	if len(runMode) <= 0 {
		runMode = appConfig.Server.RunMode
	}
	appConfig.Server.RunMode = runMode
	if len(runEnv.port) > 0 {
		appConfig.Server.HttpPort = runEnv.port
	}

	if len(runMode) > 0 {
		gin.SetMode(runMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: appConfig,
		sc:     safe_close.NewSafeClose(),
	}

	app, lg, err := openApp(appConfig)
	if err != nil {
		return nil, err
	}
	s.app = app
	s.logger = lg

	initValidator()

	banner := `
    ______           __     _   __      __          ____  ________ _
   / ____/___ ______/ /_   / | / /___  / /____     / __ \/ __/ __/(_)___  ___
  / /_  / __ ` + "`" + `/ ___/ __/  /  |/ / __ \/ __/ _ \   / / / / /_/ /_/ / / __ \/ _ \
 / __/ / /_/ (__  ) /_   / /|  / /_/ / /_/  __/  / /_/ / __/ __/ / / / / /  __/
/_/    \__,_/____/\__/  /_/ |_/\____/\__/\___/   \____/_/ /_/ /_/_/_/ /_/\___/  `
	s.logger.Warn(fmt.Sprintf("%s\n\n%s v%s\nGit: %s\nBuildTime: %s\n", banner, internalApp.Name, internalApp.Version, internalApp.GitTag, internalApp.BuildTime))
	s.logger.Warn("config loaded", zap.String("path", configRealpath))

	// 本地 API
	if httpAddr := appConfig.Server.HttpPort; len(httpAddr) > 0 {
		s.logger.Warn("api_router", zap.String("config.server.HttpPort", httpAddr))
		s.httpServer = &http.Server{
			Addr:           httpAddr,
			Handler:        routers.NewRouter(s.app),
			ReadTimeout:    time.Duration(appConfig.Server.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(appConfig.Server.WriteTimeout) * time.Second,
			MaxHeaderBytes: 1 << 20,
		}
		s.serve(s.httpServer, "api service")
	}

	// 指标与 pprof
	if httpAddr := appConfig.Server.PrivateHttpListen; len(httpAddr) > 0 {
		s.logger.Info("api_router", zap.String("config.server.PrivateHttpListen", httpAddr))
		s.privateHttpServer = &http.Server{
			Addr:           httpAddr,
			Handler:        routers.NewPrivateRouterWithLogger(runMode, s.app.Registry, s.logger),
			ReadTimeout:    time.Duration(appConfig.Server.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(appConfig.Server.WriteTimeout) * time.Second,
			MaxHeaderBytes: 1 << 20,
		}
		s.serve(s.privateHttpServer, "private api service")
	}

	// 后台任务、连通性监视与实时通道
	if err := s.app.StartBackground(s.sc); err != nil {
		s.logger.Error("failed to register tasks", zap.Error(err))
	}

	// 注册 App Container 的优雅关闭
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		<-closeSignal
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()

		if err := s.app.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown app container", zap.Error(err))
		} else {
			s.logger.Info("App container shutdown gracefully")
		}
	})

	return s, nil
}

// serve 启动 HTTP 服务并在关闭信号到达时停止
func (s *Server) serve(srv *http.Server, name string) {
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.ListenAndServe()
		}()
		select {
		case err := <-errChan:
			s.logger.Error(name+" err", zap.Error(err))
			s.sc.SendCloseSignal(err)
		case <-closeSignal:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				s.logger.Error(name+" shutdown error", zap.Error(err))
			}
		}
	})
}

// openApp 初始化日志、存储目录、数据库与应用容器
func openApp(cfg *internalApp.AppConfig) (*internalApp.App, *zap.Logger, error) {
	lg, err := logger.NewLogger(cfg.GetLoggerConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	code.SetLanguage(cfg.Server.Lang)

	if err := initStorageWithConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("initStorage: %w", err)
	}

	db, err := dao.NewDBEngine(cfg.GetDatabaseConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("initDatabase: %w", err)
	}

	app, err := internalApp.NewApp(cfg, lg, db)
	if err != nil {
		if sqlDB, e := db.DB(); e == nil {
			_ = sqlDB.Close()
		}
		return nil, nil, fmt.Errorf("failed to create app container: %w", err)
	}
	return app, lg, nil
}

// initValidator 参数错误中使用 json 字段名
func initValidator() {
	validate, ok := binding.Validator.Engine().(*validatorV10.Validate)
	if !ok {
		return
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// initStorageWithConfig 创建日志、数据库与演示缓冲区目录
func initStorageWithConfig(cfg *internalApp.AppConfig) error {
	dirs := []string{
		filepath.Dir(cfg.Log.File),
		filepath.Dir(cfg.Demo.BufferPath),
	}
	if strings.EqualFold(cfg.Database.Type, "sqlite") {
		dirs = append(dirs, filepath.Dir(cfg.Database.Path))
	}
	if strings.EqualFold(cfg.Remote.Type, internalApp.RemoteTypeDB) && strings.EqualFold(cfg.Remote.Database.Type, "sqlite") {
		dirs = append(dirs, filepath.Dir(cfg.Remote.Database.Path))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0754); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetApp 获取 App Container
func (s *Server) GetApp() *internalApp.App {
	return s.app
}
