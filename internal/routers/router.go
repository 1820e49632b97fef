package routers

import (
	"time"

	"github.com/haierkeys/fast-note-offline/internal/app"
	"github.com/haierkeys/fast-note-offline/internal/middleware"
	"github.com/haierkeys/fast-note-offline/internal/routers/api_router"

	"github.com/gin-gonic/gin"
)

// NewRouter 创建本地 API 路由
func NewRouter(appContainer *app.App) *gin.Engine {
	cfg := appContainer.Config()
	logger := appContainer.Logger()

	r := gin.New()
	r.NoRoute(middleware.NoFound())

	api := r.Group("/api")
	{
		api.Use(middleware.AppInfoWithConfig(app.Name, appContainer.Version().Version))
		api.Use(middleware.TraceMiddlewareWithConfig(cfg.Tracer.Enabled, cfg.Tracer.Header))
		api.Use(middleware.RecoveryWithLogger(logger))
		api.Use(middleware.AccessLogWithLogger(logger))
		api.Use(middleware.RateLimiter(cfg.Server.RateLimit, cfg.Server.Burst))
		api.Use(middleware.ContextTimeout(time.Duration(cfg.App.DefaultContextTimeout) * time.Second))
		api.Use(middleware.Lang(cfg.Server.Lang))

		healthHandler := api_router.NewHealthHandler(appContainer)
		api.GET("/health", healthHandler.Check)
		api.GET("/version", healthHandler.Version)

		api.Use(middleware.SimpleAuthTokenWithConfig(cfg.Server.AuthToken))

		noteHandler := api_router.NewNoteHandler(appContainer)
		tagHandler := api_router.NewTagHandler(appContainer)
		syncHandler := api_router.NewSyncHandler(appContainer)
		conflictHandler := api_router.NewConflictHandler(appContainer)
		demoHandler := api_router.NewDemoHandler(appContainer)

		api.GET("/notes", noteHandler.List)
		api.POST("/notes", noteHandler.Create)
		api.GET("/notes/:id", noteHandler.Get)
		api.PUT("/notes/:id", noteHandler.Update)
		api.DELETE("/notes/:id", noteHandler.Delete)
		api.POST("/notes/:id/restore", noteHandler.Restore)
		api.DELETE("/notes/:id/permanent", noteHandler.DeletePermanently)
		api.POST("/notes/:id/tags/:tagId", noteHandler.AddTag)
		api.DELETE("/notes/:id/tags/:tagId", noteHandler.RemoveTag)
		api.GET("/recycle-bin/count", noteHandler.RecycleBinCount)

		api.GET("/tags", tagHandler.List)
		api.POST("/tags", tagHandler.Create)
		api.GET("/tags/:id", tagHandler.Get)
		api.PUT("/tags/:id", tagHandler.Update)
		api.DELETE("/tags/:id", tagHandler.Delete)

		api.POST("/sync", syncHandler.Sync)
		api.GET("/sync/state", syncHandler.State)
		api.POST("/sync/hydrate", syncHandler.Hydrate)

		api.GET("/conflicts", conflictHandler.List)
		api.GET("/conflicts/:id", conflictHandler.Preview)
		api.POST("/conflicts/:id/resolve", conflictHandler.Resolve)
		api.DELETE("/conflicts/:id", conflictHandler.Dismiss)

		api.GET("/demo", demoHandler.Get)
		api.PUT("/demo", demoHandler.Save)
		api.POST("/demo/migrate", demoHandler.Migrate)
	}

	return r
}
