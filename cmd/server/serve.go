package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/SlpAus/apkstore-backend/api"
	"github.com/SlpAus/apkstore-backend/internal/catalog"
	"github.com/SlpAus/apkstore-backend/internal/platform/database"
	"github.com/SlpAus/apkstore-backend/internal/platform/health"
	"github.com/SlpAus/apkstore-backend/internal/platform/shutdown"
	"github.com/SlpAus/apkstore-backend/internal/ratelimit"
	"github.com/SlpAus/apkstore-backend/internal/upload"
	"github.com/SlpAus/apkstore-backend/pkg/lifecycle"
	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	gin.SetMode(cfg.Server.Mode)

	// 1. 数据库。连接池是惰性的，数据库不可用时服务仍然启动并使用内存数据
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.WithError(err).Warn("无法创建数据库连接池，所有请求将使用内存数据")
		db = nil
	}
	migrated := tryMigrate(db)

	prober := catalog.NewDBProber(db, cfg.Database.ProbeTimeout, migrated)
	var persistent catalog.Store
	if db != nil {
		persistent = catalog.NewRepository(db, cfg.Catalog.DefaultCategory)
	}
	fallback := catalog.NewMemoryStore(cfg.Catalog.DefaultCategory)
	svc := catalog.NewService(persistent, fallback, prober, cfg.Catalog.FallbackWrites)

	// 2. 上传目录
	sink, err := upload.NewDiskSink(cfg.Upload.Dir, cfg.Upload.MaxFileSizeMB)
	if err != nil {
		return err
	}

	// 3. 可选的Redis频率限制
	rdb := database.OpenRedis(cfg.Redis)
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(rdb, cfg.RateLimit.Window, cfg.RateLimit.Max)
		if limiter == nil {
			log.Warn("已启用频率限制但未启用Redis，频率限制不会生效")
		}
	}

	router := api.NewRouter(cfg.Server, api.Dependencies{
		Catalog:   catalog.NewHandler(svc),
		Upload:    upload.NewHandler(sink, cfg.Server.PublicBaseURL, cfg.Server.ForceHTTPS, cfg.Upload.MaxScreenshots),
		Limiter:   limiter,
		UploadDir: sink.Dir(),
	})

	// 4. 后台服务与优雅停机
	gracefulMgr, forcefulMgr := lifecycle.NewManager(), lifecycle.NewManager()
	monitor := health.NewMonitor(prober, cfg.Health.Interval)
	gracefulHandle, err := gracefulMgr.NewServiceHandle("db-health")
	if err != nil {
		return err
	}
	forcefulHandle, err := forcefulMgr.NewServiceHandle("db-health")
	if err != nil {
		return err
	}
	go monitor.Run(gracefulHandle, forcefulHandle)

	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr)
	coordinator.AddFinalizer("database", func() error { return database.Close(db) })
	if rdb != nil {
		coordinator.AddFinalizer("redis", rdb.Close)
	}

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}
	go func() {
		log.WithField("address", cfg.Server.Address).Info("服务器已准备就绪，开始监听")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("服务器启动失败")
		}
	}()

	coordinator.ListenForSignalsAndShutdown(server)
	return nil
}

// tryMigrate 在启动时尝试迁移表结构，失败时交给探测器在数据库恢复后补做
func tryMigrate(db *gorm.DB) bool {
	if db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ProbeTimeout)
	defer cancel()
	if err := catalog.Migrate(db.WithContext(ctx)); err != nil {
		log.WithError(err).Warn("数据库暂时不可用，将在恢复后迁移表结构")
		return false
	}
	log.WithField("driver", cfg.Database.Driver).Info("数据库表结构迁移完成")
	return true
}
