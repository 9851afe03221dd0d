package api

import (
	"net/http"
	"time"

	"github.com/SlpAus/apkstore-backend/internal/catalog"
	"github.com/SlpAus/apkstore-backend/internal/platform/config"
	"github.com/SlpAus/apkstore-backend/internal/ratelimit"
	"github.com/SlpAus/apkstore-backend/internal/upload"
	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies 是路由需要的所有组件
type Dependencies struct {
	Catalog *catalog.Handler
	Upload  *upload.Handler
	// Limiter 可以为nil，此时互动接口不限流
	Limiter *ratelimit.Limiter
	// UploadDir 是上传文件的根目录，以 /uploads 对外提供
	UploadDir string
}

// NewRouter 创建Gin引擎并注册项目的所有路由
func NewRouter(cfg config.ServerConfig, deps Dependencies) *gin.Engine {
	r := gin.New()
	// ClientIP 是限流和点赞去重的依据，只接受可信代理转发的 X-Forwarded-For
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.WithError(err).Warn("可信代理配置无效，忽略所有转发头")
		_ = r.SetTrustedProxies(nil)
	}
	if gin.Mode() == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if deps.UploadDir != "" {
		r.Static("/uploads", deps.UploadDir)
	}

	api := r.Group("/api")
	api.Use(limitJSONBody(cfg.BodyLimitMB))
	{
		deps.Catalog.RegisterRoutes(api, deps.Limiter.Middleware())
		if deps.Upload != nil {
			deps.Upload.RegisterRoutes(api)
		}
	}

	return r
}

// limitJSONBody 限制非multipart请求体的大小，multipart上传由上传模块自行限制
func limitJSONBody(limitMB int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limitMB > 0 && c.ContentType() != "multipart/form-data" {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limitMB*1024*1024)
		}
		c.Next()
	}
}
