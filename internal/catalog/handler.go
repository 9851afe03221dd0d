package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// Handler 把目录服务暴露为HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建目录接口
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册目录相关的路由。
// interaction 中的中间件只作用于点赞、评论和下载这些互动接口。
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, interaction ...gin.HandlerFunc) {
	apps := rg.Group("/apps")
	{
		apps.GET("", h.ListApps)
		apps.GET("/:id", h.GetApp)
		apps.POST("", h.UpsertApp)
		apps.POST("/:id/screenshots", h.AttachScreenshots)

		engage := apps.Group("", interaction...)
		engage.POST("/:id/comments", h.AddComment)
		engage.POST("/:id/like", h.ToggleLike)
		engage.POST("/:id/download", h.Download)
	}
	rg.GET("/health", h.Health)
}

type upsertResponse struct {
	*App
	Message string `json:"message"`
}

type commentRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

type likeRequest struct {
	Username string `json:"username"`
}

type screenshotsRequest struct {
	Screenshots []ScreenshotInput `json:"screenshots"`
}

// ListApps 处理 GET /apps
func (h *Handler) ListApps(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.List(c.Request.Context()))
}

// GetApp 处理 GET /apps/:id
func (h *Handler) GetApp(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}
	detail, err := h.svc.Detail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpsertApp 处理 POST /apps，新建返回201，更新返回200
func (h *Handler) UpsertApp(c *gin.Context) {
	var in AppInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	app, created, err := h.svc.Upsert(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	if created {
		c.JSON(http.StatusCreated, upsertResponse{App: app, Message: "应用创建成功"})
		return
	}
	c.JSON(http.StatusOK, upsertResponse{App: app, Message: "应用更新成功"})
}

// AddComment 处理 POST /apps/:id/comments
func (h *Handler) AddComment(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}
	var body commentRequest
	if !bindOptionalJSON(c, &body) {
		return
	}

	comment, err := h.svc.AddComment(c.Request.Context(), id, body.Username, body.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// ToggleLike 处理 POST /apps/:id/like
func (h *Handler) ToggleLike(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}
	var body likeRequest
	if !bindOptionalJSON(c, &body) {
		return
	}

	result, err := h.svc.ToggleLike(c.Request.Context(), id, body.Username, visitorOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Download 处理 POST /apps/:id/download
func (h *Handler) Download(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}
	ticket, err := h.svc.Download(c.Request.Context(), id, visitorOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// AttachScreenshots 处理 POST /apps/:id/screenshots
func (h *Handler) AttachScreenshots(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}
	var body screenshotsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	created, err := h.svc.AttachScreenshots(c.Request.Context(), id, body.Screenshots)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Health 处理 GET /health，每次都重新探测数据库
func (h *Handler) Health(c *gin.Context) {
	database, message := "disconnected", "数据库不可用，使用内存数据"
	if h.svc.Connected(c.Request.Context()) {
		database, message = "connected", "服务运行正常"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"database":  database,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// appID 解析路径中的应用id，无法解析时按不存在处理
func appID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "应用不存在"})
		return 0, false
	}
	return uint(id), true
}

// bindOptionalJSON 允许空请求体，缺失的字段交给服务层校验
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return false
	}
	return true
}

func visitorOf(c *gin.Context) Visitor {
	return Visitor{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// writeError 把服务层错误翻译为HTTP响应。内部错误只记录日志，不把细节返回给客户端。
func writeError(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = classify(err, "记录不存在")
	}

	body := gin.H{"error": e.Message}
	switch e.Kind {
	case KindValidation:
		body["fields"] = e.Fields
	case KindConflict:
		if e.Code != "" {
			body["code"] = e.Code
		}
	case KindInternal:
		log.WithError(err).WithField("path", c.FullPath()).Error("请求处理失败")
	}
	c.JSON(e.Kind.HTTPStatus(), body)
}
