package upload

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// legacyMaxScreenshots 是 /upload 接口 screenshots 字段的最大文件数
const legacyMaxScreenshots = 5

// Handler 提供文件上传相关的接口
type Handler struct {
	sink           *DiskSink
	publicBaseURL  string
	forceHTTPS     bool
	maxScreenshots int
}

// NewHandler 创建上传接口。
// publicBaseURL 非空时直接作为返回URL的前缀；否则根据请求的Host拼接，
// forceHTTPS 为true时总是使用https。
func NewHandler(sink *DiskSink, publicBaseURL string, forceHTTPS bool, maxScreenshots int) *Handler {
	return &Handler{
		sink:           sink,
		publicBaseURL:  strings.TrimRight(publicBaseURL, "/"),
		forceHTTPS:     forceHTTPS,
		maxScreenshots: maxScreenshots,
	}
}

// RegisterRoutes 注册上传路由
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	up := rg.Group("/upload")
	{
		up.POST("", h.Upload)
		up.POST("/app", h.UploadApp)
		up.DELETE("/:type/:filename", h.Delete)
	}
}

// ScreenshotRef 是 /upload 返回的截图信息，可以直接提交给截图附加接口
type ScreenshotRef struct {
	ImageURL string `json:"image_url"`
	Position int    `json:"position"`
}

// UploadResult 是 /upload 返回的 data 字段
type UploadResult struct {
	LogoURL     string          `json:"logo_url,omitempty"`
	ApkURL      string          `json:"apk_url,omitempty"`
	SizeMB      string          `json:"size_mb,omitempty"`
	Screenshots []ScreenshotRef `json:"screenshots,omitempty"`
}

// AppUploadResult 是 /upload/app 的返回值
type AppUploadResult struct {
	IconURL        string   `json:"iconUrl,omitempty"`
	ApkURL         string   `json:"apkUrl,omitempty"`
	SizeMB         float64  `json:"sizeMB,omitempty"`
	ScreenshotURLs []string `json:"screenshotUrls,omitempty"`
}

// Upload 处理 POST /upload (multipart: logo, apk, screenshots)
func (h *Handler) Upload(c *gin.Context) {
	form, ok := h.multipartForm(c)
	if !ok {
		return
	}
	allowed := map[string]int{"logo": 1, "apk": 1, "screenshots": legacyMaxScreenshots}
	if !h.checkFields(c, form, allowed) {
		return
	}

	var result UploadResult
	b := &batch{sink: h.sink}
	if f := first(form, "logo"); f != nil {
		stored, err := b.save(KindLogo, f)
		if err != nil {
			h.abort(c, b, err)
			return
		}
		result.LogoURL = h.url(c, stored)
	}
	if f := first(form, "apk"); f != nil {
		stored, err := b.save(KindApk, f)
		if err != nil {
			h.abort(c, b, err)
			return
		}
		result.ApkURL = h.url(c, stored)
		result.SizeMB = strconv.FormatFloat(stored.SizeMB(), 'f', 2, 64)
	}
	for i, f := range form.File["screenshots"] {
		stored, err := b.save(KindScreenshot, f)
		if err != nil {
			h.abort(c, b, err)
			return
		}
		result.Screenshots = append(result.Screenshots, ScreenshotRef{ImageURL: h.url(c, stored), Position: i})
	}

	c.JSON(http.StatusOK, gin.H{"message": "文件上传成功", "data": result})
}

// UploadApp 处理管理端的 POST /upload/app (multipart: icon, apk, screenshot0..screenshotN)
func (h *Handler) UploadApp(c *gin.Context) {
	form, ok := h.multipartForm(c)
	if !ok {
		return
	}
	allowed := map[string]int{"icon": 1, "apk": 1}
	for i := 0; i < h.maxScreenshots; i++ {
		allowed[fmt.Sprintf("screenshot%d", i)] = 1
	}
	if !h.checkFields(c, form, allowed) {
		return
	}

	var result AppUploadResult
	b := &batch{sink: h.sink}
	if f := first(form, "icon"); f != nil {
		stored, err := b.save(KindLogo, f)
		if err != nil {
			h.abort(c, b, err)
			return
		}
		result.IconURL = h.url(c, stored)
	}
	if f := first(form, "apk"); f != nil {
		stored, err := b.save(KindApk, f)
		if err != nil {
			h.abort(c, b, err)
			return
		}
		result.ApkURL = h.url(c, stored)
		result.SizeMB = stored.SizeMB()
	}
	for i := 0; i < h.maxScreenshots; i++ {
		f := first(form, fmt.Sprintf("screenshot%d", i))
		if f == nil {
			continue
		}
		stored, err := b.save(KindScreenshot, f)
		if err != nil {
			h.abort(c, b, err)
			return
		}
		result.ScreenshotURLs = append(result.ScreenshotURLs, h.url(c, stored))
	}

	c.JSON(http.StatusOK, result)
}

// Delete 处理 DELETE /upload/:type/:filename
func (h *Handler) Delete(c *gin.Context) {
	kind, ok := ParseKind(c.Param("type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrUnknownKind.Error()})
		return
	}
	if err := h.sink.Delete(kind, c.Param("filename")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文件删除成功"})
}

// batch 记录同一个请求中已经保存的文件
type batch struct {
	sink  *DiskSink
	saved []StoredFile
}

func (b *batch) save(kind Kind, fh *multipart.FileHeader) (StoredFile, error) {
	stored, err := b.sink.Save(kind, fh)
	if err != nil {
		return StoredFile{}, err
	}
	b.saved = append(b.saved, stored)
	return stored, nil
}

// rollback 删除本次请求已经保存的文件
func (b *batch) rollback() {
	for _, f := range b.saved {
		if err := b.sink.Delete(f.Kind, f.Name); err != nil {
			log.WithError(err).WithField("name", f.Name).Warn("清理已上传文件失败")
		}
	}
	b.saved = nil
}

// abort 在某个文件失败时撤销整个请求，不留下部分上传的文件
func (h *Handler) abort(c *gin.Context, b *batch, err error) {
	b.rollback()
	h.writeError(c, err)
}

func (h *Handler) multipartForm(c *gin.Context) (*multipart.Form, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return nil, false
	}
	return form, true
}

// checkFields 拒绝未知字段和超出数量的文件
func (h *Handler) checkFields(c *gin.Context, form *multipart.Form, allowed map[string]int) bool {
	for field, files := range form.File {
		limit, ok := allowed[field]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "未知的文件字段: " + field})
			return false
		}
		if len(files) > limit {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("字段 %s 最多上传 %d 个文件", field, limit)})
			return false
		}
	}
	return true
}

func first(form *multipart.Form, field string) *multipart.FileHeader {
	if files := form.File[field]; len(files) > 0 {
		return files[0]
	}
	return nil
}

// url 生成文件对外的绝对地址
func (h *Handler) url(c *gin.Context, f StoredFile) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL + f.Path()
	}
	scheme := "http"
	if h.forceHTTPS || c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + f.Path()
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidFile), errors.Is(err, ErrUnknownKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotFound.Error()})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("文件上传失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "文件处理失败"})
	}
}
