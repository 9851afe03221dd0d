package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SlpAus/apkstore-backend/internal/catalog"
	"github.com/SlpAus/apkstore-backend/internal/platform/config"
	"github.com/SlpAus/apkstore-backend/internal/ratelimit"
	"github.com/SlpAus/apkstore-backend/internal/upload"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	return newTestRouterWith(t, nil, nil)
}

func newTestRouterWith(t *testing.T, trustedProxies []string, limiter *ratelimit.Limiter) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	sink, err := upload.NewDiskSink(dir, 1)
	require.NoError(t, err)

	down := catalog.ProberFunc(func(context.Context) bool { return false })
	svc := catalog.NewService(nil, catalog.NewMemoryStore("Other"), down, true)

	cfg := config.ServerConfig{
		BodyLimitMB:    1,
		Cors:           config.CorsConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		TrustedProxies: trustedProxies,
	}
	return NewRouter(cfg, Dependencies{
		Catalog:   catalog.NewHandler(svc),
		Upload:    upload.NewHandler(sink, "", false, 10),
		Limiter:   limiter,
		UploadDir: dir,
	}), dir
}

func TestRouter_ServesCatalogAndUploads(t *testing.T) {
	r, dir := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/apps", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"disconnected"`)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "logos", "x.png"), []byte("png"), 0o644))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/logos/x.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", w.Body.String())
}

func TestRouter_CORS(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/apps", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func newTestLimiter(t *testing.T, max int64) *ratelimit.Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return ratelimit.New(rdb, time.Minute, max)
}

func likeFrom(r http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/apps/1/like", strings.NewReader(`{"username":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRouter_IgnoresForwardedForByDefault(t *testing.T) {
	r, _ := newTestRouterWith(t, nil, newTestLimiter(t, 1))

	assert.Equal(t, http.StatusOK, likeFrom(r, "203.0.113.7:5000", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, likeFrom(r, "203.0.113.7:5000", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, likeFrom(r, "203.0.113.7:5001", ""))
}

func TestRouter_HonorsForwardedForFromTrustedProxy(t *testing.T) {
	r, _ := newTestRouterWith(t, []string{"10.0.0.0/8"}, newTestLimiter(t, 1))

	assert.Equal(t, http.StatusOK, likeFrom(r, "10.1.2.3:5000", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, likeFrom(r, "10.1.2.3:5000", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, likeFrom(r, "10.1.2.3:5000", "198.51.100.1"))

	// 不可信来源的转发头仍被忽略
	assert.Equal(t, http.StatusOK, likeFrom(r, "203.0.113.7:5000", "198.51.100.3"))
	assert.Equal(t, http.StatusTooManyRequests, likeFrom(r, "203.0.113.7:5000", "198.51.100.4"))
}
