package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/apkstore-backend/pkg/lifecycle"
	"github.com/apex/log"
)

const (
	httpTimeout     = 15 * time.Second
	gracefulTimeout = 10 * time.Second
	forcefulTimeout = 1 * time.Second
)

// Finalizer 是停机最后阶段执行的清理步骤，例如关闭数据库连接池
type Finalizer struct {
	Name string
	Run  func() error
}

// Coordinator 负责编排应用程序的优雅停机流程。
type Coordinator struct {
	GracefulManager *lifecycle.Manager
	ForcefulManager *lifecycle.Manager
	finalizers      []Finalizer
}

// NewCoordinator 创建一个新的停机协调器。
func NewCoordinator(gracefulMgr, forcefulMgr *lifecycle.Manager) *Coordinator {
	return &Coordinator{
		GracefulManager: gracefulMgr,
		ForcefulManager: forcefulMgr,
	}
}

// AddFinalizer 注册一个在所有后台服务退出后执行的清理步骤，按注册顺序执行
func (c *Coordinator) AddFinalizer(name string, run func() error) {
	c.finalizers = append(c.finalizers, Finalizer{Name: name, Run: run})
}

// ListenForSignalsAndShutdown 启动信号监听并阻塞，直到停机流程完成。
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("收到关闭信号，开始优雅停机")
	c.Shutdown(server)
}

// Shutdown 依次关闭HTTP服务器、后台服务，最后执行清理步骤
func (c *Coordinator) Shutdown(server *http.Server) {
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("HTTP服务器关闭错误")
		} else {
			log.Info("HTTP服务器已关闭")
		}
	}

	// --- 阶段一: 优雅停机 ---
	c.GracefulManager.Shutdown()
	remaining := c.GracefulManager.WaitWithTimeout(gracefulTimeout)
	if len(remaining) == 0 {
		log.Info("所有后台服务已在第一阶段优雅关闭")
	} else {
		// --- 阶段二: 强制停机 ---
		log.WithField("services", remaining).Warn("第一阶段超时，发送强制停机信号")
		c.ForcefulManager.Shutdown()
		c.ForcefulManager.WaitWithTimeout(forcefulTimeout)
	}

	for _, f := range c.finalizers {
		if err := f.Run(); err != nil {
			log.WithError(err).WithField("step", f.Name).Error("停机清理失败")
		}
	}
	log.Info("优雅停机完成")
}
