package health

import (
	"context"
	"time"

	"github.com/SlpAus/apkstore-backend/pkg/lifecycle"
	"github.com/apex/log"
)

// Prober 是被监控的可用性探测器
type Prober interface {
	Probe(ctx context.Context) bool
}

// Monitor 定期探测数据库并记录状态变化。
// 它只用于观测，请求路由仍然在每个请求中单独探测。
type Monitor struct {
	prober   Prober
	interval time.Duration
	status   statusManager
	now      func() time.Time
}

// NewMonitor 创建健康检查器
func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	return &Monitor{prober: prober, interval: interval, now: time.Now}
}

// State 返回最近一次检查得出的状态以及进入该状态的时间
func (m *Monitor) State() (State, time.Time) {
	return m.status.get()
}

// PerformCheck 执行一次检查，返回状态是否发生了变化
func (m *Monitor) PerformCheck(ctx context.Context) bool {
	return m.status.assess(m.prober.Probe(ctx), m.now())
}

// Run 阻塞式地循环执行健康检查，直到优雅停机句柄被取消。
// 进行中的探测使用强制停机句柄的上下文，只有第二阶段停机才会打断它。
// 它应该在独立的Goroutine中运行。
func (m *Monitor) Run(gracefulHandle, forcefulHandle *lifecycle.Handle) {
	defer gracefulHandle.Close()
	defer forcefulHandle.Close()
	log.WithField("interval", m.interval).Info("数据库健康检查器已启动")

	for {
		m.PerformCheck(forcefulHandle.Ctx())
		if err := gracefulHandle.Sleep(m.interval); err != nil {
			log.Info("数据库健康检查器已停止")
			return
		}
	}
}
