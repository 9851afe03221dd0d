package lifecycle

import (
	"context"
	"time"
)

// Handle 是分发给每个后台服务的生命周期控制器，由 Manager 创建。
type Handle struct {
	ctx context.Context
	// Close 通知Manager所属服务已经退出，应在服务Goroutine中 defer 调用。
	// 重复调用是安全的。
	Close func()
}

// Ctx 返回随停机信号取消的上下文
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

// Done 在管理器发出停机信号时关闭
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Err 在 Done 关闭后返回取消原因
func (h *Handle) Err() error {
	return h.ctx.Err()
}

// Sleep 暂停指定的时长；停机信号到达时提前返回 Err()。
// 后台循环应使用它代替 time.Sleep。
func (h *Handle) Sleep(duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-h.Done():
		return h.Err()
	case <-timer.C:
		return nil
	}
}
