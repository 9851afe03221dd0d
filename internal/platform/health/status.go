package health

import (
	"sync"
	"time"

	"github.com/apex/log"
)

// State 定义了数据库健康状态的枚举类型
type State int

const (
	StateUnknown State = iota
	StateHealthy
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "健康"
	case StateDegraded:
		return "降级"
	default:
		return "未知"
	}
}

// statusManager 负责线程安全地管理当前状态和进入该状态的时间
type statusManager struct {
	mu           sync.RWMutex
	currentState State
	since        time.Time
}

func (sm *statusManager) get() (State, time.Time) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState, sm.since
}

// assess 根据一次检查的结果决定下一个状态，返回状态是否发生了变化
func (sm *statusManager) assess(connected bool, now time.Time) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	next := StateDegraded
	if connected {
		next = StateHealthy
	}
	if next == sm.currentState {
		return false
	}

	prev, prevSince := sm.currentState, sm.since
	sm.currentState = next
	sm.since = now

	entry := log.WithField("state", next.String())
	if prev != StateUnknown {
		entry = entry.WithField("lasted", now.Sub(prevSince).Round(time.Second).String())
	}
	switch {
	case prev == StateUnknown && next == StateHealthy:
		entry.Info("健康检查: 数据库可用")
	case prev == StateUnknown:
		entry.Warn("健康检查: 数据库不可用，请求将使用内存数据")
	case next == StateDegraded:
		entry.Warn("健康检查: 数据库连接丢失，系统状态 -> [降级]")
	default:
		entry.Info("健康检查: 数据库连接已恢复，系统状态 -> [健康]")
	}
	return true
}
