package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SlpAus/apkstore-backend/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	up    atomic.Bool
	calls atomic.Int64
}

func (p *fakeProber) Probe(context.Context) bool {
	p.calls.Add(1)
	return p.up.Load()
}

func TestMonitor_Transitions(t *testing.T) {
	ctx := context.Background()
	p := &fakeProber{}
	m := NewMonitor(p, time.Second)

	state, _ := m.State()
	assert.Equal(t, StateUnknown, state)

	assert.True(t, m.PerformCheck(ctx))
	state, _ = m.State()
	assert.Equal(t, StateDegraded, state)

	assert.False(t, m.PerformCheck(ctx), "状态未变化")

	p.up.Store(true)
	assert.True(t, m.PerformCheck(ctx))
	state, since := m.State()
	assert.Equal(t, StateHealthy, state)
	assert.False(t, since.IsZero())
}

func TestMonitor_RunStopsOnShutdown(t *testing.T) {
	p := &fakeProber{}
	p.up.Store(true)
	m := NewMonitor(p, 10*time.Millisecond)

	graceful, forceful := lifecycle.NewManager(), lifecycle.NewManager()
	gh, err := graceful.NewServiceHandle("health")
	require.NoError(t, err)
	fh, err := forceful.NewServiceHandle("health")
	require.NoError(t, err)

	go m.Run(gh, fh)
	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	graceful.Shutdown()
	assert.Empty(t, graceful.WaitWithTimeout(time.Second))
	assert.Empty(t, forceful.WaitWithTimeout(time.Second))
}

// blockingProber 在上下文取消前一直阻塞
type blockingProber struct {
	started chan struct{}
}

func (p *blockingProber) Probe(ctx context.Context) bool {
	close(p.started)
	<-ctx.Done()
	return false
}

func TestMonitor_ForcefulShutdownInterruptsProbe(t *testing.T) {
	p := &blockingProber{started: make(chan struct{})}
	m := NewMonitor(p, time.Hour)

	graceful, forceful := lifecycle.NewManager(), lifecycle.NewManager()
	gh, err := graceful.NewServiceHandle("health")
	require.NoError(t, err)
	fh, err := forceful.NewServiceHandle("health")
	require.NoError(t, err)

	go m.Run(gh, fh)
	<-p.started

	graceful.Shutdown()
	assert.Equal(t, []string{"health"}, graceful.WaitWithTimeout(50*time.Millisecond), "进行中的探测不受第一阶段影响")

	forceful.Shutdown()
	assert.Empty(t, forceful.WaitWithTimeout(time.Second))
	assert.Empty(t, graceful.WaitWithTimeout(time.Second))
}
