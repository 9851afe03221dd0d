package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_DuplicateServiceRejected(t *testing.T) {
	m := NewManager()
	_, err := m.NewServiceHandle("worker")
	require.NoError(t, err)
	_, err = m.NewServiceHandle("worker")
	assert.Error(t, err)
}

func TestManager_WaitReportsRemaining(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Go("polite", func(h *Handle) {
		defer h.Close()
		<-h.Done()
	}))
	stuck, err := m.NewServiceHandle("stuck")
	require.NoError(t, err)

	m.Shutdown()
	assert.Equal(t, []string{"stuck"}, m.WaitWithTimeout(100*time.Millisecond))

	stuck.Close()
	stuck.Close()
	assert.Empty(t, m.WaitWithTimeout(time.Second))
}

func TestHandle_SleepInterruptedByShutdown(t *testing.T) {
	m := NewManager()
	h, err := m.NewServiceHandle("sleeper")
	require.NoError(t, err)
	defer h.Close()

	assert.NoError(t, h.Sleep(time.Millisecond))

	m.Shutdown()
	start := time.Now()
	assert.Error(t, h.Sleep(time.Minute))
	assert.Less(t, time.Since(start), time.Second)
}
