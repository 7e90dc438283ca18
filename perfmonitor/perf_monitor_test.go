package perfmonitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPerformanceMonitor(t *testing.T) {
	pm := NewPerformanceMonitor()

	assert.NotNil(t, pm)
	assert.True(t, pm.startTime.IsZero())
	assert.True(t, pm.endTime.IsZero())
}

func TestStartStop(t *testing.T) {
	t.Run("stop after start records end time", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		pm.Stop()

		assert.False(t, pm.startTime.IsZero())
		assert.False(t, pm.endTime.IsZero())
		assert.False(t, pm.endTime.Before(pm.startTime))
	})

	t.Run("stop without start does nothing", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Stop()

		assert.True(t, pm.endTime.IsZero())
	})

	t.Run("restart clears the previous end time", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		pm.Stop()
		pm.Start()

		assert.True(t, pm.endTime.IsZero())
		assert.Zero(t, pm.Elapsed())
	})
}

func TestElapsedMilliseconds(t *testing.T) {
	t.Run("zero until both start and stop ran", func(t *testing.T) {
		pm := NewPerformanceMonitor()
		assert.Equal(t, 0.0, pm.ElapsedMilliseconds())

		pm.Start()
		assert.Equal(t, 0.0, pm.ElapsedMilliseconds())
	})

	t.Run("measures the sleep", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		time.Sleep(30 * time.Millisecond)
		pm.Stop()

		assert.GreaterOrEqual(t, pm.ElapsedMilliseconds(), 30.0)
		assert.Equal(t, float64(pm.Elapsed())/float64(time.Millisecond), pm.ElapsedMilliseconds())
	})

	t.Run("second stop extends the measurement", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		pm.Stop()
		first := pm.ElapsedMilliseconds()

		time.Sleep(10 * time.Millisecond)
		pm.Stop()

		assert.Greater(t, pm.ElapsedMilliseconds(), first)
	})
}

func TestReset(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.Start()
	pm.Stop()
	pm.Reset()
	pm.Reset()

	assert.True(t, pm.startTime.IsZero())
	assert.True(t, pm.endTime.IsZero())
	assert.Equal(t, 0.0, pm.ElapsedMilliseconds())

	pm.Stop()
	assert.True(t, pm.endTime.IsZero())
}
