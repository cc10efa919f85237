package common

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer(t *testing.T) {
	timer := NewNamedTimer("locate")
	assert.Equal(t, "locate", timer.Name())

	time.Sleep(5 * time.Millisecond)

	duration := timer.Stop()
	assert.GreaterOrEqual(t, duration, 5*time.Millisecond)
	assert.Equal(t, duration, timer.Duration())
	assert.Contains(t, timer.String(), "locate")
}

func TestTimingsOrder(t *testing.T) {
	var ts Timings
	for _, stage := range []string{"monochrome", "locate", "decode"} {
		stop := ts.Start(stage)
		stop()
	}

	stages := ts.Stages()
	require.Len(t, stages, 3)
	assert.Equal(t, "monochrome", stages[0].Stage)
	assert.Equal(t, "decode", stages[2].Stage)
	assert.GreaterOrEqual(t, ts.Total(), time.Duration(0))
	assert.Contains(t, ts.String(), "locate=")
}

func TestTimingsConcurrent(t *testing.T) {
	var ts Timings
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts.Start("stage")()
		}()
	}
	wg.Wait()
	assert.Len(t, ts.Stages(), 16)
}

func TestGetMemoryStats(t *testing.T) {
	stats := GetMemoryStats()
	assert.Positive(t, stats.SysBytes)
	assert.Positive(t, stats.Goroutines)
	assert.Contains(t, stats.String(), "Alloc:")
}
