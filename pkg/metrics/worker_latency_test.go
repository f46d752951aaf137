package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyTracker_Stats(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 10; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	assert.Equal(t, int64(10), s.Count)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 10*time.Millisecond, s.Max)
	assert.Equal(t, 5*time.Millisecond, s.P50)
}

func TestLatencyTracker_WindowDropsOldest(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 0; i < 25; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}
	s := lt.Stats()
	assert.LessOrEqual(t, s.Count, int64(10))
	assert.Equal(t, 24*time.Millisecond, s.Max)
}

func TestStageRegistry_Observe(t *testing.T) {
	r := NewStageRegistry(50)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := "success"
			if i%2 == 0 {
				outcome = "empty"
			}
			r.Observe("custom", outcome, time.Millisecond)
		}(i)
	}
	wg.Wait()
	r.Observe("ai", "failure", 2*time.Second)

	custom := r.Stats("custom")
	assert.Equal(t, int64(20), custom.Latency.Count)
	assert.Equal(t, int64(10), custom.Outcomes["success"])
	assert.Equal(t, int64(10), custom.Outcomes["empty"])

	all := r.AllStats()
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all["ai"].Outcomes["failure"])
	assert.Equal(t, float64(2000), all["ai"].ToMap()["max_ms"])

	assert.Empty(t, r.Stats("generic").Outcomes)
}

func TestAssessDBPoolHealth(t *testing.T) {
	tests := []struct {
		name   string
		stats  DBPoolStats
		status PoolHealthStatus
	}{
		{"unlimited", DBPoolStats{InUse: 50}, PoolHealthy},
		{"idle", DBPoolStats{InUse: 2, MaxOpenConnections: 20}, PoolHealthy},
		{"busy", DBPoolStats{InUse: 17, MaxOpenConnections: 20}, PoolDegraded},
		{"exhausted", DBPoolStats{InUse: 20, MaxOpenConnections: 20}, PoolUnhealthy},
		{"long waits", DBPoolStats{InUse: 1, MaxOpenConnections: 20, WaitCount: 3, WaitDurationMS: 6000}, PoolDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, AssessDBPoolHealth(tt.stats).Status)
		})
	}
}

func TestGetDBPoolStats_Nil(t *testing.T) {
	assert.Equal(t, DBPoolStats{}, GetDBPoolStats(nil))
}
