package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	done := c.RequestStart()
	assert.Equal(t, int64(1), c.Snapshot().ActiveRequests)
	c.RecordReply(false)
	done()

	c.RequestStart()()
	c.RecordReply(true)

	c.RequestStart()()
	c.RecordMissingKey()

	c.RequestStart()()
	c.RecordProviderError()

	c.RecordSettingsSave()

	s := c.Snapshot()
	assert.Equal(t, int64(4), s.ChatRequests)
	assert.Equal(t, int64(0), s.ActiveRequests)
	assert.Equal(t, int64(2), s.Replies)
	assert.Equal(t, int64(1), s.PlaceholderReplies)
	assert.Equal(t, int64(1), s.MissingKey)
	assert.Equal(t, int64(1), s.ProviderErrors)
	assert.Equal(t, int64(1), s.SettingsSaves)
}

func TestCollector_AvgProviderLatency(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.Snapshot().AvgProviderMs)

	c.RecordProviderLatency(10 * time.Millisecond)
	c.RecordProviderLatency(30 * time.Millisecond)
	assert.InDelta(t, 20.0, c.Snapshot().AvgProviderMs, 0.001)
}

func TestCollector_LatencySamplesCapped(t *testing.T) {
	c := NewCollector()
	for i := 0; i < maxLatencySamples; i++ {
		c.RecordProviderLatency(time.Second)
	}
	for i := 0; i < maxLatencySamples; i++ {
		c.RecordProviderLatency(time.Millisecond)
	}
	assert.Len(t, c.latencySamples, maxLatencySamples)
	assert.InDelta(t, 1.0, c.Snapshot().AvgProviderMs, 0.001)
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := c.RequestStart()
			c.RecordProviderLatency(time.Millisecond)
			c.RecordReply(false)
			done()
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, int64(50), s.ChatRequests)
	assert.Equal(t, int64(50), s.Replies)
	assert.Zero(t, s.ActiveRequests)
}
