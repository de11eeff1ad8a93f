// Package metrics collects and exposes chat forwarding statistics.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// maxLatencySamples caps the provider latency sample buffer.
const maxLatencySamples = 1000

// Snapshot is a point-in-time view of server metrics, safe to marshal to JSON.
type Snapshot struct {
	ChatRequests       int64   `json:"chat_requests"`
	ActiveRequests     int64   `json:"active_requests"`
	Replies            int64   `json:"replies"`
	PlaceholderReplies int64   `json:"placeholder_replies"` // provider answered without a reply
	MissingKey         int64   `json:"missing_key"`         // rejected before any outbound call
	ProviderErrors     int64   `json:"provider_errors"`
	SettingsSaves      int64   `json:"settings_saves"`
	AvgProviderMs      float64 `json:"avg_provider_ms"` // over the last 1000 outbound calls
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// Collector is a thread-safe metrics store.
type Collector struct {
	startTime time.Time

	chatRequests       atomic.Int64
	activeRequests     atomic.Int64
	replies            atomic.Int64
	placeholderReplies atomic.Int64
	missingKey         atomic.Int64
	providerErrors     atomic.Int64
	settingsSaves      atomic.Int64

	mu             sync.Mutex
	latencySamples []float64
}

// NewCollector creates and starts a Collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
	}
}

// RequestStart counts a chat request, marks it active and returns a done
// function that should be deferred by the caller.
func (c *Collector) RequestStart() func() {
	c.chatRequests.Add(1)
	c.activeRequests.Add(1)
	return func() {
		c.activeRequests.Add(-1)
	}
}

// RecordReply counts a relayed reply. placeholder is true when the provider
// sent no reply text.
func (c *Collector) RecordReply(placeholder bool) {
	c.replies.Add(1)
	if placeholder {
		c.placeholderReplies.Add(1)
	}
}

// RecordMissingKey counts a chat rejected because no API key is stored.
func (c *Collector) RecordMissingKey() {
	c.missingKey.Add(1)
}

// RecordProviderError counts a failed outbound call.
func (c *Collector) RecordProviderError() {
	c.providerErrors.Add(1)
}

// RecordSettingsSave counts a successful settings save.
func (c *Collector) RecordSettingsSave() {
	c.settingsSaves.Add(1)
}

// RecordProviderLatency records how long one outbound call took,
// successful or not.
func (c *Collector) RecordProviderLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latencySamples = append(c.latencySamples, float64(d.Microseconds())/1000)
	if len(c.latencySamples) > maxLatencySamples {
		c.latencySamples = c.latencySamples[len(c.latencySamples)-maxLatencySamples:]
	}
}

// Snapshot returns current metrics as an immutable value.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	avg := average(c.latencySamples)
	c.mu.Unlock()

	return Snapshot{
		ChatRequests:       c.chatRequests.Load(),
		ActiveRequests:     c.activeRequests.Load(),
		Replies:            c.replies.Load(),
		PlaceholderReplies: c.placeholderReplies.Load(),
		MissingKey:         c.missingKey.Load(),
		ProviderErrors:     c.providerErrors.Load(),
		SettingsSaves:      c.settingsSaves.Load(),
		AvgProviderMs:      avg,
		UptimeSeconds:      time.Since(c.startTime).Seconds(),
	}
}

func average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
