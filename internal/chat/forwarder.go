// Package chat forwards user messages to the AI provider using the stored
// settings and turns the outcome into a reply or one of two errors.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hartyporpoise/studychat/internal/metrics"
	"github.com/hartyporpoise/studychat/internal/provider"
	"github.com/hartyporpoise/studychat/internal/settings"
)

// NoReply is returned when the provider answers without reply text.
const NoReply = "no response"

var (
	// ErrAPIKeyMissing means no API key is stored. No outbound call was made.
	ErrAPIKeyMissing = errors.New("API key not configured")

	// ErrProvider means the provider call failed. The wrapped cause is for
	// logs only.
	ErrProvider = errors.New("AI server error")
)

// Provider sends one chat message to the external API.
type Provider interface {
	Chat(ctx context.Context, apiKey string, req provider.Request) (provider.Response, error)
}

// SettingsReader is the part of settings.Store the forwarder needs.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Forwarder relays messages to the provider.
type Forwarder struct {
	store    SettingsReader
	provider Provider
	metrics  *metrics.Collector
	log      *slog.Logger
}

// NewForwarder wires a Forwarder. mc and log may be nil.
func NewForwarder(store SettingsReader, p Provider, mc *metrics.Collector, log *slog.Logger) *Forwarder {
	if mc == nil {
		mc = metrics.NewCollector()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Forwarder{store: store, provider: p, metrics: mc, log: log}
}

// Forward reads the current settings and sends message to the provider.
// The returned error is ErrAPIKeyMissing or wraps ErrProvider.
func (f *Forwarder) Forward(ctx context.Context, message string) (string, error) {
	done := f.metrics.RequestStart()
	defer done()

	st, err := f.store.Get(ctx)
	if err != nil {
		f.metrics.RecordProviderError()
		f.log.ErrorContext(ctx, "read settings", "err", err)
		return "", fmt.Errorf("%w: read settings: %v", ErrProvider, err)
	}
	if !st.HasAPIKey() {
		f.metrics.RecordMissingKey()
		return "", ErrAPIKeyMissing
	}

	start := time.Now()
	resp, err := f.provider.Chat(ctx, st.APIKey, provider.Request{
		Message:      message,
		StudentLevel: string(st.StudentLevel),
	})
	elapsed := time.Since(start)
	f.metrics.RecordProviderLatency(elapsed)
	if err != nil {
		f.metrics.RecordProviderError()
		f.log.ErrorContext(ctx, "provider call failed",
			"err", err,
			"student_level", st.StudentLevel,
			"elapsed", elapsed)
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}

	if resp.Reply == "" {
		f.metrics.RecordReply(true)
		f.log.WarnContext(ctx, "provider returned no reply", "elapsed", elapsed)
		return NoReply, nil
	}
	f.metrics.RecordReply(false)
	f.log.DebugContext(ctx, "provider replied", "elapsed", elapsed, "reply_len", len(resp.Reply))
	return resp.Reply, nil
}
