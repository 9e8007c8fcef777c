// Package observability sends product analytics events to PostHog.
package observability

import (
	"fmt"
	"log/slog"

	"newslens/internal/config"
	"newslens/internal/logger"

	"github.com/posthog/posthog-go"
)

// DistinctID identifies events emitted by the service itself.
const DistinctID = "newslens"

// Analytics wraps the PostHog client. A disabled Analytics drops events.
type Analytics struct {
	client  posthog.Client
	enabled bool
	log     *slog.Logger
}

// Disabled returns an Analytics that sends nothing.
func Disabled() *Analytics {
	return &Analytics{log: logger.Get()}
}

// NewAnalytics creates a PostHog client when analytics are enabled.
func NewAnalytics(cfg config.PostHog) (*Analytics, error) {
	if !cfg.Enabled {
		return Disabled(), nil
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("PostHog enabled but missing API key")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint: cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return &Analytics{
		client:  client,
		enabled: true,
		log:     logger.With("component", "analytics"),
	}, nil
}

// IsEnabled returns whether events are sent.
func (a *Analytics) IsEnabled() bool {
	return a.enabled
}

// Track enqueues an event. Enqueue failures are logged, never returned.
func (a *Analytics) Track(event string, properties map[string]any) {
	if !a.enabled {
		return
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	if err := a.client.Enqueue(posthog.Capture{
		DistinctId: DistinctID,
		Event:      event,
		Properties: props,
	}); err != nil {
		a.log.Warn("Failed to enqueue analytics event", "event", event, "error", err.Error())
	}
}

// Close flushes pending events.
func (a *Analytics) Close() error {
	if !a.enabled {
		return nil
	}
	return a.client.Close()
}
