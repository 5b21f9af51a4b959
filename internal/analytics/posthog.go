// Package analytics wraps the PostHog SDK for the product-analytics
// events the Review Router and Episode Pipeline emit: per-request tier,
// confidence and degraded capture, dedup fail-open events, and episode
// lifecycle events.
package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/posthog/posthog-go"

	"overseer/internal/config"
	"overseer/internal/logger"
)

// Client wraps the PostHog SDK. Disabled by default; Capture calls are
// no-ops when disabled so callers never need to branch on config.
type Client struct {
	client  posthog.Client
	enabled bool
	log     *slog.Logger
}

// EventProperties carries arbitrary event metadata.
type EventProperties map[string]interface{}

// New creates a Client from the observability config. When PostHog is
// disabled, the returned client is a harmless no-op sink.
func New(cfg config.PostHogConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{enabled: false, log: logger.Get()}, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("posthog enabled but missing API key")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{Endpoint: cfg.Host})
	if err != nil {
		return nil, fmt.Errorf("failed to create posthog client: %w", err)
	}

	return &Client{client: client, enabled: true, log: logger.Get()}, nil
}

// IsEnabled reports whether analytics capture is active.
func (c *Client) IsEnabled() bool { return c.enabled }

// Capture sends an event to PostHog. Errors are logged, not returned —
// analytics delivery never blocks the core's own control flow.
func (c *Client) Capture(ctx context.Context, distinctID, event string, properties EventProperties) {
	if !c.enabled {
		return
	}
	err := c.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: posthog.Properties(properties),
	})
	if err != nil {
		c.log.Warn("posthog capture failed", "event", event, "error", err)
	}
}

// TrackReview captures one C2 review request's outcome: tier chosen,
// elapsed time, raw confidence score, and the degraded flag.
func (c *Client) TrackReview(ctx context.Context, groupID, articleID, tier string, elapsedMs int64, confidence float64, degraded bool) {
	c.Capture(ctx, groupID, "article_reviewed", EventProperties{
		"article_id": articleID,
		"tier":       tier,
		"elapsed_ms": elapsedMs,
		"confidence": confidence,
		"degraded":   degraded,
	})
}

// TrackDedupBypassed captures a dedup-filter fail-open event.
func (c *Client) TrackDedupBypassed(ctx context.Context, groupID string) {
	c.Capture(ctx, groupID, "dedup_bypassed", nil)
}

// TrackEpisodeStage captures an episode pipeline stage transition.
func (c *Client) TrackEpisodeStage(ctx context.Context, groupID, episodeID, stage string, failed bool, reason string) {
	props := EventProperties{
		"episode_id": episodeID,
		"stage":      stage,
		"failed":     failed,
	}
	if reason != "" {
		props["reason"] = reason
	}
	c.Capture(ctx, groupID, "episode_stage", props)
}

// Shutdown flushes and closes the underlying client.
func (c *Client) Shutdown() error {
	if !c.enabled {
		return nil
	}
	return c.client.Close()
}
