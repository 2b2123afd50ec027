package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Run polls source on every tick and ingests what it returns.
func (p *Pipeline) Run(ctx context.Context, source Source, pollInterval time.Duration) {
	p.logger.Info("Collector loop started.", zap.Duration("poll_interval", pollInterval))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	p.Collect(ctx, source)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Collector loop stopped.")
			return
		case <-ticker.C:
			p.Collect(ctx, source)
		}
	}
}

// Collect runs one poll of source. Failures are logged; the next tick retries.
func (p *Pipeline) Collect(ctx context.Context, source Source) {
	since := p.Latest()
	p.logger.Info("Polling feed for new messages...", zap.Time("since", since))

	messages, err := source.Fetch(ctx, since)
	if err != nil {
		p.logger.Error("Failed to fetch messages from feed", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		p.logger.Info("No new messages from feed")
		return
	}

	if _, err := p.Ingest(ctx, messages); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			p.logger.Info("Skipping poll, a collection run is already in progress")
			return
		}
		p.logger.Error("Failed to ingest fetched messages", zap.Error(err))
	}
}
