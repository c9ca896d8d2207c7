package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/trip-link-parser/internal/domain"
	"github.com/couchcryptid/trip-link-parser/internal/observability"
)

// Publisher writes a suggestion to a downstream stream.
type Publisher interface {
	Publish(ctx context.Context, kind domain.LinkKind, s domain.SegmentSuggestion) error
}

type outboxItem struct {
	kind       domain.LinkKind
	suggestion domain.SegmentSuggestion
}

// Outbox decouples request handling from publishing. Enqueue never blocks;
// Run delivers queued suggestions with exponential backoff between attempts.
type Outbox struct {
	publisher   Publisher
	queue       chan outboxItem
	maxAttempts int
	logger      *slog.Logger
	metrics     *observability.Metrics

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewOutbox creates an Outbox holding up to size pending suggestions.
func NewOutbox(p Publisher, size int, logger *slog.Logger, metrics *observability.Metrics) *Outbox {
	if size < 1 {
		size = 1
	}
	return &Outbox{
		publisher:      p,
		queue:          make(chan outboxItem, size),
		maxAttempts:    5,
		logger:         logger,
		metrics:        metrics,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
	}
}

// Enqueue schedules a suggestion for publishing. It reports false and drops
// the suggestion when the queue is full.
func (o *Outbox) Enqueue(kind domain.LinkKind, s domain.SegmentSuggestion) bool {
	select {
	case o.queue <- outboxItem{kind: kind, suggestion: s}:
		return true
	default:
		o.metrics.PublishErrors.Inc()
		o.logger.Warn("outbox full, dropping suggestion", "kind", kind, "source_url", s.SourceURL)
		return false
	}
}

// Run delivers queued suggestions until the context is cancelled.
func (o *Outbox) Run(ctx context.Context) error {
	o.logger.Info("outbox started", "capacity", cap(o.queue))
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("outbox stopping", "reason", ctx.Err(), "pending", len(o.queue))
			return nil
		case item := <-o.queue:
			o.deliver(ctx, item)
		}
	}
}

// deliver publishes one item, retrying with backoff. Gives up after
// maxAttempts or when the context ends.
func (o *Outbox) deliver(ctx context.Context, item outboxItem) {
	backoff := o.initialBackoff
	for attempt := 1; ; attempt++ {
		err := o.publisher.Publish(ctx, item.kind, item.suggestion)
		if err == nil {
			o.metrics.SuggestionsPublished.Inc()
			return
		}
		if ctx.Err() != nil || attempt >= o.maxAttempts {
			o.metrics.PublishErrors.Inc()
			o.logger.Error("publish suggestion failed",
				"error", err,
				"kind", item.kind,
				"source_url", item.suggestion.SourceURL,
				"attempts", attempt,
			)
			return
		}
		o.logger.Warn("publish suggestion failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		if !sleepWithContext(ctx, backoff) {
			o.metrics.PublishErrors.Inc()
			return
		}
		backoff = nextBackoff(backoff, o.maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
