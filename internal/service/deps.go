package service

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kader009/trustedge-backend/internal/domain"
)

// EventPublisher receives domain events after the triggering transaction
// commits. Publish failures are logged and never fail the operation.
type EventPublisher interface {
	ReviewCreated(ctx context.Context, r *domain.Review) error
	ReviewUpdated(ctx context.Context, r *domain.Review) error
	ReviewDeleted(ctx context.Context, r *domain.Review, deletedBy string) error
	ReviewModerated(ctx context.Context, r *domain.Review, from domain.ReviewStatus) error
	CommentCreated(ctx context.Context, c *domain.Comment) error
	CommentDeleted(ctx context.Context, c *domain.Comment, hard bool, affected int) error
	ProductRatingRecalculated(ctx context.Context, productID string, stats domain.RatingStats) error
}

// CommentCache caches the thread list of a review. GetThreads reports the
// generation it looked under; SetThreads with that generation is discarded
// once Invalidate has run in between.
type CommentCache interface {
	GetThreads(ctx context.Context, reviewID string) ([]domain.CommentThread, int64, bool, error)
	SetThreads(ctx context.Context, reviewID string, gen int64, threads []domain.CommentThread) error
	Invalidate(ctx context.Context, reviewID string) error
}

// NopEvents discards every event.
type NopEvents struct{}

func (NopEvents) ReviewCreated(context.Context, *domain.Review) error         { return nil }
func (NopEvents) ReviewUpdated(context.Context, *domain.Review) error         { return nil }
func (NopEvents) ReviewDeleted(context.Context, *domain.Review, string) error { return nil }
func (NopEvents) ReviewModerated(context.Context, *domain.Review, domain.ReviewStatus) error {
	return nil
}
func (NopEvents) CommentCreated(context.Context, *domain.Comment) error { return nil }
func (NopEvents) CommentDeleted(context.Context, *domain.Comment, bool, int) error {
	return nil
}
func (NopEvents) ProductRatingRecalculated(context.Context, string, domain.RatingStats) error {
	return nil
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) GetThreads(context.Context, string) ([]domain.CommentThread, int64, bool, error) {
	return nil, 0, false, nil
}
func (NopCache) SetThreads(context.Context, string, int64, []domain.CommentThread) error { return nil }
func (NopCache) Invalidate(context.Context, string) error                                { return nil }

var (
	moderationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustedge_review_moderation_transitions_total",
		Help: "Review moderation transitions by source and target status.",
	}, []string{"from", "to"})

	aggregateRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustedge_aggregate_recomputations_total",
		Help: "Aggregate recomputations by aggregate and outcome.",
	}, []string{"aggregate", "outcome"})

	commentCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustedge_comment_cache_lookups_total",
		Help: "Comment thread cache lookups by result.",
	}, []string{"result"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// logPublishError records a failed event publish. Events are best effort
// and never fail the operation that produced them.
func logPublishError(ctx context.Context, logger *slog.Logger, event, aggregateID string, err error) {
	if err == nil {
		return
	}
	logger.ErrorContext(ctx, "failed to publish "+event+" event",
		slog.String("aggregate_id", aggregateID),
		slog.String("error", err.Error()),
	)
}
