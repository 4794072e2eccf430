package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/domain"
	pkgkafka "github.com/kader009/trustedge-backend/pkg/kafka"
	"github.com/kader009/trustedge-backend/pkg/logger"
)

// Kafka topic constants for review domain events.
const (
	TopicReviewCreated             = "trustedge.review.created"
	TopicReviewUpdated             = "trustedge.review.updated"
	TopicReviewDeleted             = "trustedge.review.deleted"
	TopicReviewModerated           = "trustedge.review.moderated"
	TopicCommentCreated            = "trustedge.comment.created"
	TopicCommentDeleted            = "trustedge.comment.deleted"
	TopicProductRatingRecalculated = "trustedge.product.rating_recalculated"
)

// Aggregate type constants.
const (
	AggregateTypeReview  = "review"
	AggregateTypeComment = "comment"
	AggregateTypeProduct = "product"
)

// SourceReviewService identifies events originating from this service.
const SourceReviewService = "trustedge-review-service"

// ReviewData is the payload for review.created and review.updated events.
type ReviewData struct {
	ID        string              `json:"id"`
	ProductID string              `json:"product_id"`
	UserID    string              `json:"user_id"`
	Rating    int                 `json:"rating"`
	Status    domain.ReviewStatus `json:"status"`
	IsPremium bool                `json:"is_premium"`
}

// ReviewDeletedData is the payload for a review.deleted event.
type ReviewDeletedData struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	DeletedBy string `json:"deleted_by"`
}

// ReviewModeratedData is the payload for a review.moderated event.
type ReviewModeratedData struct {
	ID        string              `json:"id"`
	ProductID string              `json:"product_id"`
	From      domain.ReviewStatus `json:"from"`
	To        domain.ReviewStatus `json:"to"`
	Reason    string              `json:"reason,omitempty"`
}

// CommentCreatedData is the payload for a comment.created event.
type CommentCreatedData struct {
	ID       string  `json:"id"`
	ReviewID string  `json:"review_id"`
	UserID   string  `json:"user_id"`
	ParentID *string `json:"parent_id,omitempty"`
}

// CommentDeletedData is the payload for a comment.deleted event.
type CommentDeletedData struct {
	ID       string `json:"id"`
	ReviewID string `json:"review_id"`
	Hard     bool   `json:"hard"`
	Affected int    `json:"affected"`
}

// RatingRecalculatedData is the payload for a product.rating_recalculated event.
type RatingRecalculatedData struct {
	ProductID  string  `json:"product_id"`
	NumReviews int     `json:"num_reviews"`
	Ratings    float64 `json:"ratings"`
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer. A nil publisher discards events.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	if publisher == nil {
		publisher = pkgkafka.NopPublisher{}
	}
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	opts := []pkgkafka.EventOption{pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx))}
	if actor := auth.IdentityFromContext(ctx); actor != nil {
		opts = append(opts, pkgkafka.WithActor(actor.UserID))
	}

	evt, err := pkgkafka.NewEvent(topic, aggregateType, aggregateID, SourceReviewService, data, opts...)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func reviewData(r *domain.Review) ReviewData {
	return ReviewData{
		ID:        r.ID,
		ProductID: r.ProductID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Status:    r.Status,
		IsPremium: r.IsPremium,
	}
}

// ReviewCreated publishes a review.created event.
func (p *Producer) ReviewCreated(ctx context.Context, r *domain.Review) error {
	return p.publish(ctx, TopicReviewCreated, r.ID, AggregateTypeReview, reviewData(r))
}

// ReviewUpdated publishes a review.updated event.
func (p *Producer) ReviewUpdated(ctx context.Context, r *domain.Review) error {
	return p.publish(ctx, TopicReviewUpdated, r.ID, AggregateTypeReview, reviewData(r))
}

// ReviewDeleted publishes a review.deleted event.
func (p *Producer) ReviewDeleted(ctx context.Context, r *domain.Review, deletedBy string) error {
	return p.publish(ctx, TopicReviewDeleted, r.ID, AggregateTypeReview, ReviewDeletedData{
		ID:        r.ID,
		ProductID: r.ProductID,
		DeletedBy: deletedBy,
	})
}

// ReviewModerated publishes a review.moderated event.
func (p *Producer) ReviewModerated(ctx context.Context, r *domain.Review, from domain.ReviewStatus) error {
	return p.publish(ctx, TopicReviewModerated, r.ID, AggregateTypeReview, ReviewModeratedData{
		ID:        r.ID,
		ProductID: r.ProductID,
		From:      from,
		To:        r.Status,
		Reason:    r.ModerationReason,
	})
}

// CommentCreated publishes a comment.created event.
func (p *Producer) CommentCreated(ctx context.Context, c *domain.Comment) error {
	return p.publish(ctx, TopicCommentCreated, c.ID, AggregateTypeComment, CommentCreatedData{
		ID:       c.ID,
		ReviewID: c.ReviewID,
		UserID:   c.UserID,
		ParentID: c.ParentID,
	})
}

// CommentDeleted publishes a comment.deleted event.
func (p *Producer) CommentDeleted(ctx context.Context, c *domain.Comment, hard bool, affected int) error {
	return p.publish(ctx, TopicCommentDeleted, c.ID, AggregateTypeComment, CommentDeletedData{
		ID:       c.ID,
		ReviewID: c.ReviewID,
		Hard:     hard,
		Affected: affected,
	})
}

// ProductRatingRecalculated publishes a product.rating_recalculated event.
func (p *Producer) ProductRatingRecalculated(ctx context.Context, productID string, stats domain.RatingStats) error {
	return p.publish(ctx, TopicProductRatingRecalculated, productID, AggregateTypeProduct, RatingRecalculatedData{
		ProductID:  productID,
		NumReviews: stats.NumReviews,
		Ratings:    stats.Ratings,
	})
}
