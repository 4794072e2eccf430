package postgres

import (
	"context"
	"fmt"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/pkg/database"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

// One statement per derived counter.
const (
	lockProductSQL = `SELECT id FROM products WHERE id = $1 FOR UPDATE`

	productRatingStatsSQL = `
		SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8
		FROM reviews
		WHERE product_id = $1`

	setProductRatingSQL = `UPDATE products SET num_reviews = $2, ratings = $3 WHERE id = $1`

	lockReviewSQL = `SELECT id FROM reviews WHERE id = $1 FOR UPDATE`

	countActiveCommentsSQL = `SELECT COUNT(*) FROM comments WHERE review_id = $1 AND NOT is_deleted`

	setReviewCommentCountSQL = `UPDATE reviews SET comment_count = $2 WHERE id = $1`

	reviewVoteTallySQL = `
		SELECT COUNT(*) FILTER (WHERE type = 'up'), COUNT(*) FILTER (WHERE type = 'down')
		FROM votes
		WHERE review_id = $1`

	setReviewVoteCountsSQL = `UPDATE reviews SET upvote_count = $2, downvote_count = $3 WHERE id = $1`
)

// AggregateRepository implements repository.AggregateRepository using
// PostgreSQL. The Lock methods must run inside a transaction to hold the
// row lock until commit.
type AggregateRepository struct {
	db database.DBTX
}

// NewAggregateRepository creates a new PostgreSQL-backed aggregate repository.
func NewAggregateRepository(db database.DBTX) *AggregateRepository {
	return &AggregateRepository{db: db}
}

func (r *AggregateRepository) lock(ctx context.Context, op, query, resource, id string) (err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var locked string
	if err = r.db.QueryRow(ctx, query, id).Scan(&locked); err != nil {
		return lookupErr(err, resource, id)
	}
	return nil
}

func (r *AggregateRepository) exec(ctx context.Context, op, query, resource, id string, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(resource, id)
	}
	return nil
}

// LockProduct takes a row lock on the product.
func (r *AggregateRepository) LockProduct(ctx context.Context, productID string) error {
	return r.lock(ctx, "LockProduct", lockProductSQL, "product", productID)
}

// ProductRatingStats counts every review of the product and averages their
// ratings. The mean is not rounded.
func (r *AggregateRepository) ProductRatingStats(ctx context.Context, productID string) (count int, mean float64, err error) {
	ctx, end := database.TraceQuery(ctx, "ProductRatingStats", productRatingStatsSQL)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, productRatingStatsSQL, productID).Scan(&count, &mean); err != nil {
		return 0, 0, fmt.Errorf("product rating stats: %w", err)
	}
	return count, mean, nil
}

// SetProductRating writes num_reviews and ratings.
func (r *AggregateRepository) SetProductRating(ctx context.Context, productID string, stats domain.RatingStats) error {
	return r.exec(ctx, "SetProductRating", setProductRatingSQL, "product", productID, stats.NumReviews, stats.Ratings)
}

// LockReview takes a row lock on the review.
func (r *AggregateRepository) LockReview(ctx context.Context, reviewID string) error {
	return r.lock(ctx, "LockReview", lockReviewSQL, "review", reviewID)
}

// CountActiveComments counts the non-deleted comments of a review.
func (r *AggregateRepository) CountActiveComments(ctx context.Context, reviewID string) (count int, err error) {
	ctx, end := database.TraceQuery(ctx, "CountActiveComments", countActiveCommentsSQL)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, countActiveCommentsSQL, reviewID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active comments: %w", err)
	}
	return count, nil
}

// SetReviewCommentCount writes comment_count.
func (r *AggregateRepository) SetReviewCommentCount(ctx context.Context, reviewID string, count int) error {
	return r.exec(ctx, "SetReviewCommentCount", setReviewCommentCountSQL, "review", reviewID, count)
}

// ReviewVoteTally counts up and down votes on a review.
func (r *AggregateRepository) ReviewVoteTally(ctx context.Context, reviewID string) (tally domain.VoteTally, err error) {
	ctx, end := database.TraceQuery(ctx, "ReviewVoteTally", reviewVoteTallySQL)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, reviewVoteTallySQL, reviewID).Scan(&tally.Upvotes, &tally.Downvotes); err != nil {
		return domain.VoteTally{}, fmt.Errorf("review vote tally: %w", err)
	}
	return tally, nil
}

// SetReviewVoteCounts writes upvote_count and downvote_count.
func (r *AggregateRepository) SetReviewVoteCounts(ctx context.Context, reviewID string, tally domain.VoteTally) error {
	return r.exec(ctx, "SetReviewVoteCounts", setReviewVoteCountsSQL, "review", reviewID, tally.Upvotes, tally.Downvotes)
}
