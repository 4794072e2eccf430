package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
)

// DefaultRecalcConcurrency bounds RecalculateAll when no limit is configured.
const DefaultRecalcConcurrency = 4

// Recalculator keeps the derived counters of products and reviews equal to
// a recompute over their rows. The in-transaction helpers lock the owner row
// first, so concurrent writers to the same product or review serialize and
// the last commit always leaves the correct value behind.
type Recalculator struct {
	store       repository.Store
	events      EventPublisher
	logger      *slog.Logger
	concurrency int
}

// NewRecalculator creates a new aggregate recalculator.
func NewRecalculator(store repository.Store, events EventPublisher, logger *slog.Logger, concurrency int) *Recalculator {
	if events == nil {
		events = NopEvents{}
	}
	if concurrency <= 0 {
		concurrency = DefaultRecalcConcurrency
	}
	return &Recalculator{
		store:       store,
		events:      events,
		logger:      logger,
		concurrency: concurrency,
	}
}

// RecalculationReport summarizes a full recompute.
type RecalculationReport struct {
	Products int `json:"products"`
}

// recomputeProduct rewrites num_reviews and ratings of a product inside tx.
// Every review of the product counts, whatever its moderation status.
func recomputeProduct(ctx context.Context, tx repository.Store, productID string) (stats domain.RatingStats, err error) {
	defer func() { aggregateRecomputes.WithLabelValues("product_rating", outcome(err)).Inc() }()

	agg := tx.Aggregates()
	if err := agg.LockProduct(ctx, productID); err != nil {
		return stats, fmt.Errorf("lock product: %w", err)
	}
	count, mean, err := agg.ProductRatingStats(ctx, productID)
	if err != nil {
		return stats, err
	}
	stats = domain.NewRatingStats(count, mean)
	if err := agg.SetProductRating(ctx, productID, stats); err != nil {
		return stats, fmt.Errorf("set product rating: %w", err)
	}
	return stats, nil
}

// recomputeReviewComments rewrites comment_count of a review inside tx.
func recomputeReviewComments(ctx context.Context, tx repository.Store, reviewID string) (count int, err error) {
	defer func() { aggregateRecomputes.WithLabelValues("review_comments", outcome(err)).Inc() }()

	agg := tx.Aggregates()
	if err := agg.LockReview(ctx, reviewID); err != nil {
		return 0, fmt.Errorf("lock review: %w", err)
	}
	count, err = agg.CountActiveComments(ctx, reviewID)
	if err != nil {
		return 0, err
	}
	if err := agg.SetReviewCommentCount(ctx, reviewID, count); err != nil {
		return 0, fmt.Errorf("set review comment count: %w", err)
	}
	return count, nil
}

// recomputeReviewVotes rewrites the vote counters of a review inside tx.
func recomputeReviewVotes(ctx context.Context, tx repository.Store, reviewID string) (tally domain.VoteTally, err error) {
	defer func() { aggregateRecomputes.WithLabelValues("review_votes", outcome(err)).Inc() }()

	agg := tx.Aggregates()
	if err := agg.LockReview(ctx, reviewID); err != nil {
		return tally, fmt.Errorf("lock review: %w", err)
	}
	tally, err = agg.ReviewVoteTally(ctx, reviewID)
	if err != nil {
		return tally, err
	}
	if err := agg.SetReviewVoteCounts(ctx, reviewID, tally); err != nil {
		return tally, fmt.Errorf("set review vote counts: %w", err)
	}
	return tally, nil
}

// RecalculateProduct recomputes one product's rating aggregates in its own
// transaction.
func (r *Recalculator) RecalculateProduct(ctx context.Context, productID string) (domain.RatingStats, error) {
	var stats domain.RatingStats
	err := r.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		stats, err = recomputeProduct(ctx, tx, productID)
		return err
	})
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("recalculate product %s: %w", productID, err)
	}

	r.publishRating(ctx, productID, stats)
	return stats, nil
}

// RecalculateAll recomputes every product's rating aggregates with at most
// the configured number of products in flight. The first failure cancels
// the remaining work.
func (r *Recalculator) RecalculateAll(ctx context.Context) (RecalculationReport, error) {
	ids, err := r.store.Products().ListIDs(ctx)
	if err != nil {
		return RecalculationReport{}, fmt.Errorf("list products: %w", err)
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := r.RecalculateProduct(gctx, id); err != nil {
				return err
			}
			done.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RecalculationReport{Products: int(done.Load())}, err
	}

	r.logger.InfoContext(ctx, "recalculated all product ratings",
		slog.Int("products", len(ids)),
	)
	return RecalculationReport{Products: int(done.Load())}, nil
}

// RecalculateReviewComments recomputes one review's comment count.
func (r *Recalculator) RecalculateReviewComments(ctx context.Context, reviewID string) (int, error) {
	var count int
	err := r.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		count, err = recomputeReviewComments(ctx, tx, reviewID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("recalculate review comments %s: %w", reviewID, err)
	}
	return count, nil
}

// RecalculateReviewVotes recomputes one review's vote counters.
func (r *Recalculator) RecalculateReviewVotes(ctx context.Context, reviewID string) (domain.VoteTally, error) {
	var tally domain.VoteTally
	err := r.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		tally, err = recomputeReviewVotes(ctx, tx, reviewID)
		return err
	})
	if err != nil {
		return domain.VoteTally{}, fmt.Errorf("recalculate review votes %s: %w", reviewID, err)
	}
	return tally, nil
}

func (r *Recalculator) publishRating(ctx context.Context, productID string, stats domain.RatingStats) {
	logPublishError(ctx, r.logger, "product.rating_recalculated", productID, r.events.ProductRatingRecalculated(ctx, productID, stats))
}
