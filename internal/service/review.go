package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
	"github.com/kader009/trustedge-backend/pkg/pagination"
)

// DefaultReviewPageSize is the page size of review listings.
const DefaultReviewPageSize = 10

// ReviewService implements the review lifecycle: authoring, moderation,
// premium gating and search. Every mutation recomputes the product
// aggregates inside its own transaction.
type ReviewService struct {
	store  repository.Store
	events EventPublisher
	cache  CommentCache
	logger *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(store repository.Store, events EventPublisher, cache CommentCache, logger *slog.Logger) *ReviewService {
	if events == nil {
		events = NopEvents{}
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &ReviewService{
		store:  store,
		events: events,
		cache:  cache,
		logger: logger,
	}
}

// CreateReviewInput holds the parameters for creating a review.
type CreateReviewInput struct {
	ProductID   string
	Rating      int
	Title       string
	Description string
	Images      []string
	IsPremium   bool
	Price       *int64
}

// UpdateReviewInput holds the parameters for editing a review. Nil fields
// are left unchanged; a non-nil empty Images clears the images.
type UpdateReviewInput struct {
	Rating      *int
	Title       *string
	Description *string
	Images      []string
	IsPremium   *bool
	Price       *int64
}

// SearchReviewsInput holds the search options. Status defaults to
// published; any other status needs an admin viewer.
type SearchReviewsInput struct {
	Keyword    string
	ProductID  string
	CategoryID string
	Rating     *int
	Status     string
	IsPremium  *bool
	SortBy     string
	Order      string
	Page       int
	Limit      int
}

// CreateReview stores a pending review by the caller and refreshes the
// product's rating aggregates.
func (s *ReviewService) CreateReview(ctx context.Context, actor *auth.Identity, input CreateReviewInput) (*domain.Review, error) {
	if err := auth.Authorize(actor, domain.RoleUser, domain.RoleAdmin); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:          uuid.New().String(),
		ProductID:   input.ProductID,
		UserID:      actor.UserID,
		Rating:      input.Rating,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Images:      input.Images,
		Status:      domain.ReviewStatusPending,
		IsPremium:   input.IsPremium,
		Price:       input.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if review.Images == nil {
		review.Images = []string{}
	}
	if err := domain.ValidateReview(review); err != nil {
		return nil, err
	}
	review.NormalizePricing()

	var stats domain.RatingStats
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Products().GetByID(ctx, review.ProductID); err != nil {
			return err
		}
		_, err := tx.Reviews().GetByProductAndUser(ctx, review.ProductID, review.UserID)
		switch {
		case err == nil:
			return apperrors.Conflict(apperrors.CodeDuplicateReview, "you have already reviewed this product")
		case !errors.Is(err, apperrors.ErrNotFound):
			return err
		}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			return err
		}
		stats, err = recomputeProduct(ctx, tx, review.ProductID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	created, err := s.store.Reviews().GetByID(ctx, review.ID)
	if err != nil {
		return nil, fmt.Errorf("get created review: %w", err)
	}

	logPublishError(ctx, s.logger, "review.created", created.ID, s.events.ReviewCreated(ctx, created))
	s.publishRating(ctx, created.ProductID, stats)

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", created.ID),
		slog.String("product_id", created.ProductID),
		slog.String("user_id", created.UserID),
		slog.Int("rating", created.Rating),
	)
	return created, nil
}

// UpdateReview edits the caller's own review. The moderation status is not
// affected by edits.
func (s *ReviewService) UpdateReview(ctx context.Context, actor *auth.Identity, id string, input UpdateReviewInput) (*domain.Review, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}

	var (
		productID string
		stats     domain.RatingStats
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		review, err := tx.Reviews().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Is(review.UserID) {
			return apperrors.Forbidden("only the author can edit this review")
		}

		applyReviewUpdate(review, input)
		if err := domain.ValidateReview(review); err != nil {
			return err
		}
		review.NormalizePricing()
		review.UpdatedAt = time.Now().UTC()

		if err := tx.Reviews().Update(ctx, review); err != nil {
			return err
		}
		productID = review.ProductID
		stats, err = recomputeProduct(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	updated, err := s.store.Reviews().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get updated review: %w", err)
	}

	logPublishError(ctx, s.logger, "review.updated", id, s.events.ReviewUpdated(ctx, updated))
	s.publishRating(ctx, productID, stats)

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", id),
		slog.String("user_id", actor.UserID),
	)
	return updated, nil
}

func applyReviewUpdate(review *domain.Review, input UpdateReviewInput) {
	if input.Rating != nil {
		review.Rating = *input.Rating
	}
	if input.Title != nil {
		review.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		review.Description = strings.TrimSpace(*input.Description)
	}
	if input.Images != nil {
		review.Images = input.Images
	}
	if input.IsPremium != nil {
		review.IsPremium = *input.IsPremium
	}
	if input.Price != nil {
		review.Price = input.Price
	}
}

// DeleteReview removes a review with its comments and votes. Authors may
// delete their own reviews; admins may delete any.
func (s *ReviewService) DeleteReview(ctx context.Context, actor *auth.Identity, id string) error {
	if err := auth.Authorize(actor); err != nil {
		return err
	}

	var (
		deleted *domain.Review
		stats   domain.RatingStats
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		review, err := tx.Reviews().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Is(review.UserID) && !actor.IsAdmin() {
			return apperrors.Forbidden("only the author or an admin can delete this review")
		}
		if err := tx.Reviews().Delete(ctx, id); err != nil {
			return err
		}
		deleted = review
		stats, err = recomputeProduct(ctx, tx, review.ProductID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate comment cache",
			slog.String("review_id", id),
			slog.String("error", err.Error()),
		)
	}
	logPublishError(ctx, s.logger, "review.deleted", id, s.events.ReviewDeleted(ctx, deleted, actor.UserID))
	s.publishRating(ctx, deleted.ProductID, stats)

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", id),
		slog.String("product_id", deleted.ProductID),
		slog.String("deleted_by", actor.UserID),
	)
	return nil
}

// GetReview returns a single review as the viewer may see it. Reviews that
// are not published exist only for their author and admins; premium reviews
// come back as previews for everybody else.
func (s *ReviewService) GetReview(ctx context.Context, viewer *auth.Identity, id string) (*domain.Review, error) {
	review, err := s.visibleReview(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	out := present(viewer, *review)
	return &out, nil
}

// GetReviewPreview returns the preview form of a review: premium reviews
// are truncated and flagged, others are returned in full.
func (s *ReviewService) GetReviewPreview(ctx context.Context, viewer *auth.Identity, id string) (*domain.Review, error) {
	review, err := s.visibleReview(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	out := review.Preview()
	return &out, nil
}

func (s *ReviewService) visibleReview(ctx context.Context, viewer *auth.Identity, id string) (*domain.Review, error) {
	review, err := s.store.Reviews().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if !review.IsPublished() && !canSeeFull(viewer, review) {
		return nil, apperrors.NotFound("review", id)
	}
	return review, nil
}

func canSeeFull(viewer *auth.Identity, review *domain.Review) bool {
	return viewer.IsAdmin() || viewer.Is(review.UserID)
}

// present gates premium content for viewers other than the author and
// admins.
func present(viewer *auth.Identity, review domain.Review) domain.Review {
	if review.IsPremium && !canSeeFull(viewer, &review) {
		return review.Preview()
	}
	return review
}

// ListReviews returns published reviews, newest first, optionally limited
// to one product.
func (s *ReviewService) ListReviews(ctx context.Context, viewer *auth.Identity, productID string, params pagination.Params) (pagination.Result[domain.Review], error) {
	return s.list(ctx, viewer, repository.ReviewFilter{
		ProductID: productID,
		Statuses:  []domain.ReviewStatus{domain.ReviewStatusPublished},
		SortBy:    domain.SortByDate,
		Order:     domain.OrderDesc,
	}, params)
}

// GetPendingReviews returns the moderation queue, oldest first.
func (s *ReviewService) GetPendingReviews(ctx context.Context, actor *auth.Identity, params pagination.Params) (pagination.Result[domain.Review], error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return pagination.Result[domain.Review]{}, err
	}
	return s.list(ctx, actor, repository.ReviewFilter{
		Statuses: []domain.ReviewStatus{domain.ReviewStatusPending},
		SortBy:   domain.SortByDate,
		Order:    domain.OrderAsc,
	}, params)
}

// GetReviewsByStatus returns reviews in one moderation status, newest first.
func (s *ReviewService) GetReviewsByStatus(ctx context.Context, actor *auth.Identity, status string, params pagination.Params) (pagination.Result[domain.Review], error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return pagination.Result[domain.Review]{}, err
	}
	if !domain.IsValidReviewStatus(status) {
		return pagination.Result[domain.Review]{}, apperrors.InvalidInput(fmt.Sprintf("invalid review status %q", status))
	}
	return s.list(ctx, actor, repository.ReviewFilter{
		Statuses: []domain.ReviewStatus{domain.ReviewStatus(status)},
		SortBy:   domain.SortByDate,
		Order:    domain.OrderDesc,
	}, params)
}

// GetPremiumReviews returns published premium reviews, newest first.
func (s *ReviewService) GetPremiumReviews(ctx context.Context, viewer *auth.Identity, params pagination.Params) (pagination.Result[domain.Review], error) {
	premium := true
	return s.list(ctx, viewer, repository.ReviewFilter{
		IsPremium: &premium,
		Statuses:  []domain.ReviewStatus{domain.ReviewStatusPublished},
		SortBy:    domain.SortByDate,
		Order:     domain.OrderDesc,
	}, params)
}

// SearchReviews filters, sorts and pages reviews.
func (s *ReviewService) SearchReviews(ctx context.Context, viewer *auth.Identity, input SearchReviewsInput) (pagination.Result[domain.Review], error) {
	var empty pagination.Result[domain.Review]

	if !domain.IsValidSortBy(input.SortBy) {
		return empty, apperrors.InvalidInput(fmt.Sprintf("sort_by must be one of %s", strings.Join(domain.ValidSortByValues(), ", ")))
	}
	if !domain.IsValidOrder(input.Order) {
		return empty, apperrors.InvalidInput("order must be asc or desc")
	}
	if input.Rating != nil && (*input.Rating < domain.MinRating || *input.Rating > domain.MaxRating) {
		return empty, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	if input.Page < 0 || input.Limit < 0 {
		return empty, apperrors.InvalidInput("page and limit must be positive")
	}

	status := domain.ReviewStatusPublished
	if input.Status != "" {
		if !domain.IsValidReviewStatus(input.Status) {
			return empty, apperrors.InvalidInput(fmt.Sprintf("invalid review status %q", input.Status))
		}
		status = domain.ReviewStatus(input.Status)
	}
	if status != domain.ReviewStatusPublished {
		if err := auth.Authorize(viewer, domain.RoleAdmin); err != nil {
			return empty, err
		}
	}

	sortBy := input.SortBy
	if sortBy == "" {
		sortBy = domain.SortByDate
	}
	order := input.Order
	if order == "" {
		order = domain.OrderDesc
	}

	return s.list(ctx, viewer, repository.ReviewFilter{
		Keyword:    strings.TrimSpace(input.Keyword),
		ProductID:  input.ProductID,
		CategoryID: input.CategoryID,
		Rating:     input.Rating,
		IsPremium:  input.IsPremium,
		Statuses:   []domain.ReviewStatus{status},
		SortBy:     sortBy,
		Order:      order,
	}, pagination.NewParams(input.Page, input.Limit, DefaultReviewPageSize))
}

func (s *ReviewService) list(ctx context.Context, viewer *auth.Identity, filter repository.ReviewFilter, params pagination.Params) (pagination.Result[domain.Review], error) {
	filter.Offset = params.Offset
	filter.Limit = params.Limit

	reviews, total, err := s.store.Reviews().Search(ctx, filter)
	if err != nil {
		return pagination.Result[domain.Review]{}, fmt.Errorf("search reviews: %w", err)
	}
	for i := range reviews {
		reviews[i] = present(viewer, reviews[i])
	}
	return pagination.NewResult(reviews, total, params), nil
}

// ApproveReview publishes a pending or unpublished review.
func (s *ReviewService) ApproveReview(ctx context.Context, actor *auth.Identity, id string) (*domain.Review, error) {
	return s.moderate(ctx, actor, id, func(r *domain.Review) error { return r.Approve() })
}

// UnpublishReview hides a pending or published review. The reason is
// required and stored on the review.
func (s *ReviewService) UnpublishReview(ctx context.Context, actor *auth.Identity, id, reason string) (*domain.Review, error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.InvalidInput("a moderation reason is required to unpublish a review")
	}
	return s.moderate(ctx, actor, id, func(r *domain.Review) error { return r.Unpublish(reason) })
}

func (s *ReviewService) moderate(ctx context.Context, actor *auth.Identity, id string, transition func(*domain.Review) error) (*domain.Review, error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		review *domain.Review
		from   domain.ReviewStatus
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		review, err = tx.Reviews().GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = review.Status
		if err := transition(review); err != nil {
			return err
		}
		review.UpdatedAt = time.Now().UTC()
		return tx.Reviews().UpdateModeration(ctx, id, review.Status, review.ModerationReason, review.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("moderate review: %w", err)
	}

	moderationTransitions.WithLabelValues(string(from), string(review.Status)).Inc()
	logPublishError(ctx, s.logger, "review.moderated", id, s.events.ReviewModerated(ctx, review, from))

	s.logger.InfoContext(ctx, "review moderated",
		slog.String("review_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(review.Status)),
		slog.String("moderator_id", actor.UserID),
	)
	return review, nil
}

func (s *ReviewService) publishRating(ctx context.Context, productID string, stats domain.RatingStats) {
	logPublishError(ctx, s.logger, "product.rating_recalculated", productID, s.events.ProductRatingRecalculated(ctx, productID, stats))
}
