package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewStatusPending     ReviewStatus = "pending"
	ReviewStatusPublished   ReviewStatus = "published"
	ReviewStatusUnpublished ReviewStatus = "unpublished"
)

// Content limits for reviews.
const (
	MinRating         = 1
	MaxRating         = 5
	MaxReviewTitleLen = 200
	MaxReviewDescLen  = 5000
	MaxReviewImages   = 10
	PreviewLength     = 100
	PreviewSuffix     = "..."
)

// IsValidReviewStatus checks whether s names a known status.
func IsValidReviewStatus(s string) bool {
	switch ReviewStatus(s) {
	case ReviewStatusPending, ReviewStatusPublished, ReviewStatusUnpublished:
		return true
	}
	return false
}

// reviewTransitions lists the moderation moves allowed from each state.
// Pending is only ever an initial state.
var reviewTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewStatusPending:     {ReviewStatusPublished, ReviewStatusUnpublished},
	ReviewStatusPublished:   {ReviewStatusUnpublished},
	ReviewStatusUnpublished: {ReviewStatusPublished},
}

// CanTransition reports whether a review may move from one status to another.
func CanTransition(from, to ReviewStatus) bool {
	for _, next := range reviewTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Review is a user's rating of a product. Vote and comment counters are
// derived and only written by the aggregate recalculator.
type Review struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	UserID           string          `json:"user_id"`
	Rating           int             `json:"rating"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Images           []string        `json:"images"`
	Status           ReviewStatus    `json:"status"`
	ModerationReason string          `json:"moderation_reason,omitempty"`
	IsPremium        bool            `json:"is_premium"`
	Price            *int64          `json:"price,omitempty"`
	UpvoteCount      int             `json:"upvote_count"`
	DownvoteCount    int             `json:"downvote_count"`
	CommentCount     int             `json:"comment_count"`
	IsPreview        bool            `json:"is_preview,omitempty"`
	Author           *UserSummary    `json:"author,omitempty"`
	Product          *ProductSummary `json:"product,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsPublished reports whether the review is publicly visible.
func (r *Review) IsPublished() bool {
	return r.Status == ReviewStatusPublished
}

// Approve publishes the review and clears any moderation reason.
func (r *Review) Approve() error {
	if r.Status == ReviewStatusPublished {
		return apperrors.Conflict(apperrors.CodeAlreadyPublished, "review is already published")
	}
	if !CanTransition(r.Status, ReviewStatusPublished) {
		return apperrors.Conflict("", fmt.Sprintf("review cannot be published from %s", r.Status))
	}
	r.Status = ReviewStatusPublished
	r.ModerationReason = ""
	return nil
}

// Unpublish hides the review and records why.
func (r *Review) Unpublish(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperrors.InvalidInput("a moderation reason is required to unpublish a review")
	}
	if r.Status == ReviewStatusUnpublished {
		return apperrors.Conflict(apperrors.CodeAlreadyUnpublished, "review is already unpublished")
	}
	if !CanTransition(r.Status, ReviewStatusUnpublished) {
		return apperrors.Conflict("", fmt.Sprintf("review cannot be unpublished from %s", r.Status))
	}
	r.Status = ReviewStatusUnpublished
	r.ModerationReason = reason
	return nil
}

// Preview returns a copy of the review safe to show without premium access.
// Non-premium reviews are returned unchanged. Premium ones keep the first
// PreviewLength characters of the description followed by PreviewSuffix.
func (r Review) Preview() Review {
	if !r.IsPremium {
		return r
	}
	r.Description = truncateRunes(r.Description, PreviewLength) + PreviewSuffix
	r.IsPreview = true
	return r
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// ValidateReview checks the authored fields of a review. Price is only
// meaningful for premium reviews and must then be positive.
func ValidateReview(r *Review) error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return apperrors.InvalidInput(fmt.Sprintf("rating must be an integer between %d and %d", MinRating, MaxRating))
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(r.Title)); n == 0 || n > MaxReviewTitleLen {
		return apperrors.InvalidInput(fmt.Sprintf("title must be between 1 and %d characters", MaxReviewTitleLen))
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(r.Description)); n == 0 || n > MaxReviewDescLen {
		return apperrors.InvalidInput(fmt.Sprintf("description must be between 1 and %d characters", MaxReviewDescLen))
	}
	if len(r.Images) > MaxReviewImages {
		return apperrors.InvalidInput(fmt.Sprintf("a review may have at most %d images", MaxReviewImages))
	}
	if r.IsPremium && (r.Price == nil || *r.Price <= 0) {
		return apperrors.InvalidInput("premium reviews require a price greater than zero")
	}
	return nil
}

// NormalizePricing drops the price of a non-premium review.
func (r *Review) NormalizePricing() {
	if !r.IsPremium {
		r.Price = nil
	}
}

// ReviewSummary is the review projection populated on comments.
type ReviewSummary struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	ProductID string          `json:"product_id"`
	Product   *ProductSummary `json:"product,omitempty"`
}
