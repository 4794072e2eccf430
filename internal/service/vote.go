package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

// VoteService records helpfulness votes on published reviews.
type VoteService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewVoteService creates a new vote service.
func NewVoteService(store repository.Store, logger *slog.Logger) *VoteService {
	return &VoteService{store: store, logger: logger}
}

// VoteResult is the caller's vote after a cast together with the review's
// refreshed counters. Vote is nil when the cast toggled the vote off.
type VoteResult struct {
	Vote  *domain.Vote     `json:"vote"`
	Tally domain.VoteTally `json:"tally"`
}

// CastVote records the caller's vote on a review. Casting the direction
// already on record removes the vote.
func (s *VoteService) CastVote(ctx context.Context, actor *auth.Identity, reviewID, voteType string) (*VoteResult, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	if !domain.IsValidVoteType(voteType) {
		return nil, apperrors.InvalidInput("vote type must be up or down")
	}

	result := &VoteResult{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := votableReview(ctx, tx, actor, reviewID); err != nil {
			return err
		}

		existing, err := tx.Votes().Get(ctx, reviewID, actor.UserID)
		switch {
		case err == nil && existing.Type == domain.VoteType(voteType):
			if err := tx.Votes().Delete(ctx, reviewID, actor.UserID); err != nil {
				return err
			}
		case err == nil || errors.Is(err, apperrors.ErrNotFound):
			now := time.Now().UTC()
			vote := &domain.Vote{
				ID:        uuid.New().String(),
				ReviewID:  reviewID,
				UserID:    actor.UserID,
				Type:      domain.VoteType(voteType),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Votes().Upsert(ctx, vote); err != nil {
				return err
			}
			result.Vote = vote
		default:
			return err
		}

		result.Tally, err = recomputeReviewVotes(ctx, tx, reviewID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("cast vote: %w", err)
	}

	s.logger.InfoContext(ctx, "vote cast",
		slog.String("review_id", reviewID),
		slog.String("user_id", actor.UserID),
		slog.String("type", voteType),
		slog.Bool("removed", result.Vote == nil),
	)
	return result, nil
}

// RemoveVote deletes the caller's vote on a review.
func (s *VoteService) RemoveVote(ctx context.Context, actor *auth.Identity, reviewID string) (domain.VoteTally, error) {
	if err := auth.Authorize(actor); err != nil {
		return domain.VoteTally{}, err
	}

	var tally domain.VoteTally
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Votes().Delete(ctx, reviewID, actor.UserID); err != nil {
			return err
		}
		var err error
		tally, err = recomputeReviewVotes(ctx, tx, reviewID)
		return err
	})
	if err != nil {
		return domain.VoteTally{}, fmt.Errorf("remove vote: %w", err)
	}

	s.logger.InfoContext(ctx, "vote removed",
		slog.String("review_id", reviewID),
		slog.String("user_id", actor.UserID),
	)
	return tally, nil
}

// GetMyVote returns the caller's vote on a review.
func (s *VoteService) GetMyVote(ctx context.Context, actor *auth.Identity, reviewID string) (*domain.Vote, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	vote, err := s.store.Votes().Get(ctx, reviewID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return vote, nil
}

// votableReview admits published reviews written by someone else.
func votableReview(ctx context.Context, tx repository.Store, actor *auth.Identity, reviewID string) error {
	review, err := tx.Reviews().GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if !review.IsPublished() {
		return apperrors.NotFound("review", reviewID)
	}
	if actor.Is(review.UserID) {
		return apperrors.InvalidInput("you cannot vote on your own review")
	}
	return nil
}
