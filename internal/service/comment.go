package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

// CommentService manages the two-level comment threads under reviews.
type CommentService struct {
	store  repository.Store
	events EventPublisher
	cache  CommentCache
	logger *slog.Logger
}

// NewCommentService creates a new comment service.
func NewCommentService(store repository.Store, events EventPublisher, cache CommentCache, logger *slog.Logger) *CommentService {
	if events == nil {
		events = NopEvents{}
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &CommentService{
		store:  store,
		events: events,
		cache:  cache,
		logger: logger,
	}
}

// CreateCommentInput holds the parameters for creating a comment. A nil
// ParentID attaches the comment to the review itself.
type CreateCommentInput struct {
	ReviewID string
	ParentID *string
	Text     string
}

// CreateComment adds a top-level comment or a reply to a top-level comment
// on the same review.
func (s *CommentService) CreateComment(ctx context.Context, actor *auth.Identity, input CreateCommentInput) (*domain.Comment, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	text, err := domain.NormalizeCommentText(input.Text)
	if err != nil {
		return nil, err
	}
	if input.ParentID != nil && *input.ParentID == "" {
		input.ParentID = nil
	}

	now := time.Now().UTC()
	comment := &domain.Comment{
		ID:        uuid.New().String(),
		ReviewID:  input.ReviewID,
		UserID:    actor.UserID,
		Text:      text,
		ParentID:  input.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Reviews().GetByID(ctx, comment.ReviewID); err != nil {
			return err
		}
		if comment.ParentID != nil {
			if err := checkParent(ctx, tx, comment.ReviewID, *comment.ParentID); err != nil {
				return err
			}
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		_, err := recomputeReviewComments(ctx, tx, comment.ReviewID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.invalidate(ctx, comment.ReviewID)
	created, err := s.store.Comments().GetByID(ctx, comment.ID)
	if err != nil {
		return nil, fmt.Errorf("get created comment: %w", err)
	}
	logPublishError(ctx, s.logger, "comment.created", created.ID, s.events.CommentCreated(ctx, created))

	s.logger.InfoContext(ctx, "comment created",
		slog.String("comment_id", created.ID),
		slog.String("review_id", created.ReviewID),
		slog.Bool("reply", created.ParentID != nil),
	)
	return created, nil
}

// checkParent accepts only a live top-level comment of the same review.
func checkParent(ctx context.Context, tx repository.Store, reviewID, parentID string) error {
	parent, err := tx.Comments().GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.ReviewID != reviewID {
		return apperrors.InvalidInput("parent comment belongs to a different review")
	}
	if _, ok := domain.Classify(*parent).(*domain.Reply); ok {
		return apperrors.InvalidInput("replies cannot be nested more than one level deep")
	}
	if parent.IsDeleted {
		return apperrors.Gone("parent comment has been deleted")
	}
	return nil
}

// GetReviewComments returns the live top-level comments of a review, newest
// first, each with its live replies oldest first.
func (s *CommentService) GetReviewComments(ctx context.Context, reviewID string) ([]domain.CommentThread, error) {
	threads, gen, ok, err := s.cache.GetThreads(ctx, reviewID)
	switch {
	case err != nil:
		commentCacheLookups.WithLabelValues("error").Inc()
		s.logger.WarnContext(ctx, "comment cache read failed",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	case ok:
		commentCacheLookups.WithLabelValues("hit").Inc()
		return threads, nil
	default:
		commentCacheLookups.WithLabelValues("miss").Inc()
	}

	threads, err = s.loadThreads(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetThreads(ctx, reviewID, gen, threads); err != nil {
		s.logger.WarnContext(ctx, "comment cache write failed",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}
	return threads, nil
}

func (s *CommentService) loadThreads(ctx context.Context, reviewID string) ([]domain.CommentThread, error) {
	if _, err := s.store.Reviews().GetByID(ctx, reviewID); err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}

	tops, err := s.store.Comments().ListTopLevel(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	threads := make([]domain.CommentThread, 0, len(tops))
	if len(tops) == 0 {
		return threads, nil
	}

	ids := make([]string, len(tops))
	for i, c := range tops {
		ids[i] = c.ID
	}
	replies, err := s.store.Comments().ListReplies(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}

	byParent := make(map[string][]domain.Reply, len(tops))
	for _, c := range replies {
		reply := domain.Reply{Comment: c}
		byParent[reply.ParentCommentID()] = append(byParent[reply.ParentCommentID()], reply)
	}
	for _, c := range tops {
		threads = append(threads, domain.NewCommentThread(domain.TopLevelComment{Comment: c}, byParent[c.ID]))
	}
	return threads, nil
}

// GetCommentReplies returns the live replies to a comment, oldest first.
func (s *CommentService) GetCommentReplies(ctx context.Context, commentID string) ([]domain.Comment, error) {
	parent, err := s.store.Comments().GetByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if parent.IsDeleted {
		return nil, apperrors.Gone("comment has been deleted")
	}
	replies, err := s.store.Comments().ListReplies(ctx, []string{commentID})
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return replies, nil
}

// GetSingleComment returns one live comment with its author, parent and
// review.
func (s *CommentService) GetSingleComment(ctx context.Context, id string) (*domain.Comment, error) {
	comment, err := s.store.Comments().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if comment.IsDeleted {
		return nil, apperrors.Gone("comment has been deleted")
	}
	return comment, nil
}

// GetUserComments returns the caller's live comments, newest first.
func (s *CommentService) GetUserComments(ctx context.Context, actor *auth.Identity) ([]domain.Comment, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	comments, err := s.store.Comments().ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list user comments: %w", err)
	}
	return comments, nil
}

// UpdateComment replaces the text of the caller's own live comment.
func (s *CommentService) UpdateComment(ctx context.Context, actor *auth.Identity, id, text string) (*domain.Comment, error) {
	if err := auth.Authorize(actor); err != nil {
		return nil, err
	}
	text, err := domain.NormalizeCommentText(text)
	if err != nil {
		return nil, err
	}

	var updated *domain.Comment
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		comment, err := tx.Comments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if comment.IsDeleted {
			return apperrors.Gone("comment has been deleted")
		}
		if !actor.Is(comment.UserID) {
			return apperrors.Forbidden("only the author can edit this comment")
		}
		// UpdateText re-checks is_deleted under the write.
		if err := tx.Comments().UpdateText(ctx, id, text, time.Now().UTC()); err != nil {
			return err
		}
		updated, err = tx.Comments().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	s.invalidate(ctx, updated.ReviewID)

	s.logger.InfoContext(ctx, "comment updated",
		slog.String("comment_id", id),
		slog.String("user_id", actor.UserID),
	)
	return updated, nil
}

// DeleteComment soft-deletes a comment. Deleting a top-level comment also
// deletes its replies. Authors may delete their own comments; admins may
// delete any.
func (s *CommentService) DeleteComment(ctx context.Context, actor *auth.Identity, id string) (int, error) {
	if err := auth.Authorize(actor); err != nil {
		return 0, err
	}

	var (
		comment  *domain.Comment
		affected int
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		comment, err = tx.Comments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if comment.IsDeleted {
			return apperrors.Gone("comment has already been deleted")
		}
		if !actor.Is(comment.UserID) && !actor.IsAdmin() {
			return apperrors.Forbidden("only the author or an admin can delete this comment")
		}

		switch node := domain.Classify(*comment).(type) {
		case *domain.TopLevelComment:
			affected, err = tx.Comments().SoftDeleteThread(ctx, node)
		case *domain.Reply:
			affected, err = 1, tx.Comments().SoftDeleteReply(ctx, node)
		}
		if err != nil {
			return err
		}
		_, err = recomputeReviewComments(ctx, tx, comment.ReviewID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete comment: %w", err)
	}

	s.afterDelete(ctx, comment, false, affected)
	return affected, nil
}

// HardDeleteComment permanently removes a comment and, for a top-level
// comment, its replies.
func (s *CommentService) HardDeleteComment(ctx context.Context, actor *auth.Identity, id string) (int, error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return 0, err
	}

	var (
		comment  *domain.Comment
		affected int
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		comment, err = tx.Comments().GetByID(ctx, id)
		if err != nil {
			return err
		}

		switch node := domain.Classify(*comment).(type) {
		case *domain.TopLevelComment:
			affected, err = tx.Comments().HardDeleteThread(ctx, node)
		case *domain.Reply:
			affected, err = 1, tx.Comments().HardDeleteReply(ctx, node)
		}
		if err != nil {
			return err
		}
		_, err = recomputeReviewComments(ctx, tx, comment.ReviewID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("hard delete comment: %w", err)
	}

	s.afterDelete(ctx, comment, true, affected)
	return affected, nil
}

func (s *CommentService) afterDelete(ctx context.Context, comment *domain.Comment, hard bool, affected int) {
	s.invalidate(ctx, comment.ReviewID)
	logPublishError(ctx, s.logger, "comment.deleted", comment.ID, s.events.CommentDeleted(ctx, comment, hard, affected))

	s.logger.InfoContext(ctx, "comment deleted",
		slog.String("comment_id", comment.ID),
		slog.String("review_id", comment.ReviewID),
		slog.Bool("hard", hard),
		slog.Int("affected", affected),
	)
}

// GetCommentCount returns the number of live comments on a review.
func (s *CommentService) GetCommentCount(ctx context.Context, reviewID string) (int, error) {
	if _, err := s.store.Reviews().GetByID(ctx, reviewID); err != nil {
		return 0, fmt.Errorf("get review: %w", err)
	}
	count, err := s.store.Aggregates().CountActiveComments(ctx, reviewID)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return count, nil
}

func (s *CommentService) invalidate(ctx context.Context, reviewID string) {
	if err := s.cache.Invalidate(ctx, reviewID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate comment cache",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}
}
