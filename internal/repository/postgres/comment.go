package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/pkg/database"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

// commentSelect joins author, parent and review summaries onto every read.
const commentSelect = `
		SELECT c.id, c.review_id, c.user_id, c.parent_id, c.text, c.is_deleted, c.created_at, c.updated_at,
		       u.name, u.email, u.image,
		       pc.user_id, pc.text,
		       r.title, r.product_id, p.title, p.slug
		FROM comments c
		JOIN users u ON u.id = c.user_id
		LEFT JOIN comments pc ON pc.id = c.parent_id
		JOIN reviews r ON r.id = c.review_id
		JOIN products p ON p.id = r.product_id`

// CommentRepository implements repository.CommentRepository using PostgreSQL.
type CommentRepository struct {
	db database.DBTX
}

// NewCommentRepository creates a new PostgreSQL-backed comment repository.
func NewCommentRepository(db database.DBTX) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a new comment.
func (r *CommentRepository) Create(ctx context.Context, c *domain.Comment) error {
	query := `
		INSERT INTO comments (id, review_id, user_id, parent_id, text, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.ReviewID, c.UserID, c.ParentID, c.Text, c.IsDeleted, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("review", c.ReviewID)
		}
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// GetByID retrieves a comment whether or not it is deleted.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	c, err := scanComment(r.db.QueryRow(ctx, commentSelect+`
		WHERE c.id = $1`, id))
	if err != nil {
		return nil, lookupErr(err, "comment", id)
	}
	return c, nil
}

// ListTopLevel returns the live top-level comments of a review, newest first.
func (r *CommentRepository) ListTopLevel(ctx context.Context, reviewID string) ([]domain.Comment, error) {
	return r.list(ctx, commentSelect+`
		WHERE c.review_id = $1 AND c.parent_id IS NULL AND NOT c.is_deleted
		ORDER BY c.created_at DESC, c.id`, reviewID)
}

// ListReplies returns the live replies to the given comments, oldest first.
func (r *CommentRepository) ListReplies(ctx context.Context, parentIDs []string) ([]domain.Comment, error) {
	if len(parentIDs) == 0 {
		return []domain.Comment{}, nil
	}
	return r.list(ctx, commentSelect+`
		WHERE c.parent_id = ANY($1) AND NOT c.is_deleted
		ORDER BY c.created_at ASC, c.id`, parentIDs)
}

// ListByUser returns a user's live comments, newest first.
func (r *CommentRepository) ListByUser(ctx context.Context, userID string) ([]domain.Comment, error) {
	return r.list(ctx, commentSelect+`
		WHERE c.user_id = $1 AND NOT c.is_deleted
		ORDER BY c.created_at DESC, c.id`, userID)
}

func (r *CommentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Comment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comment rows: %w", err)
	}

	return comments, nil
}

// UpdateText replaces the text of a live comment. It returns a Gone error
// when the comment has been soft-deleted.
func (r *CommentRepository) UpdateText(ctx context.Context, id, text string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE comments SET text = $2, updated_at = $3 WHERE id = $1 AND NOT is_deleted`, id, text, at)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM comments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check comment: %w", err)
	}
	if exists {
		return apperrors.Gone("comment has been deleted")
	}
	return apperrors.NotFound("comment", id)
}

// SoftDeleteThread flags a top-level comment and its live replies deleted.
func (r *CommentRepository) SoftDeleteThread(ctx context.Context, top *domain.TopLevelComment) (int, error) {
	query := `
		UPDATE comments
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE (id = $1 OR parent_id = $1) AND NOT is_deleted`

	tag, err := r.db.Exec(ctx, query, top.ID)
	if err != nil {
		return 0, fmt.Errorf("soft delete comment thread: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// SoftDeleteReply flags a single reply deleted.
func (r *CommentRepository) SoftDeleteReply(ctx context.Context, reply *domain.Reply) error {
	query := `UPDATE comments SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND parent_id IS NOT NULL`

	tag, err := r.db.Exec(ctx, query, reply.ID)
	if err != nil {
		return fmt.Errorf("soft delete reply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("comment", reply.ID)
	}
	return nil
}

// HardDeleteThread removes a top-level comment and its direct replies.
func (r *CommentRepository) HardDeleteThread(ctx context.Context, top *domain.TopLevelComment) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1 OR parent_id = $1`, top.ID)
	if err != nil {
		return 0, fmt.Errorf("delete comment thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, apperrors.NotFound("comment", top.ID)
	}
	return int(tag.RowsAffected()), nil
}

// HardDeleteReply removes a single reply.
func (r *CommentRepository) HardDeleteReply(ctx context.Context, reply *domain.Reply) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1 AND parent_id IS NOT NULL`, reply.ID)
	if err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("comment", reply.ID)
	}
	return nil
}

func scanComment(row rowScanner) (*domain.Comment, error) {
	var (
		c            domain.Comment
		author       domain.UserSummary
		parentUserID *string
		parentText   *string
		review       domain.ReviewSummary
		product      domain.ProductSummary
	)

	if err := row.Scan(
		&c.ID,
		&c.ReviewID,
		&c.UserID,
		&c.ParentID,
		&c.Text,
		&c.IsDeleted,
		&c.CreatedAt,
		&c.UpdatedAt,
		&author.Name,
		&author.Email,
		&author.Image,
		&parentUserID,
		&parentText,
		&review.Title,
		&review.ProductID,
		&product.Title,
		&product.Slug,
	); err != nil {
		return nil, err
	}

	author.ID = c.UserID
	c.Author = &author
	if c.ParentID != nil && parentUserID != nil {
		c.Parent = &domain.CommentSummary{ID: *c.ParentID, UserID: *parentUserID}
		if parentText != nil {
			c.Parent.Text = *parentText
		}
	}
	review.ID = c.ReviewID
	product.ID = review.ProductID
	review.Product = &product
	c.Review = &review
	return &c, nil
}
