package postgres

import (
	"context"
	"fmt"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/pkg/database"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

// VoteRepository implements repository.VoteRepository using PostgreSQL.
type VoteRepository struct {
	db database.DBTX
}

// NewVoteRepository creates a new PostgreSQL-backed vote repository.
func NewVoteRepository(db database.DBTX) *VoteRepository {
	return &VoteRepository{db: db}
}

// Get retrieves a user's vote on a review.
func (r *VoteRepository) Get(ctx context.Context, reviewID, userID string) (*domain.Vote, error) {
	query := `
		SELECT id, review_id, user_id, type, created_at, updated_at
		FROM votes
		WHERE review_id = $1 AND user_id = $2`

	var (
		v        domain.Vote
		voteType string
	)
	err := r.db.QueryRow(ctx, query, reviewID, userID).Scan(
		&v.ID, &v.ReviewID, &v.UserID, &voteType, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, lookupErr(err, "vote", reviewID+"/"+userID)
	}

	v.Type = domain.VoteType(voteType)
	return &v, nil
}

// Upsert stores a vote, replacing the direction of an earlier one. The
// stored id and creation time are written back to v.
func (r *VoteRepository) Upsert(ctx context.Context, v *domain.Vote) error {
	query := `
		INSERT INTO votes (id, review_id, user_id, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (review_id, user_id)
		DO UPDATE SET type = EXCLUDED.type, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		v.ID, v.ReviewID, v.UserID, string(v.Type), v.CreatedAt, v.UpdatedAt,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("review", v.ReviewID)
		}
		return fmt.Errorf("upsert vote: %w", err)
	}

	return nil
}

// Delete removes a user's vote on a review.
func (r *VoteRepository) Delete(ctx context.Context, reviewID, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM votes WHERE review_id = $1 AND user_id = $2`, reviewID, userID)
	if err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("vote", reviewID+"/"+userID)
	}

	return nil
}
