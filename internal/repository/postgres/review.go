package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	"github.com/kader009/trustedge-backend/pkg/database"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

// reviewSelect joins the author and product summaries onto every review read.
const reviewSelect = `
		SELECT r.id, r.product_id, r.user_id, r.rating, r.title, r.description, r.images, r.status,
		       r.moderation_reason, r.is_premium, r.price, r.upvote_count, r.downvote_count, r.comment_count,
		       r.created_at, r.updated_at,
		       u.name, u.email, u.image, p.title, p.slug`

const reviewFrom = `
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		JOIN products p ON p.id = r.product_id`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	db database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a new review. The (product_id, user_id) unique index turns
// a concurrent second review into DUPLICATE_REVIEW.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	query := `
		INSERT INTO reviews (id, product_id, user_id, rating, title, description, images, status,
		                     moderation_reason, is_premium, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		rv.ID,
		rv.ProductID,
		rv.UserID,
		rv.Rating,
		rv.Title,
		rv.Description,
		textArray(rv.Images),
		string(rv.Status),
		rv.ModerationReason,
		rv.IsPremium,
		rv.Price,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return apperrors.Conflict(apperrors.CodeDuplicateReview, "you have already reviewed this product")
		case database.IsForeignKeyViolation(err):
			return apperrors.NotFound("product", rv.ProductID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a populated review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := reviewSelect + reviewFrom + `
		WHERE r.id = $1`

	rv, err := scanReview(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, lookupErr(err, "review", id)
	}
	return rv, nil
}

// GetByProductAndUser retrieves the review a user wrote for a product.
func (r *ReviewRepository) GetByProductAndUser(ctx context.Context, productID, userID string) (*domain.Review, error) {
	query := reviewSelect + reviewFrom + `
		WHERE r.product_id = $1 AND r.user_id = $2`

	rv, err := scanReview(r.db.QueryRow(ctx, query, productID, userID))
	if err != nil {
		return nil, lookupErr(err, "review", productID+"/"+userID)
	}
	return rv, nil
}

// Update writes the authored fields of a review.
func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) error {
	query := `
		UPDATE reviews
		SET rating = $2, title = $3, description = $4, images = $5, is_premium = $6, price = $7, updated_at = $8
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		rv.ID,
		rv.Rating,
		rv.Title,
		rv.Description,
		textArray(rv.Images),
		rv.IsPremium,
		rv.Price,
		rv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", rv.ID)
	}

	return nil
}

// UpdateModeration writes the moderation status and reason.
func (r *ReviewRepository) UpdateModeration(ctx context.Context, id string, status domain.ReviewStatus, reason string, at time.Time) error {
	query := `UPDATE reviews SET status = $2, moderation_reason = $3, updated_at = $4 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, string(status), reason, at)
	if err != nil {
		return fmt.Errorf("update review moderation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}

	return nil
}

// Delete removes a review. Comments and votes cascade.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}

	return nil
}

var reviewSortColumns = map[string]string{
	domain.SortByDate:   "r.created_at",
	domain.SortByRating: "r.rating",
	domain.SortByVotes:  "r.upvote_count",
}

// buildReviewSearch renders the WHERE and ORDER BY clauses of a search and
// returns them with their arguments. Placeholders start at $1.
func buildReviewSearch(f repository.ReviewFilter) (where, orderBy string, args []any) {
	var conditions []string
	argIndex := 1

	add := func(cond string, arg any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIndex))
		args = append(args, arg)
		argIndex++
	}

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("r.status = ANY($%d)", statuses)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		conditions = append(conditions, fmt.Sprintf(`(r.title ILIKE $%d ESCAPE '\' OR r.description ILIKE $%d ESCAPE '\')`, argIndex, argIndex))
		args = append(args, containsPattern(kw))
		argIndex++
	}
	if f.ProductID != "" {
		add("r.product_id = $%d", f.ProductID)
	}
	if f.UserID != "" {
		add("r.user_id = $%d", f.UserID)
	}
	if f.CategoryID != "" {
		add("p.category_id = $%d", f.CategoryID)
	}
	if f.Rating != nil {
		add("r.rating = $%d", *f.Rating)
	}
	if f.IsPremium != nil {
		add("r.is_premium = $%d", *f.IsPremium)
	}

	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	column, ok := reviewSortColumns[f.SortBy]
	if !ok {
		column = reviewSortColumns[domain.SortByDate]
	}
	dir := "DESC"
	if f.Order == domain.OrderAsc {
		dir = "ASC"
	}
	orderBy = fmt.Sprintf("ORDER BY %s %s, r.created_at DESC, r.id", column, dir)
	if column == reviewSortColumns[domain.SortByDate] {
		orderBy = fmt.Sprintf("ORDER BY r.created_at %s, r.id", dir)
	}

	return where, orderBy, args
}

// Search returns one page of matching reviews and the total match count.
func (r *ReviewRepository) Search(ctx context.Context, f repository.ReviewFilter) (reviews []domain.Review, total int, err error) {
	where, orderBy, args := buildReviewSearch(f)
	n := len(args)
	query := reviewSelect + `, count(*) OVER() AS total_count` + reviewFrom + `
		` + where + `
		` + orderBy + fmt.Sprintf(`
		LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search reviews: %w", err)
	}
	defer rows.Close()

	reviews = []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}
	rows.Close()

	if len(reviews) == 0 && f.Offset > 0 {
		total, err = countMatches(ctx, r.db, reviewFrom+" "+where, args[:n])
		if err != nil {
			return nil, 0, err
		}
	}

	return reviews, total, nil
}

func scanReview(row rowScanner, extra ...any) (*domain.Review, error) {
	var (
		rv      domain.Review
		status  string
		author  domain.UserSummary
		product domain.ProductSummary
	)

	dest := []any{
		&rv.ID,
		&rv.ProductID,
		&rv.UserID,
		&rv.Rating,
		&rv.Title,
		&rv.Description,
		&rv.Images,
		&status,
		&rv.ModerationReason,
		&rv.IsPremium,
		&rv.Price,
		&rv.UpvoteCount,
		&rv.DownvoteCount,
		&rv.CommentCount,
		&rv.CreatedAt,
		&rv.UpdatedAt,
		&author.Name,
		&author.Email,
		&author.Image,
		&product.Title,
		&product.Slug,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	rv.Status = domain.ReviewStatus(status)
	if rv.Images == nil {
		rv.Images = []string{}
	}
	author.ID = rv.UserID
	product.ID = rv.ProductID
	rv.Author = &author
	rv.Product = &product
	return &rv, nil
}
