package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleReview() *domain.Review {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Review{
		ID:          "r-1",
		ProductID:   "p-1",
		UserID:      "u-1",
		Rating:      5,
		Title:       "Great",
		Description: "Loved it",
		Images:      []string{"https://img.example.com/1.jpg"},
		Status:      domain.ReviewStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func reviewColumns() []string {
	return []string{
		"id", "product_id", "user_id", "rating", "title", "description", "images", "status",
		"moderation_reason", "is_premium", "price", "upvote_count", "downvote_count", "comment_count",
		"created_at", "updated_at", "name", "email", "image", "title", "slug",
	}
}

func reviewValues(rv *domain.Review) []any {
	return []any{
		rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Title, rv.Description, rv.Images, string(rv.Status),
		rv.ModerationReason, rv.IsPremium, rv.Price, rv.UpvoteCount, rv.DownvoteCount, rv.CommentCount,
		rv.CreatedAt, rv.UpdatedAt, "Alice", "alice@example.com", "", "Headphones", "headphones",
	}
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStore_WithinTx_Commit(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM products WHERE id = \\$1 FOR UPDATE").
		WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("p-1"))
	mock.ExpectExec("UPDATE products SET num_reviews").
		WithArgs("p-1", 2, 4.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Store) error {
		if err := tx.Aggregates().LockProduct(ctx, "p-1"); err != nil {
			return err
		}
		return tx.Aggregates().SetProductRating(ctx, "p-1", domain.RatingStats{NumReviews: 2, Ratings: 4.0})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_RollbackOnError(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Store) error {
		return tx.WithinTx(ctx, func(context.Context, repository.Store) error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Reviews
// ---------------------------------------------------------------------------

func TestReviewRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(
			rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Title, rv.Description, rv.Images,
			"pending", "", false, pgxmock.AnyArg(), rv.CreatedAt, rv.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), rv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_Duplicate(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(anyArgs(13)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "reviews_product_user_key"})

	err := repo.Create(context.Background(), sampleReview())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, apperrors.CodeDuplicateReview, apperrors.Code(err))
}

func TestReviewRepository_Create_MissingProduct(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(anyArgs(13)...).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "reviews_product_id_fkey"})

	err := repo.Create(context.Background(), sampleReview())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_GetByID_Populated(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	mock.ExpectQuery("SELECT .+ FROM reviews r\\s+JOIN users u .+ WHERE r.id = \\$1").
		WithArgs(rv.ID).
		WillReturnRows(pgxmock.NewRows(reviewColumns()).AddRow(reviewValues(rv)...))

	got, err := repo.GetByID(context.Background(), rv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusPending, got.Status)
	require.NotNil(t, got.Author)
	assert.Equal(t, "u-1", got.Author.ID)
	assert.Equal(t, "Alice", got.Author.Name)
	require.NotNil(t, got.Product)
	assert.Equal(t, "headphones", got.Product.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews r").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_UpdateModeration_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE reviews SET status").
		WithArgs("r-1", "unpublished", "spam", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateModeration(context.Background(), "r-1", domain.ReviewStatusUnpublished, "spam", at)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBuildReviewSearch(t *testing.T) {
	rating := 4
	premium := true

	where, orderBy, args := buildReviewSearch(repository.ReviewFilter{
		Keyword:    " bass ",
		CategoryID: "c-1",
		Rating:     &rating,
		IsPremium:  &premium,
		Statuses:   []domain.ReviewStatus{domain.ReviewStatusPublished},
		SortBy:     domain.SortByRating,
		Order:      domain.OrderAsc,
	})

	assert.Equal(t,
		`WHERE r.status = ANY($1) AND (r.title ILIKE $2 ESCAPE '\' OR r.description ILIKE $2 ESCAPE '\') AND p.category_id = $3 AND r.rating = $4 AND r.is_premium = $5`,
		where)
	assert.Equal(t, "ORDER BY r.rating ASC, r.created_at DESC, r.id", orderBy)
	assert.Equal(t, []any{[]string{"published"}, "%bass%", "c-1", 4, true}, args)

	_, _, args = buildReviewSearch(repository.ReviewFilter{Keyword: `100%_off\`})
	assert.Equal(t, []any{`%100\%\_off\\%`}, args)

	where, orderBy, args = buildReviewSearch(repository.ReviewFilter{SortBy: "unknown"})
	assert.Empty(t, where)
	assert.Equal(t, "ORDER BY r.created_at DESC, r.id", orderBy)
	assert.Empty(t, args)
}

func TestReviewRepository_Search(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()
	rv.Status = domain.ReviewStatusPublished

	mock.ExpectQuery("SELECT .+ count\\(\\*\\) OVER\\(\\) AS total_count .+ WHERE r.status = ANY\\(\\$1\\) .+ LIMIT \\$2 OFFSET \\$3").
		WithArgs([]string{"published"}, 10, 10).
		WillReturnRows(pgxmock.NewRows(append(reviewColumns(), "total_count")).AddRow(append(reviewValues(rv), 11)...))

	items, total, err := repo.Search(context.Background(), repository.ReviewFilter{
		Statuses: []domain.ReviewStatus{domain.ReviewStatusPublished},
		Limit:    10,
		Offset:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, items, 1)
	assert.Equal(t, "r-1", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Search_PastLastPage(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ count\\(\\*\\) OVER\\(\\) AS total_count .+ LIMIT \\$2 OFFSET \\$3").
		WithArgs([]string{"published"}, 10, 50).
		WillReturnRows(pgxmock.NewRows(append(reviewColumns(), "total_count")))
	mock.ExpectQuery("SELECT count\\(\\*\\)\\s+FROM reviews r\\s+JOIN users u .+ WHERE r.status = ANY\\(\\$1\\)$").
		WithArgs([]string{"published"}).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.Search(context.Background(), repository.ReviewFilter{
		Statuses: []domain.ReviewStatus{domain.ReviewStatusPublished},
		Limit:    10,
		Offset:   50,
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Comments
// ---------------------------------------------------------------------------

func commentColumns() []string {
	return []string{
		"id", "review_id", "user_id", "parent_id", "text", "is_deleted", "created_at", "updated_at",
		"name", "email", "image", "user_id", "text", "title", "product_id", "title", "slug",
	}
}

func TestCommentRepository_GetByID_Reply(t *testing.T) {
	mock := newMock(t)
	repo := NewCommentRepository(mock)
	now := time.Now().UTC()
	parentID := "cm-1"
	parentUser := "u-2"
	parentText := "top level"

	mock.ExpectQuery("SELECT .+ FROM comments c .+ WHERE c.id = \\$1").
		WithArgs("cm-2").
		WillReturnRows(pgxmock.NewRows(commentColumns()).AddRow(
			"cm-2", "r-1", "u-1", &parentID, "a reply", false, now, now,
			"Alice", "alice@example.com", "", &parentUser, &parentText,
			"Great", "p-1", "Headphones", "headphones",
		))

	c, err := repo.GetByID(context.Background(), "cm-2")
	require.NoError(t, err)
	require.NotNil(t, c.Parent)
	assert.Equal(t, "cm-1", c.Parent.ID)
	assert.Equal(t, "top level", c.Parent.Text)
	assert.Equal(t, "headphones", c.Review.Product.Slug)

	_, isReply := domain.Classify(*c).(*domain.Reply)
	assert.True(t, isReply)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_SoftDeleteThread(t *testing.T) {
	mock := newMock(t)
	repo := NewCommentRepository(mock)

	mock.ExpectExec("UPDATE comments\\s+SET is_deleted = TRUE.+WHERE \\(id = \\$1 OR parent_id = \\$1\\)").
		WithArgs("cm-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.SoftDeleteThread(context.Background(), &domain.TopLevelComment{Comment: domain.Comment{ID: "cm-1"}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_HardDeleteReply_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCommentRepository(mock)

	mock.ExpectExec("DELETE FROM comments WHERE id = \\$1 AND parent_id IS NOT NULL").
		WithArgs("cm-9").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.HardDeleteReply(context.Background(), &domain.Reply{Comment: domain.Comment{ID: "cm-9"}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCommentRepository_UpdateText(t *testing.T) {
	mock := newMock(t)
	repo := NewCommentRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE comments SET text = \\$2, updated_at = \\$3 WHERE id = \\$1 AND NOT is_deleted").
		WithArgs("cm-1", "edited", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("cm-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("UPDATE comments SET text").
		WithArgs("cm-404", "edited", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("cm-404").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	assert.ErrorIs(t, repo.UpdateText(context.Background(), "cm-1", "edited", at), apperrors.ErrGone)
	assert.ErrorIs(t, repo.UpdateText(context.Background(), "cm-404", "edited", at), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ListReplies_NoParents(t *testing.T) {
	mock := newMock(t)
	repo := NewCommentRepository(mock)

	replies, err := repo.ListReplies(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, replies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Aggregates
// ---------------------------------------------------------------------------

func TestAggregateRepository_ProductRatingStats(t *testing.T) {
	mock := newMock(t)
	repo := NewAggregateRepository(mock)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COALESCE\\(AVG\\(rating\\), 0\\)::float8").
		WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows([]string{"count", "avg"}).AddRow(3, 13.0/3))

	count, mean, err := repo.ProductRatingStats(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.InDelta(t, 4.333, mean, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateRepository_LockReview_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewAggregateRepository(mock)

	mock.ExpectQuery("SELECT id FROM reviews WHERE id = \\$1 FOR UPDATE").
		WithArgs("r-404").
		WillReturnError(pgx.ErrNoRows)

	err := repo.LockReview(context.Background(), "r-404")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAggregateRepository_VoteTally(t *testing.T) {
	mock := newMock(t)
	repo := NewAggregateRepository(mock)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FILTER").
		WithArgs("r-1").
		WillReturnRows(pgxmock.NewRows([]string{"up", "down"}).AddRow(4, 1))
	mock.ExpectExec("UPDATE reviews SET upvote_count").
		WithArgs("r-1", 4, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tally, err := repo.ReviewVoteTally(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.VoteTally{Upvotes: 4, Downvotes: 1}, tally)
	require.NoError(t, repo.SetReviewVoteCounts(context.Background(), "r-1", tally))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateRepository_SetReviewCommentCount(t *testing.T) {
	mock := newMock(t)
	repo := NewAggregateRepository(mock)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM comments WHERE review_id = \\$1 AND NOT is_deleted").
		WithArgs("r-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec("UPDATE reviews SET comment_count").
		WithArgs("r-1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := repo.CountActiveComments(context.Background(), "r-1")
	require.NoError(t, err)
	require.NoError(t, repo.SetReviewCommentCount(context.Background(), "r-1", n))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Votes
// ---------------------------------------------------------------------------

func TestVoteRepository_Upsert_KeepsOriginalID(t *testing.T) {
	mock := newMock(t)
	repo := NewVoteRepository(mock)
	now := time.Now().UTC()
	created := now.Add(-time.Hour)
	v := &domain.Vote{ID: "v-new", ReviewID: "r-1", UserID: "u-2", Type: domain.VoteDown, CreatedAt: now, UpdatedAt: now}

	mock.ExpectQuery("INSERT INTO votes .+ ON CONFLICT \\(review_id, user_id\\)").
		WithArgs("v-new", "r-1", "u-2", "down", now, now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("v-old", created))

	require.NoError(t, repo.Upsert(context.Background(), v))
	assert.Equal(t, "v-old", v.ID)
	assert.Equal(t, created, v.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Users, categories, products
// ---------------------------------------------------------------------------

func TestUserRepository_GetByEmail_ExcludesDeleted(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM users WHERE LOWER\\(email\\) = LOWER\\(\\$1\\) AND NOT is_deleted").
		WithArgs("gone@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "gone@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM users WHERE id = \\$1 AND NOT is_deleted").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "email", "password_hash", "phone", "address", "image",
			"role", "status", "is_deleted", "created_at", "updated_at",
		}).AddRow("u-1", "Alice", "alice@example.com", "hash", "", "", "", "admin", "active", false, now, now))

	u, err := repo.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.Equal(t, domain.UserStatusActive, u.Status)
}

func TestUserRepository_SoftDelete(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec("UPDATE users\\s+SET is_deleted = TRUE, status = 'inactive'").
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users\\s+SET is_deleted = TRUE").
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.SoftDelete(context.Background(), "u-1"))
	assert.ErrorIs(t, repo.SoftDelete(context.Background(), "u-1"), apperrors.ErrNotFound)
}

func TestUserRepository_List_EscapesSearch(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM users\s+WHERE NOT is_deleted AND \(name ILIKE \$1 ESCAPE '\\' OR email ILIKE \$1 ESCAPE '\\'\)`).
		WithArgs(`%50\%%`, 20, 20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "email", "password_hash", "phone", "address", "image",
			"role", "status", "is_deleted", "created_at", "updated_at", "total_count",
		}))
	mock.ExpectQuery(`SELECT count\(\*\) FROM users WHERE NOT is_deleted AND`).
		WithArgs(`%50\%%`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	users, total, err := repo.List(context.Background(), repository.UserFilter{Search: "50%", Limit: 20, Offset: 20})
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_Create_DuplicateSlug(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)

	mock.ExpectExec("INSERT INTO categories").
		WithArgs(anyArgs(8)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "categories_slug_key"})

	err := repo.Create(context.Background(), &domain.Category{ID: "c-1", Name: "Audio", Slug: "audio"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "slug")
}

func TestCategoryRepository_Delete_InUse(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)

	mock.ExpectExec("DELETE FROM categories").
		WithArgs("c-1").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	assert.ErrorIs(t, repo.Delete(context.Background(), "c-1"), apperrors.ErrConflict)
}

func TestProductRepository_Update_RefreshesAggregates(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	now := time.Now().UTC()
	p := &domain.Product{ID: "p-1", Title: "Headphones", Slug: "headphones", CategoryID: "c-1", Ratings: 9, NumReviews: 99, UpdatedAt: now}

	mock.ExpectQuery("UPDATE products\\s+SET title = .+ RETURNING ratings, num_reviews, created_by, created_at").
		WithArgs(anyArgs(15)...).
		WillReturnRows(pgxmock.NewRows([]string{"ratings", "num_reviews", "created_by", "created_at"}).
			AddRow(4.5, 2, "u-9", now.Add(-time.Hour)))

	require.NoError(t, repo.Update(context.Background(), p))
	assert.Equal(t, 4.5, p.Ratings)
	assert.Equal(t, 2, p.NumReviews)
	assert.Equal(t, "u-9", p.CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}
