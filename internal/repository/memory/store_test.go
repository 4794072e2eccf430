package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

func seed(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	s := NewStore()
	now := time.Now().UTC()

	require.NoError(t, s.Users().Create(ctx, &domain.User{ID: "u-1", Name: "Alice", Email: "alice@example.com", Role: domain.RoleUser, Status: domain.UserStatusActive, CreatedAt: now}))
	require.NoError(t, s.Users().Create(ctx, &domain.User{ID: "u-2", Name: "Bob", Email: "bob@example.com", Role: domain.RoleUser, Status: domain.UserStatusActive, CreatedAt: now}))
	require.NoError(t, s.Categories().Create(ctx, &domain.Category{ID: "c-1", Name: "Audio", Slug: "audio", IsActive: true}))
	require.NoError(t, s.Products().Create(ctx, &domain.Product{ID: "p-1", Title: "Headphones", Slug: "headphones", CategoryID: "c-1", IsActive: true, CreatedAt: now}))
	return s, ctx
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s, ctx := seed(t)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		require.NoError(t, tx.Reviews().Create(ctx, &domain.Review{ID: "r-1", ProductID: "p-1", UserID: "u-1", Rating: 5}))
		require.NoError(t, tx.Aggregates().SetProductRating(ctx, "p-1", domain.RatingStats{NumReviews: 1, Ratings: 5}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Reviews().GetByID(ctx, "r-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	p, err := s.Products().GetByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Zero(t, p.NumReviews)
}

func TestWithinTx_Commits(t *testing.T) {
	s, ctx := seed(t)

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return tx.WithinTx(ctx, func(ctx context.Context, inner repository.Store) error {
			return inner.Reviews().Create(ctx, &domain.Review{ID: "r-1", ProductID: "p-1", UserID: "u-1", Rating: 5})
		})
	})
	require.NoError(t, err)

	rv, err := s.Reviews().GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", rv.Author.Name)
	assert.Equal(t, "headphones", rv.Product.Slug)
}

func TestReviews_DuplicateAndCascade(t *testing.T) {
	s, ctx := seed(t)

	require.NoError(t, s.Reviews().Create(ctx, &domain.Review{ID: "r-1", ProductID: "p-1", UserID: "u-1", Rating: 4}))
	err := s.Reviews().Create(ctx, &domain.Review{ID: "r-2", ProductID: "p-1", UserID: "u-1", Rating: 2})
	assert.Equal(t, apperrors.CodeDuplicateReview, apperrors.Code(err))

	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{ID: "cm-1", ReviewID: "r-1", UserID: "u-2", Text: "agree"}))
	require.NoError(t, s.Votes().Upsert(ctx, &domain.Vote{ID: "v-1", ReviewID: "r-1", UserID: "u-2", Type: domain.VoteUp}))

	require.NoError(t, s.Reviews().Delete(ctx, "r-1"))
	_, err = s.Comments().GetByID(ctx, "cm-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Votes().Get(ctx, "r-1", "u-2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviews_Search(t *testing.T) {
	s, ctx := seed(t)
	base := time.Now().UTC()
	for i, rv := range []domain.Review{
		{ID: "r-1", UserID: "u-1", Rating: 5, Title: "Great bass", Status: domain.ReviewStatusPublished, UpvoteCount: 1},
		{ID: "r-2", UserID: "u-2", Rating: 2, Title: "Too quiet", Status: domain.ReviewStatusPublished, UpvoteCount: 7},
	} {
		rv.ProductID = "p-1"
		rv.Description = "headphones review"
		rv.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Reviews().Create(ctx, &rv))
	}

	published := []domain.ReviewStatus{domain.ReviewStatusPublished}

	items, total, err := s.Reviews().Search(ctx, repository.ReviewFilter{Statuses: published})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "r-2", items[0].ID, "newest first by default")

	items, _, err = s.Reviews().Search(ctx, repository.ReviewFilter{Statuses: published, SortBy: domain.SortByRating, Order: domain.OrderAsc})
	require.NoError(t, err)
	assert.Equal(t, "r-2", items[0].ID)

	items, _, err = s.Reviews().Search(ctx, repository.ReviewFilter{Statuses: published, SortBy: domain.SortByVotes})
	require.NoError(t, err)
	assert.Equal(t, "r-2", items[0].ID)

	items, total, err = s.Reviews().Search(ctx, repository.ReviewFilter{Statuses: published, Keyword: "BASS"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "r-1", items[0].ID)

	items, total, err = s.Reviews().Search(ctx, repository.ReviewFilter{Statuses: published, CategoryID: "c-1", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "r-1", items[0].ID)

	_, total, err = s.Reviews().Search(ctx, repository.ReviewFilter{Statuses: []domain.ReviewStatus{domain.ReviewStatusPending}})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestReviews_Search_OutOfRangeOffset(t *testing.T) {
	s, ctx := seed(t)
	require.NoError(t, s.Reviews().Create(ctx, &domain.Review{ID: "r-1", ProductID: "p-1", UserID: "u-1", Rating: 5}))

	items, total, err := s.Reviews().Search(ctx, repository.ReviewFilter{Limit: 10, Offset: -116})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)

	items, total, err = s.Reviews().Search(ctx, repository.ReviewFilter{Limit: 10, Offset: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, items)
}

func TestComments_UpdateTextRefusesDeleted(t *testing.T) {
	s, ctx := seed(t)
	require.NoError(t, s.Reviews().Create(ctx, &domain.Review{ID: "r-1", ProductID: "p-1", UserID: "u-1", Rating: 4}))
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{ID: "cm-1", ReviewID: "r-1", UserID: "u-2", Text: "top"}))

	_, err := s.Comments().SoftDeleteThread(ctx, classifyTop(t, s, "cm-1"))
	require.NoError(t, err)

	err = s.Comments().UpdateText(ctx, "cm-1", "edited", time.Now().UTC())
	assert.ErrorIs(t, err, apperrors.ErrGone)
	assert.ErrorIs(t, s.Comments().UpdateText(ctx, "cm-404", "edited", time.Now().UTC()), apperrors.ErrNotFound)
}

func TestComments_ThreadCascade(t *testing.T) {
	s, ctx := seed(t)
	require.NoError(t, s.Reviews().Create(ctx, &domain.Review{ID: "r-1", ProductID: "p-1", UserID: "u-1", Rating: 4}))

	parent := "cm-1"
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{ID: "cm-1", ReviewID: "r-1", UserID: "u-2", Text: "top"}))
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{ID: "cm-2", ReviewID: "r-1", UserID: "u-1", Text: "reply", ParentID: &parent}))
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{ID: "cm-3", ReviewID: "r-1", UserID: "u-2", Text: "other"}))

	got, err := s.Comments().GetByID(ctx, "cm-2")
	require.NoError(t, err)
	require.NotNil(t, got.Parent)
	assert.Equal(t, "top", got.Parent.Text)

	top := classifyTop(t, s, "cm-1")
	n, err := s.Comments().SoftDeleteThread(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.Aggregates().CountActiveComments(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	n, err = s.Comments().HardDeleteThread(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func classifyTop(t *testing.T, s *Store, id string) *domain.TopLevelComment {
	t.Helper()
	c, err := s.Comments().GetByID(context.Background(), id)
	require.NoError(t, err)
	top, ok := domain.Classify(*c).(*domain.TopLevelComment)
	require.True(t, ok)
	return top
}

func TestUsers_SoftDeleteHidesUser(t *testing.T) {
	s, ctx := seed(t)

	err := s.Users().Create(ctx, &domain.User{ID: "u-3", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	require.NoError(t, s.Users().SoftDelete(ctx, "u-1"))
	_, err = s.Users().GetByID(ctx, "u-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Users().GetByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	users, total, err := s.Users().List(ctx, repository.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "u-2", users[0].ID)
}

func TestProducts_UpdateKeepsAggregates(t *testing.T) {
	s, ctx := seed(t)
	require.NoError(t, s.Aggregates().SetProductRating(ctx, "p-1", domain.RatingStats{NumReviews: 3, Ratings: 4.3}))

	p := &domain.Product{ID: "p-1", Title: "Headphones v2", Slug: "headphones", CategoryID: "c-1", Ratings: 1, NumReviews: 99}
	require.NoError(t, s.Products().Update(ctx, p))

	got, err := s.Products().GetByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Headphones v2", got.Title)
	assert.Equal(t, 3, got.NumReviews)
	assert.Equal(t, 4.3, got.Ratings)

	err = s.Categories().Delete(ctx, "c-1")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
