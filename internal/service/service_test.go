package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository/memory"
)

// --- Mock Event Publisher ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) ReviewCreated(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockEvents) ReviewUpdated(ctx context.Context, r *domain.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockEvents) ReviewDeleted(ctx context.Context, r *domain.Review, deletedBy string) error {
	return m.Called(ctx, r, deletedBy).Error(0)
}

func (m *mockEvents) ReviewModerated(ctx context.Context, r *domain.Review, from domain.ReviewStatus) error {
	return m.Called(ctx, r, from).Error(0)
}

func (m *mockEvents) CommentCreated(ctx context.Context, c *domain.Comment) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockEvents) CommentDeleted(ctx context.Context, c *domain.Comment, hard bool, affected int) error {
	return m.Called(ctx, c, hard, affected).Error(0)
}

func (m *mockEvents) ProductRatingRecalculated(ctx context.Context, productID string, stats domain.RatingStats) error {
	return m.Called(ctx, productID, stats).Error(0)
}

// allowAll accepts any event. Expectations registered before it take
// precedence.
func (m *mockEvents) allowAll() *mockEvents {
	m.On("ReviewCreated", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("ReviewUpdated", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("ReviewDeleted", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("ReviewModerated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("CommentCreated", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("CommentDeleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("ProductRatingRecalculated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

// --- Fake Comment Cache ---

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]domain.CommentThread
	gens    map[string]int64
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string][]domain.CommentThread),
		gens:    make(map[string]int64),
	}
}

func (c *fakeCache) GetThreads(_ context.Context, reviewID string) ([]domain.CommentThread, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	threads, ok := c.entries[reviewID]
	if ok {
		c.hits++
	}
	return threads, c.gens[reviewID], ok, nil
}

func (c *fakeCache) SetThreads(_ context.Context, reviewID string, gen int64, threads []domain.CommentThread) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gens[reviewID] {
		c.entries[reviewID] = threads
	}
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, reviewID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[reviewID]++
	delete(c.entries, reviewID)
	return nil
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	events   *mockEvents
	cache    *fakeCache
	reviews  *ReviewService
	comments *CommentService
	votes    *VoteService
	recalc   *Recalculator
	product  *domain.Product
	category *domain.Category

	alice *auth.Identity
	bob   *auth.Identity
	admin *auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	events := new(mockEvents)
	return newFixtureWithEvents(t, events.allowAll())
}

func newFixtureWithEvents(t *testing.T, events *mockEvents) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	cache := newFakeCache()
	logger := newTestLogger()

	f := &fixture{
		ctx:      ctx,
		store:    store,
		events:   events,
		cache:    cache,
		reviews:  NewReviewService(store, events, cache, logger),
		comments: NewCommentService(store, events, cache, logger),
		votes:    NewVoteService(store, logger),
		recalc:   NewRecalculator(store, events, logger, 2),
		alice:    &auth.Identity{UserID: "u-alice", Role: domain.RoleUser},
		bob:      &auth.Identity{UserID: "u-bob", Role: domain.RoleUser},
		admin:    &auth.Identity{UserID: "u-admin", Role: domain.RoleAdmin},
	}

	for _, id := range []*auth.Identity{f.alice, f.bob, f.admin} {
		require.NoError(t, store.Users().Create(ctx, &domain.User{
			ID:        id.UserID,
			Name:      id.UserID,
			Email:     id.UserID + "@example.com",
			Role:      id.Role,
			Status:    domain.UserStatusActive,
			CreatedAt: time.Now().UTC(),
		}))
	}

	f.category = &domain.Category{ID: "c-1", Name: "Phones", Slug: "phones", IsActive: true}
	require.NoError(t, store.Categories().Create(ctx, f.category))
	f.product = f.addProduct(t, "p-1", "Pixel 9")
	return f
}

func (f *fixture) addProduct(t *testing.T, id, title string) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:         id,
		Title:      title,
		Slug:       id,
		Price:      49900,
		CategoryID: f.category.ID,
		Images:     []string{},
		Tags:       []string{},
		CreatedBy:  f.admin.UserID,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.store.Products().Create(f.ctx, p))
	return p
}

func (f *fixture) createReview(t *testing.T, actor *auth.Identity, rating int) *domain.Review {
	t.Helper()
	review, err := f.reviews.CreateReview(f.ctx, actor, CreateReviewInput{
		ProductID:   f.product.ID,
		Rating:      rating,
		Title:       "Solid phone",
		Description: "Battery lasts all day and the camera is great.",
	})
	require.NoError(t, err)
	return review
}

func (f *fixture) publishedReview(t *testing.T, actor *auth.Identity, rating int) *domain.Review {
	t.Helper()
	review := f.createReview(t, actor, rating)
	approved, err := f.reviews.ApproveReview(f.ctx, f.admin, review.ID)
	require.NoError(t, err)
	return approved
}

func (f *fixture) productStats(t *testing.T) (int, float64) {
	t.Helper()
	p, err := f.store.Products().GetByID(f.ctx, f.product.ID)
	require.NoError(t, err)
	return p.NumReviews, p.Ratings
}

func ptr[T any](v T) *T { return &v }
