package repository

import (
	"context"
	"time"

	"github.com/kader009/trustedge-backend/internal/domain"
)

// Store groups the entity repositories over one connection or transaction.
type Store interface {
	Users() UserRepository
	Categories() CategoryRepository
	Products() ProductRepository
	Reviews() ReviewRepository
	Comments() CommentRepository
	Votes() VoteRepository
	Aggregates() AggregateRepository

	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithinTx on a transactional Store joins the open transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// UserFilter defines filter criteria for listing users.
type UserFilter struct {
	Role   string
	Status string
	Search string
	Offset int
	Limit  int
}

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	CategoryID string
	ActiveOnly bool
	Offset     int
	Limit      int
}

// ReviewFilter selects reviews for listing and search. Zero values leave a
// dimension unfiltered, except Statuses which the services always set.
type ReviewFilter struct {
	Keyword    string
	ProductID  string
	CategoryID string
	UserID     string
	Rating     *int
	IsPremium  *bool
	Statuses   []domain.ReviewStatus
	SortBy     string
	Order      string
	Offset     int
	Limit      int
}

// UserRepository defines the interface for user persistence operations.
// Soft-deleted users are invisible to every lookup.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns users matching the filter along with the total count.
	List(ctx context.Context, filter UserFilter) ([]domain.User, int, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error

	// SoftDelete flags the user deleted and inactive.
	SoftDelete(ctx context.Context, id string) error
}

// CategoryRepository defines the interface for category persistence operations.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id string) error
}

// ProductRepository defines the interface for product persistence operations.
// Update never writes the rating aggregates.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error

	// ListIDs returns the id of every product.
	ListIDs(ctx context.Context) ([]string, error)
}

// ReviewRepository defines the interface for review persistence operations.
// Reads return reviews with Author and Product populated.
type ReviewRepository interface {
	// Create inserts a review. A second review for the same product and user
	// fails with a DUPLICATE_REVIEW conflict.
	Create(ctx context.Context, review *domain.Review) error

	GetByID(ctx context.Context, id string) (*domain.Review, error)
	GetByProductAndUser(ctx context.Context, productID, userID string) (*domain.Review, error)

	// Update writes the authored fields of a review.
	Update(ctx context.Context, review *domain.Review) error

	// UpdateModeration writes the moderation status and reason.
	UpdateModeration(ctx context.Context, id string, status domain.ReviewStatus, reason string, at time.Time) error

	// Delete removes a review together with its comments and votes.
	Delete(ctx context.Context, id string) error

	// Search returns one page of reviews matching the filter and the total
	// number of matches.
	Search(ctx context.Context, filter ReviewFilter) ([]domain.Review, int, error)
}

// CommentRepository defines the interface for comment persistence
// operations. Cascading deletes take classified comments so the cascade
// never goes deeper than one level of replies.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error

	// GetByID returns a comment, deleted or not, with Author, Parent and
	// Review populated.
	GetByID(ctx context.Context, id string) (*domain.Comment, error)

	// ListTopLevel returns the live top-level comments of a review, newest
	// first.
	ListTopLevel(ctx context.Context, reviewID string) ([]domain.Comment, error)

	// ListReplies returns the live replies to the given comments, oldest
	// first.
	ListReplies(ctx context.Context, parentIDs []string) ([]domain.Comment, error)

	// ListByUser returns a user's live comments, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Comment, error)

	UpdateText(ctx context.Context, id, text string, at time.Time) error

	// SoftDeleteThread flags a top-level comment and its direct replies
	// deleted and returns how many rows changed.
	SoftDeleteThread(ctx context.Context, top *domain.TopLevelComment) (int, error)
	SoftDeleteReply(ctx context.Context, reply *domain.Reply) error

	// HardDeleteThread removes a top-level comment and its direct replies
	// and returns how many rows were removed.
	HardDeleteThread(ctx context.Context, top *domain.TopLevelComment) (int, error)
	HardDeleteReply(ctx context.Context, reply *domain.Reply) error
}

// VoteRepository defines the interface for vote persistence operations.
type VoteRepository interface {
	Get(ctx context.Context, reviewID, userID string) (*domain.Vote, error)

	// Upsert stores the caller's vote, replacing any earlier direction.
	Upsert(ctx context.Context, vote *domain.Vote) error

	Delete(ctx context.Context, reviewID, userID string) error
}

// AggregateRepository holds one typed query per derived counter. The Lock
// methods take a row lock on the aggregate owner for the rest of the
// transaction so concurrent recomputes serialize.
type AggregateRepository interface {
	LockProduct(ctx context.Context, productID string) error
	ProductRatingStats(ctx context.Context, productID string) (count int, mean float64, err error)
	SetProductRating(ctx context.Context, productID string, stats domain.RatingStats) error

	LockReview(ctx context.Context, reviewID string) error
	CountActiveComments(ctx context.Context, reviewID string) (int, error)
	SetReviewCommentCount(ctx context.Context, reviewID string, count int) error
	ReviewVoteTally(ctx context.Context, reviewID string) (domain.VoteTally, error)
	SetReviewVoteCounts(ctx context.Context, reviewID string, tally domain.VoteTally) error
}
