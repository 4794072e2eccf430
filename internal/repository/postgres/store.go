// Package postgres implements the repository interfaces on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kader009/trustedge-backend/internal/repository"
	"github.com/kader009/trustedge-backend/pkg/database"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

// Store implements repository.Store over a pool or a single transaction.
type Store struct {
	db database.DBTX
	// beginner is nil when the Store is bound to an open transaction.
	beginner database.TxBeginner
}

var _ repository.Store = (*Store)(nil)

// NewStore creates a Store on top of a connection pool.
func NewStore(pool database.TxBeginner) *Store {
	return &Store{db: pool, beginner: pool}
}

func (s *Store) Users() repository.UserRepository { return NewUserRepository(database.Traced(s.db, "users")) }

func (s *Store) Categories() repository.CategoryRepository { return NewCategoryRepository(database.Traced(s.db, "categories")) }

func (s *Store) Products() repository.ProductRepository { return NewProductRepository(database.Traced(s.db, "products")) }

func (s *Store) Reviews() repository.ReviewRepository { return NewReviewRepository(database.Traced(s.db, "reviews")) }

func (s *Store) Comments() repository.CommentRepository { return NewCommentRepository(database.Traced(s.db, "comments")) }

func (s *Store) Votes() repository.VoteRepository { return NewVoteRepository(database.Traced(s.db, "votes")) }

func (s *Store) Aggregates() repository.AggregateRepository { return NewAggregateRepository(s.db) }

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.beginner == nil {
		return fn(ctx, s)
	}
	return database.WithTx(ctx, s.beginner, func(tx pgx.Tx) error {
		return fn(ctx, &Store{db: tx})
	})
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func lookupErr(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(resource, id)
	}
	return fmt.Errorf("get %s: %w", resource, err)
}

// countMatches counts the rows of a filtered listing. count(*) OVER() yields
// nothing when the requested page lies past the last match.
func countMatches(ctx context.Context, db database.DBTX, fromWhere string, args []any) (int, error) {
	var total int
	if err := db.QueryRow(ctx, "SELECT count(*) "+fromWhere, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern that matches s literally anywhere.
// Statements using it must declare ESCAPE '\'.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// textArray keeps NOT NULL array columns from receiving NULL.
func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
