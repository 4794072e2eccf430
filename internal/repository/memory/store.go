// Package memory implements the repository interfaces in process memory.
// A single mutex guards all data, so transactions are serializable; a failed
// transaction restores the snapshot taken when it began.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
)

type data struct {
	users      map[string]domain.User
	categories map[string]domain.Category
	products   map[string]domain.Product
	reviews    map[string]domain.Review
	comments   map[string]domain.Comment
	votes      map[string]domain.Vote

	// seq records insertion order so listings are stable when timestamps tie.
	seq  map[string]int64
	next int64
}

func newData() *data {
	return &data{
		users:      make(map[string]domain.User),
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
		reviews:    make(map[string]domain.Review),
		comments:   make(map[string]domain.Comment),
		votes:      make(map[string]domain.Vote),
		seq:        make(map[string]int64),
	}
}

func (d *data) clone() *data {
	c := &data{
		users:      make(map[string]domain.User, len(d.users)),
		categories: make(map[string]domain.Category, len(d.categories)),
		products:   make(map[string]domain.Product, len(d.products)),
		reviews:    make(map[string]domain.Review, len(d.reviews)),
		comments:   make(map[string]domain.Comment, len(d.comments)),
		votes:      make(map[string]domain.Vote, len(d.votes)),
		seq:        make(map[string]int64, len(d.seq)),
		next:       d.next,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.reviews {
		c.reviews[k] = v
	}
	for k, v := range d.comments {
		c.comments[k] = v
	}
	for k, v := range d.votes {
		c.votes[k] = v
	}
	for k, v := range d.seq {
		c.seq[k] = v
	}
	return c
}

func (d *data) track(id string) {
	d.next++
	d.seq[id] = d.next
}

// Store is an in-memory repository.Store.
type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, d: newData()}
}

// lock takes the store mutex unless the caller already holds it through a
// transaction. The returned function releases it.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Users() repository.UserRepository           { return &userRepo{s: s} }
func (s *Store) Categories() repository.CategoryRepository  { return &categoryRepo{s: s} }
func (s *Store) Products() repository.ProductRepository     { return &productRepo{s: s} }
func (s *Store) Reviews() repository.ReviewRepository       { return &reviewRepo{s: s} }
func (s *Store) Comments() repository.CommentRepository     { return &commentRepo{s: s} }
func (s *Store) Votes() repository.VoteRepository           { return &voteRepo{s: s} }
func (s *Store) Aggregates() repository.AggregateRepository { return &aggregateRepo{s: s} }

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	tx := &Store{mu: s.mu, d: s.d, inTx: true}

	defer func() {
		if p := recover(); p != nil {
			*s.d = *snapshot
			panic(p)
		}
		if err != nil {
			*s.d = *snapshot
		}
	}()

	if err = ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	return fn(ctx, tx)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
