package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

type reviewRepo struct{ s *Store }

func (d *data) populateReview(rv domain.Review) domain.Review {
	rv.Images = cloneStrings(rv.Images)
	if u, ok := d.users[rv.UserID]; ok {
		rv.Author = u.Summary()
	}
	if p, ok := d.products[rv.ProductID]; ok {
		rv.Product = p.Summary()
	}
	return rv
}

// deleteReview removes a review and everything hanging off it.
func (d *data) deleteReview(id string) {
	for cid, c := range d.comments {
		if c.ReviewID == id {
			delete(d.comments, cid)
		}
	}
	for key, v := range d.votes {
		if v.ReviewID == id {
			delete(d.votes, key)
		}
	}
	delete(d.reviews, id)
}

func (r *reviewRepo) Create(_ context.Context, rv *domain.Review) error {
	defer r.s.lock()()
	for _, other := range r.s.d.reviews {
		if other.ProductID == rv.ProductID && other.UserID == rv.UserID {
			return apperrors.Conflict(apperrors.CodeDuplicateReview, "you have already reviewed this product")
		}
	}
	if _, ok := r.s.d.products[rv.ProductID]; !ok {
		return apperrors.NotFound("product", rv.ProductID)
	}
	stored := *rv
	stored.Images = cloneStrings(rv.Images)
	stored.Author, stored.Product = nil, nil
	r.s.d.reviews[rv.ID] = stored
	r.s.d.track(rv.ID)
	return nil
}

func (r *reviewRepo) GetByID(_ context.Context, id string) (*domain.Review, error) {
	defer r.s.lock()()
	rv, ok := r.s.d.reviews[id]
	if !ok {
		return nil, apperrors.NotFound("review", id)
	}
	rv = r.s.d.populateReview(rv)
	return &rv, nil
}

func (r *reviewRepo) GetByProductAndUser(_ context.Context, productID, userID string) (*domain.Review, error) {
	defer r.s.lock()()
	for _, rv := range r.s.d.reviews {
		if rv.ProductID == productID && rv.UserID == userID {
			rv = r.s.d.populateReview(rv)
			return &rv, nil
		}
	}
	return nil, apperrors.NotFound("review", productID+"/"+userID)
}

func (r *reviewRepo) Update(_ context.Context, rv *domain.Review) error {
	defer r.s.lock()()
	existing, ok := r.s.d.reviews[rv.ID]
	if !ok {
		return apperrors.NotFound("review", rv.ID)
	}
	existing.Rating = rv.Rating
	existing.Title = rv.Title
	existing.Description = rv.Description
	existing.Images = cloneStrings(rv.Images)
	existing.IsPremium = rv.IsPremium
	existing.Price = rv.Price
	existing.UpdatedAt = rv.UpdatedAt
	r.s.d.reviews[rv.ID] = existing
	return nil
}

func (r *reviewRepo) UpdateModeration(_ context.Context, id string, status domain.ReviewStatus, reason string, at time.Time) error {
	defer r.s.lock()()
	existing, ok := r.s.d.reviews[id]
	if !ok {
		return apperrors.NotFound("review", id)
	}
	existing.Status = status
	existing.ModerationReason = reason
	existing.UpdatedAt = at
	r.s.d.reviews[id] = existing
	return nil
}

func (r *reviewRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.d.reviews[id]; !ok {
		return apperrors.NotFound("review", id)
	}
	r.s.d.deleteReview(id)
	return nil
}

func (r *reviewRepo) Search(_ context.Context, f repository.ReviewFilter) ([]domain.Review, int, error) {
	defer r.s.lock()()
	keyword := strings.ToLower(strings.TrimSpace(f.Keyword))

	var out []domain.Review
	for _, rv := range r.s.d.reviews {
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, rv.Status) {
			continue
		}
		if f.ProductID != "" && rv.ProductID != f.ProductID {
			continue
		}
		if f.UserID != "" && rv.UserID != f.UserID {
			continue
		}
		if f.CategoryID != "" && r.s.d.products[rv.ProductID].CategoryID != f.CategoryID {
			continue
		}
		if f.Rating != nil && rv.Rating != *f.Rating {
			continue
		}
		if f.IsPremium != nil && rv.IsPremium != *f.IsPremium {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(rv.Title), keyword) &&
			!strings.Contains(strings.ToLower(rv.Description), keyword) {
			continue
		}
		out = append(out, r.s.d.populateReview(rv))
	}

	// Newest first is the tie breaker for every sort key.
	newestFirst(r.s.d, out, func(rv domain.Review) (time.Time, string) { return rv.CreatedAt, rv.ID })
	asc := f.Order == domain.OrderAsc
	switch f.SortBy {
	case domain.SortByRating:
		sort.SliceStable(out, func(i, j int) bool {
			if asc {
				return out[i].Rating < out[j].Rating
			}
			return out[i].Rating > out[j].Rating
		})
	case domain.SortByVotes:
		sort.SliceStable(out, func(i, j int) bool {
			if asc {
				return out[i].UpvoteCount < out[j].UpvoteCount
			}
			return out[i].UpvoteCount > out[j].UpvoteCount
		})
	default:
		if asc {
			oldestFirst(r.s.d, out, func(rv domain.Review) (time.Time, string) { return rv.CreatedAt, rv.ID })
		}
	}

	return paginate(out, f.Offset, f.Limit), len(out), nil
}

func containsStatus(set []domain.ReviewStatus, s domain.ReviewStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

type voteRepo struct{ s *Store }

func voteKey(reviewID, userID string) string { return reviewID + "/" + userID }

func (r *voteRepo) Get(_ context.Context, reviewID, userID string) (*domain.Vote, error) {
	defer r.s.lock()()
	v, ok := r.s.d.votes[voteKey(reviewID, userID)]
	if !ok {
		return nil, apperrors.NotFound("vote", voteKey(reviewID, userID))
	}
	return &v, nil
}

func (r *voteRepo) Upsert(_ context.Context, v *domain.Vote) error {
	defer r.s.lock()()
	if _, ok := r.s.d.reviews[v.ReviewID]; !ok {
		return apperrors.NotFound("review", v.ReviewID)
	}
	key := voteKey(v.ReviewID, v.UserID)
	if existing, ok := r.s.d.votes[key]; ok {
		v.ID = existing.ID
		v.CreatedAt = existing.CreatedAt
	}
	r.s.d.votes[key] = *v
	return nil
}

func (r *voteRepo) Delete(_ context.Context, reviewID, userID string) error {
	defer r.s.lock()()
	key := voteKey(reviewID, userID)
	if _, ok := r.s.d.votes[key]; !ok {
		return apperrors.NotFound("vote", key)
	}
	delete(r.s.d.votes, key)
	return nil
}

type aggregateRepo struct{ s *Store }

// The Lock methods only check existence; the store mutex is already held for
// the whole transaction.

func (r *aggregateRepo) LockProduct(_ context.Context, productID string) error {
	defer r.s.lock()()
	if _, ok := r.s.d.products[productID]; !ok {
		return apperrors.NotFound("product", productID)
	}
	return nil
}

func (r *aggregateRepo) ProductRatingStats(_ context.Context, productID string) (int, float64, error) {
	defer r.s.lock()()
	count, sum := 0, 0
	for _, rv := range r.s.d.reviews {
		if rv.ProductID == productID {
			count++
			sum += rv.Rating
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return count, float64(sum) / float64(count), nil
}

func (r *aggregateRepo) SetProductRating(_ context.Context, productID string, stats domain.RatingStats) error {
	defer r.s.lock()()
	p, ok := r.s.d.products[productID]
	if !ok {
		return apperrors.NotFound("product", productID)
	}
	p.NumReviews = stats.NumReviews
	p.Ratings = stats.Ratings
	r.s.d.products[productID] = p
	return nil
}

func (r *aggregateRepo) LockReview(_ context.Context, reviewID string) error {
	defer r.s.lock()()
	if _, ok := r.s.d.reviews[reviewID]; !ok {
		return apperrors.NotFound("review", reviewID)
	}
	return nil
}

func (r *aggregateRepo) CountActiveComments(_ context.Context, reviewID string) (int, error) {
	defer r.s.lock()()
	n := 0
	for _, c := range r.s.d.comments {
		if c.ReviewID == reviewID && !c.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (r *aggregateRepo) SetReviewCommentCount(_ context.Context, reviewID string, count int) error {
	defer r.s.lock()()
	rv, ok := r.s.d.reviews[reviewID]
	if !ok {
		return apperrors.NotFound("review", reviewID)
	}
	rv.CommentCount = count
	r.s.d.reviews[reviewID] = rv
	return nil
}

func (r *aggregateRepo) ReviewVoteTally(_ context.Context, reviewID string) (domain.VoteTally, error) {
	defer r.s.lock()()
	var t domain.VoteTally
	for _, v := range r.s.d.votes {
		if v.ReviewID != reviewID {
			continue
		}
		switch v.Type {
		case domain.VoteUp:
			t.Upvotes++
		case domain.VoteDown:
			t.Downvotes++
		}
	}
	return t, nil
}

func (r *aggregateRepo) SetReviewVoteCounts(_ context.Context, reviewID string, t domain.VoteTally) error {
	defer r.s.lock()()
	rv, ok := r.s.d.reviews[reviewID]
	if !ok {
		return apperrors.NotFound("review", reviewID)
	}
	rv.UpvoteCount = t.Upvotes
	rv.DownvoteCount = t.Downvotes
	r.s.d.reviews[reviewID] = rv
	return nil
}
