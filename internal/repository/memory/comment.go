package memory

import (
	"context"
	"time"

	"github.com/kader009/trustedge-backend/internal/domain"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

type commentRepo struct{ s *Store }

func (d *data) populateComment(c domain.Comment) domain.Comment {
	if u, ok := d.users[c.UserID]; ok {
		c.Author = u.Summary()
	}
	if c.ParentID != nil {
		if p, ok := d.comments[*c.ParentID]; ok {
			c.Parent = &domain.CommentSummary{ID: p.ID, UserID: p.UserID, Text: p.Text}
		}
	}
	if rv, ok := d.reviews[c.ReviewID]; ok {
		c.Review = &domain.ReviewSummary{ID: rv.ID, Title: rv.Title, ProductID: rv.ProductID}
		if p, ok := d.products[rv.ProductID]; ok {
			c.Review.Product = p.Summary()
		}
	}
	return c
}

func (r *commentRepo) Create(_ context.Context, c *domain.Comment) error {
	defer r.s.lock()()
	if _, ok := r.s.d.reviews[c.ReviewID]; !ok {
		return apperrors.NotFound("review", c.ReviewID)
	}
	stored := *c
	stored.Author, stored.Parent, stored.Review = nil, nil, nil
	r.s.d.comments[c.ID] = stored
	r.s.d.track(c.ID)
	return nil
}

func (r *commentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	defer r.s.lock()()
	c, ok := r.s.d.comments[id]
	if !ok {
		return nil, apperrors.NotFound("comment", id)
	}
	c = r.s.d.populateComment(c)
	return &c, nil
}

func (r *commentRepo) ListTopLevel(_ context.Context, reviewID string) ([]domain.Comment, error) {
	defer r.s.lock()()
	out := []domain.Comment{}
	for _, c := range r.s.d.comments {
		if c.ReviewID == reviewID && c.ParentID == nil && !c.IsDeleted {
			out = append(out, r.s.d.populateComment(c))
		}
	}
	newestFirst(r.s.d, out, commentKey)
	return out, nil
}

func (r *commentRepo) ListReplies(_ context.Context, parentIDs []string) ([]domain.Comment, error) {
	defer r.s.lock()()
	parents := make(map[string]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = struct{}{}
	}
	out := []domain.Comment{}
	for _, c := range r.s.d.comments {
		if c.ParentID == nil || c.IsDeleted {
			continue
		}
		if _, ok := parents[*c.ParentID]; ok {
			out = append(out, r.s.d.populateComment(c))
		}
	}
	oldestFirst(r.s.d, out, commentKey)
	return out, nil
}

func (r *commentRepo) ListByUser(_ context.Context, userID string) ([]domain.Comment, error) {
	defer r.s.lock()()
	out := []domain.Comment{}
	for _, c := range r.s.d.comments {
		if c.UserID == userID && !c.IsDeleted {
			out = append(out, r.s.d.populateComment(c))
		}
	}
	newestFirst(r.s.d, out, commentKey)
	return out, nil
}

func (r *commentRepo) UpdateText(_ context.Context, id, text string, at time.Time) error {
	defer r.s.lock()()
	c, ok := r.s.d.comments[id]
	if !ok {
		return apperrors.NotFound("comment", id)
	}
	if c.IsDeleted {
		return apperrors.Gone("comment has been deleted")
	}
	c.Text = text
	c.UpdatedAt = at
	r.s.d.comments[id] = c
	return nil
}

func (r *commentRepo) SoftDeleteThread(_ context.Context, top *domain.TopLevelComment) (int, error) {
	defer r.s.lock()()
	if _, ok := r.s.d.comments[top.ID]; !ok {
		return 0, apperrors.NotFound("comment", top.ID)
	}
	now := time.Now().UTC()
	n := 0
	for id, c := range r.s.d.comments {
		if c.IsDeleted {
			continue
		}
		if id == top.ID || (c.ParentID != nil && *c.ParentID == top.ID) {
			c.IsDeleted = true
			c.UpdatedAt = now
			r.s.d.comments[id] = c
			n++
		}
	}
	return n, nil
}

func (r *commentRepo) SoftDeleteReply(_ context.Context, reply *domain.Reply) error {
	defer r.s.lock()()
	c, ok := r.s.d.comments[reply.ID]
	if !ok {
		return apperrors.NotFound("comment", reply.ID)
	}
	c.IsDeleted = true
	c.UpdatedAt = time.Now().UTC()
	r.s.d.comments[reply.ID] = c
	return nil
}

func (r *commentRepo) HardDeleteThread(_ context.Context, top *domain.TopLevelComment) (int, error) {
	defer r.s.lock()()
	if _, ok := r.s.d.comments[top.ID]; !ok {
		return 0, apperrors.NotFound("comment", top.ID)
	}
	n := 0
	for id, c := range r.s.d.comments {
		if id == top.ID || (c.ParentID != nil && *c.ParentID == top.ID) {
			delete(r.s.d.comments, id)
			n++
		}
	}
	return n, nil
}

func (r *commentRepo) HardDeleteReply(_ context.Context, reply *domain.Reply) error {
	defer r.s.lock()()
	if _, ok := r.s.d.comments[reply.ID]; !ok {
		return apperrors.NotFound("comment", reply.ID)
	}
	delete(r.s.d.comments, reply.ID)
	return nil
}

func commentKey(c domain.Comment) (time.Time, string) { return c.CreatedAt, c.ID }
