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

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, u *domain.User) error {
	defer r.s.lock()()
	for _, existing := range r.s.d.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
	}
	r.s.d.users[u.ID] = *u
	r.s.d.track(u.ID)
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	defer r.s.lock()()
	u, ok := r.s.d.users[id]
	if !ok || u.IsDeleted {
		return nil, apperrors.NotFound("user", id)
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.d.users {
		if !u.IsDeleted && strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperrors.NotFound("user", email)
}

func (r *userRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	defer r.s.lock()()
	search := strings.ToLower(filter.Search)
	var out []domain.User
	for _, u := range r.s.d.users {
		if u.IsDeleted {
			continue
		}
		if filter.Role != "" && string(u.Role) != filter.Role {
			continue
		}
		if filter.Status != "" && string(u.Status) != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		out = append(out, u)
	}
	newestFirst(r.s.d, out, func(u domain.User) (time.Time, string) { return u.CreatedAt, u.ID })
	return paginate(out, filter.Offset, filter.Limit), len(out), nil
}

func (r *userRepo) Update(_ context.Context, u *domain.User) error {
	defer r.s.lock()()
	existing, ok := r.s.d.users[u.ID]
	if !ok || existing.IsDeleted {
		return apperrors.NotFound("user", u.ID)
	}
	for id, other := range r.s.d.users {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
	}
	u.CreatedAt = existing.CreatedAt
	r.s.d.users[u.ID] = *u
	return nil
}

func (r *userRepo) SoftDelete(_ context.Context, id string) error {
	defer r.s.lock()()
	u, ok := r.s.d.users[id]
	if !ok || u.IsDeleted {
		return apperrors.NotFound("user", id)
	}
	u.IsDeleted = true
	u.Status = domain.UserStatusInactive
	u.UpdatedAt = time.Now().UTC()
	r.s.d.users[id] = u
	return nil
}

type categoryRepo struct{ s *Store }

func (r *categoryRepo) checkUnique(c *domain.Category) error {
	for id, other := range r.s.d.categories {
		if id == c.ID {
			continue
		}
		if strings.EqualFold(other.Name, c.Name) {
			return apperrors.AlreadyExists("category", "name", c.Name)
		}
		if other.Slug == c.Slug {
			return apperrors.AlreadyExists("category", "slug", c.Slug)
		}
	}
	return nil
}

func (r *categoryRepo) Create(_ context.Context, c *domain.Category) error {
	defer r.s.lock()()
	if err := r.checkUnique(c); err != nil {
		return err
	}
	r.s.d.categories[c.ID] = *c
	r.s.d.track(c.ID)
	return nil
}

func (r *categoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	defer r.s.lock()()
	c, ok := r.s.d.categories[id]
	if !ok {
		return nil, apperrors.NotFound("category", id)
	}
	return &c, nil
}

func (r *categoryRepo) List(_ context.Context, activeOnly bool) ([]domain.Category, error) {
	defer r.s.lock()()
	out := []domain.Category{}
	for _, c := range r.s.d.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *categoryRepo) Update(_ context.Context, c *domain.Category) error {
	defer r.s.lock()()
	existing, ok := r.s.d.categories[c.ID]
	if !ok {
		return apperrors.NotFound("category", c.ID)
	}
	if err := r.checkUnique(c); err != nil {
		return err
	}
	c.CreatedAt = existing.CreatedAt
	r.s.d.categories[c.ID] = *c
	return nil
}

func (r *categoryRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.d.categories[id]; !ok {
		return apperrors.NotFound("category", id)
	}
	for _, p := range r.s.d.products {
		if p.CategoryID == id {
			return apperrors.Conflict("", "category still has products")
		}
	}
	delete(r.s.d.categories, id)
	return nil
}

type productRepo struct{ s *Store }

func (r *productRepo) checkSlug(p *domain.Product) error {
	for id, other := range r.s.d.products {
		if id != p.ID && other.Slug == p.Slug {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
	}
	return nil
}

func copyProduct(p domain.Product) domain.Product {
	p.Images = cloneStrings(p.Images)
	p.Tags = cloneStrings(p.Tags)
	return p
}

func (r *productRepo) Create(_ context.Context, p *domain.Product) error {
	defer r.s.lock()()
	if err := r.checkSlug(p); err != nil {
		return err
	}
	if _, ok := r.s.d.categories[p.CategoryID]; !ok {
		return apperrors.InvalidInput("category does not exist")
	}
	r.s.d.products[p.ID] = copyProduct(*p)
	r.s.d.track(p.ID)
	return nil
}

func (r *productRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	defer r.s.lock()()
	p, ok := r.s.d.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	p = copyProduct(p)
	return &p, nil
}

func (r *productRepo) GetBySlug(_ context.Context, slug string) (*domain.Product, error) {
	defer r.s.lock()()
	for _, p := range r.s.d.products {
		if p.Slug == slug {
			p = copyProduct(p)
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("product", slug)
}

func (r *productRepo) List(_ context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	defer r.s.lock()()
	var out []domain.Product
	for _, p := range r.s.d.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, copyProduct(p))
	}
	newestFirst(r.s.d, out, func(p domain.Product) (time.Time, string) { return p.CreatedAt, p.ID })
	return paginate(out, filter.Offset, filter.Limit), len(out), nil
}

func (r *productRepo) Update(_ context.Context, p *domain.Product) error {
	defer r.s.lock()()
	existing, ok := r.s.d.products[p.ID]
	if !ok {
		return apperrors.NotFound("product", p.ID)
	}
	if err := r.checkSlug(p); err != nil {
		return err
	}
	if _, ok := r.s.d.categories[p.CategoryID]; !ok {
		return apperrors.InvalidInput("category does not exist")
	}
	updated := copyProduct(*p)
	updated.Ratings = existing.Ratings
	updated.NumReviews = existing.NumReviews
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	r.s.d.products[p.ID] = updated
	p.Ratings, p.NumReviews = existing.Ratings, existing.NumReviews
	return nil
}

func (r *productRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.d.products[id]; !ok {
		return apperrors.NotFound("product", id)
	}
	for rid, rv := range r.s.d.reviews {
		if rv.ProductID == id {
			r.s.d.deleteReview(rid)
		}
	}
	delete(r.s.d.products, id)
	return nil
}

func (r *productRepo) ListIDs(_ context.Context) ([]string, error) {
	defer r.s.lock()()
	ids := make([]string, 0, len(r.s.d.products))
	for id := range r.s.d.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// newestFirst orders items by creation time descending, falling back to
// insertion order.
func newestFirst[T any](d *data, items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return d.seq[idi] > d.seq[idj]
	})
}

// oldestFirst is the reverse of newestFirst.
func oldestFirst[T any](d *data, items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return d.seq[idi] < d.seq[idj]
	})
}
