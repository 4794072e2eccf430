package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/domain"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
	"github.com/kader009/trustedge-backend/pkg/pagination"
)

func TestCategoryService(t *testing.T) {
	f := newFixture(t)
	svc := NewCategoryService(f.store, newTestLogger())
	staff := &auth.Identity{UserID: "u-staff", Role: domain.RoleStaff}

	_, err := svc.CreateCategory(f.ctx, staff, CategoryInput{Name: ptr("Home Appliances")})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	category, err := svc.CreateCategory(f.ctx, f.admin, CategoryInput{Name: ptr("Home Appliances")})
	require.NoError(t, err)
	assert.Equal(t, "home-appliances", category.Slug)
	assert.True(t, category.IsActive)

	_, err = svc.CreateCategory(f.ctx, f.admin, CategoryInput{Name: ptr("home appliances")})
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))

	_, err = svc.UpdateCategory(f.ctx, f.admin, category.ID, CategoryInput{IsActive: ptr(false)})
	require.NoError(t, err)

	active, err := svc.ListActiveCategories(f.ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, f.category.ID, active[0].ID)

	all, err := svc.ListAllCategories(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = svc.DeleteCategory(f.ctx, f.admin, f.category.ID)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	require.NoError(t, svc.DeleteCategory(f.ctx, f.admin, category.ID))
}

func TestProductService(t *testing.T) {
	f := newFixture(t)
	svc := NewProductService(f.store, newTestLogger())
	staff := &auth.Identity{UserID: "u-staff", Role: domain.RoleStaff}

	_, err := svc.CreateProduct(f.ctx, f.alice, ProductInput{Title: ptr("Case"), Price: ptr(int64(1500)), CategoryID: &f.category.ID})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = svc.CreateProduct(f.ctx, staff, ProductInput{Title: ptr("Case"), Price: ptr(int64(0)), CategoryID: &f.category.ID})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.CreateProduct(f.ctx, staff, ProductInput{Title: ptr("Case"), Price: ptr(int64(1500)), DiscountPrice: ptr(int64(2000)), CategoryID: &f.category.ID})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	product, err := svc.CreateProduct(f.ctx, staff, ProductInput{
		Title:      ptr("Leather Case"),
		Price:      ptr(int64(1500)),
		CategoryID: &f.category.ID,
		Tags:       []string{"accessory"},
	})
	require.NoError(t, err)
	assert.Equal(t, "leather-case", product.Slug)
	assert.Equal(t, staff.UserID, product.CreatedBy)

	byID, err := svc.GetProduct(f.ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, byID.ID)

	bySlug, err := svc.GetProduct(f.ctx, "leather-case")
	require.NoError(t, err)
	assert.Equal(t, product.ID, bySlug.ID)

	list, err := svc.ListProducts(f.ctx, "", pagination.NewParams(1, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)

	require.NoError(t, svc.DeleteProduct(f.ctx, f.admin, product.ID))
	_, err = svc.GetProduct(f.ctx, product.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateProduct_KeepsRatingAggregates(t *testing.T) {
	f := newFixture(t)
	svc := NewProductService(f.store, newTestLogger())
	f.createReview(t, f.alice, 5)
	f.createReview(t, f.bob, 2)

	updated, err := svc.UpdateProduct(f.ctx, f.admin, f.product.ID, ProductInput{Title: ptr("Pixel 9 Pro"), Stock: ptr(7)})

	require.NoError(t, err)
	assert.Equal(t, "pixel-9-pro", updated.Slug)
	count, rating := f.productStats(t)
	assert.Equal(t, 2, count)
	assert.Equal(t, 3.5, rating)
}
