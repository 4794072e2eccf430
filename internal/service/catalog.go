package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kader009/trustedge-backend/internal/auth"
	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
	"github.com/kader009/trustedge-backend/pkg/pagination"
	"github.com/kader009/trustedge-backend/pkg/slug"
)

// CategoryService manages product categories.
type CategoryService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(store repository.Store, logger *slog.Logger) *CategoryService {
	return &CategoryService{store: store, logger: logger}
}

// CategoryInput holds the editable fields of a category. Nil fields are
// left unchanged on update.
type CategoryInput struct {
	Name        *string
	Description *string
	Image       *string
	IsActive    *bool
}

// CreateCategory adds a category; its slug is derived from the name.
func (s *CategoryService) CreateCategory(ctx context.Context, actor *auth.Identity, input CategoryInput) (*domain.Category, error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if input.Name == nil {
		return nil, apperrors.InvalidInput("category name is required")
	}

	now := time.Now().UTC()
	category := &domain.Category{
		ID:        uuid.New().String(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyCategoryInput(category, input); err != nil {
		return nil, err
	}

	if err := s.store.Categories().Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", category.ID),
		slog.String("slug", category.Slug),
	)
	return category, nil
}

func applyCategoryInput(c *domain.Category, input CategoryInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return apperrors.InvalidInput("category name is required")
		}
		c.Name = name
		c.Slug = slug.Generate(name)
		if c.Slug == "" {
			return apperrors.InvalidInput("category name must contain letters or digits")
		}
	}
	if input.Description != nil {
		c.Description = *input.Description
	}
	if input.Image != nil {
		c.Image = *input.Image
	}
	if input.IsActive != nil {
		c.IsActive = *input.IsActive
	}
	return nil
}

// ListActiveCategories returns the categories shown to shoppers.
func (s *CategoryService) ListActiveCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.store.Categories().List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// ListAllCategories returns every category. Admin only.
func (s *CategoryService) ListAllCategories(ctx context.Context, actor *auth.Identity) ([]domain.Category, error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	categories, err := s.store.Categories().List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// GetCategory returns one category. Admin only.
func (s *CategoryService) GetCategory(ctx context.Context, actor *auth.Identity, id string) (*domain.Category, error) {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	category, err := s.store.Categories().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return category, nil
}

// UpdateCategory edits a category. Renaming also changes the slug.
func (s *CategoryService) UpdateCategory(ctx context.Context, actor *auth.Identity, id string, input CategoryInput) (*domain.Category, error) {
	category, err := s.GetCategory(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := applyCategoryInput(category, input); err != nil {
		return nil, err
	}
	category.UpdatedAt = time.Now().UTC()

	if err := s.store.Categories().Update(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.logger.InfoContext(ctx, "category updated",
		slog.String("category_id", category.ID),
	)
	return category, nil
}

// DeleteCategory removes a category that no product references.
func (s *CategoryService) DeleteCategory(ctx context.Context, actor *auth.Identity, id string) error {
	if err := auth.Authorize(actor, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.Categories().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.logger.InfoContext(ctx, "category deleted",
		slog.String("category_id", id),
	)
	return nil
}

// ProductService manages catalog items. Mutations are open to admins and
// staff; the rating aggregates are never written here.
type ProductService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(store repository.Store, logger *slog.Logger) *ProductService {
	return &ProductService{store: store, logger: logger}
}

// ProductInput holds the editable fields of a product. Nil fields are left
// unchanged on update.
type ProductInput struct {
	Title         *string
	Description   *string
	DetailsDesc   *string
	Price         *int64
	DiscountPrice *int64
	CategoryID    *string
	Brand         *string
	Images        []string
	Stock         *int
	Tags          []string
	Size          *string
	IsActive      *bool
}

// CreateProduct adds a product created by the caller.
func (s *ProductService) CreateProduct(ctx context.Context, actor *auth.Identity, input ProductInput) (*domain.Product, error) {
	if err := auth.Authorize(actor, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return nil, err
	}
	if input.Title == nil || input.Price == nil || input.CategoryID == nil {
		return nil, apperrors.InvalidInput("title, price and category_id are required")
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New().String(),
		Images:    []string{},
		Tags:      []string{},
		CreatedBy: actor.UserID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyProductInput(product, input); err != nil {
		return nil, err
	}

	if err := s.store.Products().Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
	)
	return product, nil
}

func applyProductInput(p *domain.Product, input ProductInput) error {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return apperrors.InvalidInput("product title is required")
		}
		p.Title = title
		p.Slug = slug.Generate(title)
		if p.Slug == "" {
			return apperrors.InvalidInput("product title must contain letters or digits")
		}
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.DetailsDesc != nil {
		p.DetailsDesc = *input.DetailsDesc
	}
	if input.Price != nil {
		p.Price = *input.Price
	}
	if input.DiscountPrice != nil {
		p.DiscountPrice = input.DiscountPrice
	}
	if input.CategoryID != nil {
		p.CategoryID = *input.CategoryID
	}
	if input.Brand != nil {
		p.Brand = *input.Brand
	}
	if input.Images != nil {
		p.Images = input.Images
	}
	if input.Stock != nil {
		p.Stock = *input.Stock
	}
	if input.Tags != nil {
		p.Tags = input.Tags
	}
	if input.Size != nil {
		p.Size = *input.Size
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}

	switch {
	case p.Price <= 0:
		return apperrors.InvalidInput("price must be greater than zero")
	case p.DiscountPrice != nil && (*p.DiscountPrice < 0 || *p.DiscountPrice >= p.Price):
		return apperrors.InvalidInput("discount price must be lower than the price")
	case p.Stock < 0:
		return apperrors.InvalidInput("stock must not be negative")
	case p.CategoryID == "":
		return apperrors.InvalidInput("category_id is required")
	}
	return nil
}

// GetProduct looks a product up by id or, failing that shape, by slug.
func (s *ProductService) GetProduct(ctx context.Context, idOrSlug string) (*domain.Product, error) {
	var (
		product *domain.Product
		err     error
	)
	if _, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		product, err = s.store.Products().GetByID(ctx, idOrSlug)
	} else {
		product, err = s.store.Products().GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// ListProducts returns active products, newest first.
func (s *ProductService) ListProducts(ctx context.Context, categoryID string, params pagination.Params) (pagination.Result[domain.Product], error) {
	products, total, err := s.store.Products().List(ctx, repository.ProductFilter{
		CategoryID: categoryID,
		ActiveOnly: true,
		Offset:     params.Offset,
		Limit:      params.Limit,
	})
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("list products: %w", err)
	}
	return pagination.NewResult(products, total, params), nil
}

// UpdateProduct edits a product.
func (s *ProductService) UpdateProduct(ctx context.Context, actor *auth.Identity, id string, input ProductInput) (*domain.Product, error) {
	if err := auth.Authorize(actor, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return nil, err
	}
	product, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if err := applyProductInput(product, input); err != nil {
		return nil, err
	}
	product.UpdatedAt = time.Now().UTC()

	if err := s.store.Products().Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
	)
	return product, nil
}

// DeleteProduct removes a product and its reviews.
func (s *ProductService) DeleteProduct(ctx context.Context, actor *auth.Identity, id string) error {
	if err := auth.Authorize(actor, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return err
	}
	if err := s.store.Products().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
	)
	return nil
}
