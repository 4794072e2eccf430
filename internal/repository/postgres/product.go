package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/kader009/trustedge-backend/internal/domain"
	"github.com/kader009/trustedge-backend/internal/repository"
	"github.com/kader009/trustedge-backend/pkg/database"
	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

const productColumns = `id, title, slug, description, details_desc, price, discount_price, category_id, brand,
	images, stock, tags, size, ratings, num_reviews, created_by, is_active, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func productWriteErr(err error, p *domain.Product, op string) error {
	switch {
	case database.IsUniqueViolation(err):
		return apperrors.AlreadyExists("product", "slug", p.Slug)
	case database.IsForeignKeyViolation(err):
		return apperrors.InvalidInput("category does not exist")
	default:
		return fmt.Errorf("%s product: %w", op, err)
	}
}

// Create inserts a new product. Aggregates start at zero.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, 0, $14, $15, $16, $17)`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.Title,
		p.Slug,
		p.Description,
		p.DetailsDesc,
		p.Price,
		p.DiscountPrice,
		p.CategoryID,
		p.Brand,
		textArray(p.Images),
		p.Stock,
		textArray(p.Tags),
		p.Size,
		p.CreatedBy,
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return productWriteErr(err, p, "insert")
	}

	p.Ratings, p.NumReviews = 0, 0
	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, lookupErr(err, "product", id)
	}
	return p, nil
}

// GetBySlug retrieves a product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, slug))
	if err != nil {
		return nil, lookupErr(err, "product", slug)
	}
	return p, nil
}

// List returns products matching the filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.ActiveOnly {
		conditions = append(conditions, "is_active")
	}

	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIndex))
		args = append(args, filter.CategoryID)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	total := 0
	for rows.Next() {
		p, err := scanProduct(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	rows.Close()

	if len(products) == 0 && filter.Offset > 0 {
		total, err = countMatches(ctx, r.db, "FROM products "+whereClause, args[:len(args)-2])
		if err != nil {
			return nil, 0, err
		}
	}

	return products, total, nil
}

// Update modifies the authored fields of a product and refreshes p with the
// stored aggregates.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET title = $2, slug = $3, description = $4, details_desc = $5, price = $6, discount_price = $7,
		    category_id = $8, brand = $9, images = $10, stock = $11, tags = $12, size = $13,
		    is_active = $14, updated_at = $15
		WHERE id = $1
		RETURNING ratings, num_reviews, created_by, created_at`

	err := r.db.QueryRow(ctx, query,
		p.ID,
		p.Title,
		p.Slug,
		p.Description,
		p.DetailsDesc,
		p.Price,
		p.DiscountPrice,
		p.CategoryID,
		p.Brand,
		textArray(p.Images),
		p.Stock,
		textArray(p.Tags),
		p.Size,
		p.IsActive,
		p.UpdatedAt,
	).Scan(&p.Ratings, &p.NumReviews, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) || database.IsForeignKeyViolation(err) {
			return productWriteErr(err, p, "update")
		}
		return lookupErr(err, "product", p.ID)
	}

	return nil
}

// Delete removes a product. Its reviews go with it.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// ListIDs returns every product id.
func (r *ProductRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product ids: %w", err)
	}

	return ids, nil
}

func scanProduct(row rowScanner, extra ...any) (*domain.Product, error) {
	var p domain.Product

	dest := []any{
		&p.ID,
		&p.Title,
		&p.Slug,
		&p.Description,
		&p.DetailsDesc,
		&p.Price,
		&p.DiscountPrice,
		&p.CategoryID,
		&p.Brand,
		&p.Images,
		&p.Stock,
		&p.Tags,
		&p.Size,
		&p.Ratings,
		&p.NumReviews,
		&p.CreatedBy,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}
