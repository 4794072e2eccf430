package domain

import (
	"time"
)

// Product is a catalog item. Ratings and NumReviews are derived from the
// product's reviews and are only written by the aggregate recalculator.
type Product struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	DetailsDesc   string    `json:"details_desc,omitempty"`
	Price         int64     `json:"price"`
	DiscountPrice *int64    `json:"discount_price,omitempty"`
	CategoryID    string    `json:"category_id"`
	Brand         string    `json:"brand,omitempty"`
	Images        []string  `json:"images"`
	Stock         int       `json:"stock"`
	Tags          []string  `json:"tags"`
	Size          string    `json:"size,omitempty"`
	Ratings       float64   `json:"ratings"`
	NumReviews    int       `json:"num_reviews"`
	CreatedBy     string    `json:"created_by"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Summary returns the projection populated on reviews.
func (p *Product) Summary() *ProductSummary {
	return &ProductSummary{ID: p.ID, Title: p.Title, Slug: p.Slug}
}

// ProductSummary is the product projection populated on reviews.
type ProductSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}
