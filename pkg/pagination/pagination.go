package pagination

import (
	"math"
	"net/http"
	"strconv"
)

// MaxLimit caps the page size a client may request.
const MaxLimit = 100

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// NewParams normalizes page and limit. Non-positive values fall back to the
// first page and defaultLimit; limit is clamped to MaxLimit and page is
// clamped so the offset cannot overflow.
func NewParams(page, limit, defaultLimit int) Params {
	if defaultLimit <= 0 || defaultLimit > MaxLimit {
		defaultLimit = 10
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return Params{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// FromRequest extracts page and limit from the query string.
func FromRequest(r *http.Request, defaultLimit int) Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return NewParams(page, limit, defaultLimit)
}

// Result wraps one page of items.
type Result[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewResult creates a paginated result. Items is never nil so it encodes as [].
func NewResult[T any](items []T, total int, params Params) Result[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if params.Limit > 0 {
		totalPages = total / params.Limit
		if total%params.Limit > 0 {
			totalPages++
		}
	}

	return Result[T]{
		Items:      items,
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
