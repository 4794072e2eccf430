package pagination

import (
	"math"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewParams(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		wantPage    int
		wantLimit   int
		wantOffset  int
	}{
		{"defaults", 0, 0, 1, 10, 0},
		{"second page", 2, 10, 2, 10, 10},
		{"negative values", -3, -1, 1, 10, 0},
		{"clamped limit", 1, 500, 1, MaxLimit, 0},
		{"third page of five", 3, 5, 3, 5, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParams(tt.page, tt.limit, 10)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestNewParams_HugePageDoesNotOverflow(t *testing.T) {
	for _, limit := range []int{1, 7, 10, MaxLimit} {
		p := NewParams(math.MaxInt, limit, 10)
		assert.GreaterOrEqual(t, p.Offset, 0)
		assert.Equal(t, (p.Page-1)*p.Limit, p.Offset)
	}

	p := NewParams(math.MaxInt/50, 100, 10)
	assert.GreaterOrEqual(t, p.Offset, 0)
}

func TestNewParams_InvalidDefaultLimit(t *testing.T) {
	p := NewParams(1, 0, 0)
	assert.Equal(t, 10, p.Limit)
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/reviews?page=3&limit=25", nil)
	p := FromRequest(req, 10)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.Limit)
	assert.Equal(t, 50, p.Offset)

	bad := httptest.NewRequest("GET", "/reviews?page=abc&limit=", nil)
	p = FromRequest(bad, 20)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)
}

func TestNewResult(t *testing.T) {
	r := NewResult([]string{"a", "b"}, 21, NewParams(1, 10, 10))
	assert.Equal(t, 3, r.TotalPages)
	assert.Equal(t, 21, r.Total)
	assert.Len(t, r.Items, 2)

	empty := NewResult[string](nil, 0, NewParams(1, 10, 10))
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}
