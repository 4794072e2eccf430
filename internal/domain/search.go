package domain

// Review sort keys.
const (
	SortByDate   = "date"
	SortByRating = "rating"
	SortByVotes  = "votes"
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ValidSortByValues returns the accepted review sort keys.
func ValidSortByValues() []string {
	return []string{SortByDate, SortByRating, SortByVotes}
}

// IsValidSortBy checks a review sort key. Empty means the default.
func IsValidSortBy(s string) bool {
	if s == "" {
		return true
	}
	for _, v := range ValidSortByValues() {
		if v == s {
			return true
		}
	}
	return false
}

// IsValidOrder checks a sort order. Empty means the default.
func IsValidOrder(s string) bool {
	return s == "" || s == OrderAsc || s == OrderDesc
}
