package domain

import "math"

// RatingStats is the derived aggregate of a product's reviews.
type RatingStats struct {
	NumReviews int     `json:"num_reviews"`
	Ratings    float64 `json:"ratings"`
}

// NewRatingStats builds stats from a review count and the unrounded mean of
// their ratings. An empty set yields zero for both fields.
func NewRatingStats(count int, mean float64) RatingStats {
	if count <= 0 {
		return RatingStats{}
	}
	return RatingStats{NumReviews: count, Ratings: RoundRating(mean)}
}

// RoundRating rounds a mean rating to one decimal place.
func RoundRating(mean float64) float64 {
	return math.Round(mean*10) / 10
}

// VoteTally holds the derived vote counters of a review.
type VoteTally struct {
	Upvotes   int `json:"upvote_count"`
	Downvotes int `json:"downvote_count"`
}
