package domain

import "time"

// VoteType is the direction of a helpfulness vote.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

// IsValidVoteType checks whether s names a vote direction.
func IsValidVoteType(s string) bool {
	return VoteType(s) == VoteUp || VoteType(s) == VoteDown
}

// Vote is one user's vote on one review.
type Vote struct {
	ID        string    `json:"id"`
	ReviewID  string    `json:"review_id"`
	UserID    string    `json:"user_id"`
	Type      VoteType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
