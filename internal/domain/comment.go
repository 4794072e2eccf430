package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/kader009/trustedge-backend/pkg/errors"
)

// MaxCommentLen bounds comment text after trimming.
const MaxCommentLen = 1000

// Comment is a row of the comment table. Threads are exactly two levels
// deep: a comment either hangs off a review or replies to such a comment.
type Comment struct {
	ID        string          `json:"id"`
	ReviewID  string          `json:"review_id"`
	UserID    string          `json:"user_id"`
	Text      string          `json:"text"`
	ParentID  *string         `json:"parent_comment,omitempty"`
	IsDeleted bool            `json:"is_deleted"`
	Author    *UserSummary    `json:"author,omitempty"`
	Parent    *CommentSummary `json:"parent,omitempty"`
	Review    *ReviewSummary  `json:"review,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CommentSummary is the parent projection populated on replies.
type CommentSummary struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// ThreadNode is a comment classified by its position in a thread. The only
// implementations are TopLevelComment and Reply.
type ThreadNode interface {
	Base() *Comment
	threadNode()
}

// TopLevelComment is a comment attached directly to a review. Only these
// accept replies.
type TopLevelComment struct {
	Comment
}

// Base implements ThreadNode.
func (t *TopLevelComment) Base() *Comment { return &t.Comment }

func (*TopLevelComment) threadNode() {}

// Reply is a comment whose parent is a top-level comment on the same review.
type Reply struct {
	Comment
}

// Base implements ThreadNode.
func (r *Reply) Base() *Comment { return &r.Comment }

func (*Reply) threadNode() {}

// ParentCommentID returns the id of the top-level comment replied to.
func (r *Reply) ParentCommentID() string {
	if r.ParentID == nil {
		return ""
	}
	return *r.ParentID
}

// Classify wraps a stored comment in its thread position.
func Classify(c Comment) ThreadNode {
	if c.ParentID == nil || *c.ParentID == "" {
		return &TopLevelComment{Comment: c}
	}
	return &Reply{Comment: c}
}

// CommentThread is one top-level comment with its live replies, oldest
// first.
type CommentThread struct {
	TopLevelComment
	Replies    []Reply `json:"replies"`
	ReplyCount int     `json:"reply_count"`
}

// NewCommentThread builds a thread, keeping ReplyCount in step with Replies.
func NewCommentThread(top TopLevelComment, replies []Reply) CommentThread {
	if replies == nil {
		replies = []Reply{}
	}
	return CommentThread{TopLevelComment: top, Replies: replies, ReplyCount: len(replies)}
}

// NormalizeCommentText trims text and checks it is between 1 and
// MaxCommentLen characters.
func NormalizeCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.InvalidInput("comment text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLen {
		return "", apperrors.InvalidInput(fmt.Sprintf("comment text must be at most %d characters", MaxCommentLen))
	}
	return text, nil
}
