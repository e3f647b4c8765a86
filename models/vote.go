package models

import "time"

const (
	// Upvote is the value of a positive vote.
	Upvote = 1
	// Downvote is the value of a negative vote.
	Downvote = -1
)

// Vote is a signed endorsement of a post, unique per (user, post).
// Changing the sign means deleting the vote and casting a new one.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_votes_user_post;index" json:"post_id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_votes_user_post" json:"user_id"`
	VoteValue int       `gorm:"column:vote_value;not null" json:"vote_value"`
	CreatedAt time.Time `json:"created_at"`
}
