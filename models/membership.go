package models

import "time"

// Membership grants a user the right to post in a club.
type Membership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_memberships_user_club" json:"user_id"`
	ClubID    uint      `gorm:"not null;uniqueIndex:idx_memberships_user_club;index" json:"club_id"`
	CreatedAt time.Time `json:"created_at"`
}
