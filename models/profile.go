package models

import "time"

// Profile is the public face of an authenticated user. One per user, created after first login.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex" json:"user_id"`
	Username  string    `gorm:"size:32;not null;uniqueIndex" json:"username"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url,omitempty"`
	Bio       string    `gorm:"size:512" json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
