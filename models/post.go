package models

import "time"

// Post is a submission to a club. Score is the cached sum of its vote values
// and is only ever changed together with a vote insert or delete.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClubID    uint      `gorm:"index;not null" json:"club_id"`
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	Score     int       `gorm:"not null;default:0" json:"score"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Author    *Profile  `gorm:"-" json:"author,omitempty"`
}
