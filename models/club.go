package models

import "time"

// Club is a topical community. Clubs are reference data seeded from configuration.
type Club struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Slug        string    `gorm:"size:64;not null;uniqueIndex" json:"slug"`
	Description string    `gorm:"size:512" json:"description,omitempty"`
	Icon        string    `gorm:"size:64" json:"icon,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
