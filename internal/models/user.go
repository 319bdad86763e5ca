package models

import "time"

// User is a member known to the identity provider. ExternalID is the
// provider's id; ID is generated locally.
type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ExternalID string    `gorm:"size:191;uniqueIndex;not null" json:"external_id"`
	Username   string    `gorm:"size:64" json:"username"`
	Name       string    `gorm:"size:128" json:"name"`
	Image      string    `json:"image"`
	Bio        string    `gorm:"type:text" json:"bio"`
	Onboarded  bool      `gorm:"not null;default:false" json:"onboarded"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserPost is one entry of a user's authored-post index.
type UserPost struct {
	UserID    string    `gorm:"primaryKey;size:36;autoIncrement:false" json:"user_id"`
	PostID    string    `gorm:"primaryKey;size:36;autoIncrement:false;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
