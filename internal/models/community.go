package models

import "time"

// Community is an organization mirrored from the identity provider.
type Community struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ExternalID  string    `gorm:"size:191;uniqueIndex;not null" json:"external_id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Slug        string    `gorm:"size:128;index" json:"slug"`
	Image       string    `json:"image"`
	Bio         string    `gorm:"type:text" json:"bio"`
	CreatedByID *string   `gorm:"size:36" json:"created_by_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CommunityPost is one entry of a community's post index.
type CommunityPost struct {
	CommunityID string    `gorm:"primaryKey;size:36;autoIncrement:false" json:"community_id"`
	PostID      string    `gorm:"primaryKey;size:36;autoIncrement:false;index" json:"post_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// MembershipRole defines a member's role in a community.
type MembershipRole string

const (
	// MembershipRoleOwner is the community creator.
	MembershipRoleOwner MembershipRole = "owner"
	// MembershipRoleAdmin mirrors the provider's admin role.
	MembershipRoleAdmin MembershipRole = "admin"
	// MembershipRoleMember is the default member role.
	MembershipRoleMember MembershipRole = "member"
)

// CommunityMembership maps users to communities and tracks role.
type CommunityMembership struct {
	CommunityID string         `gorm:"primaryKey;size:36;autoIncrement:false" json:"community_id"`
	UserID      string         `gorm:"primaryKey;size:36;autoIncrement:false;index" json:"user_id"`
	Role        MembershipRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
