// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// MinPostTextLength is the shortest trimmed body a post may carry.
const MinPostTextLength = 3

// Post is a single NerdTalk. A nil ParentID marks a top-level post.
type Post struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	AuthorID    string    `gorm:"size:36;not null;index" json:"author_id"`
	CommunityID *string   `gorm:"size:36;index" json:"community_id,omitempty"`
	ParentID    *string   `gorm:"size:36;index" json:"parent_id,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	// Children is the append-only reply log, loaded from post_children.
	Children []string `gorm:"-" json:"children"`
}

// IsTopLevel reports whether the post has no parent.
func (p *Post) IsTopLevel() bool {
	return p.ParentID == nil || *p.ParentID == ""
}

// PostChild is one entry of a parent's reply log. Seq orders entries by commit.
type PostChild struct {
	Seq       uint      `gorm:"primaryKey;autoIncrement" json:"seq"`
	ParentID  string    `gorm:"size:36;not null;index" json:"parent_id"`
	ChildID   string    `gorm:"size:36;not null" json:"child_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the reply log table name stable.
func (PostChild) TableName() string { return "post_children" }

// NewPost describes a post to be inserted.
type NewPost struct {
	Text        string
	AuthorID    string
	CommunityID *string
	ParentID    *string
}
