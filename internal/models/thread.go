package models

import "time"

// AuthorSummary is the slice of a user shown next to a post.
type AuthorSummary struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Username   string `json:"username,omitempty"`
	Image      string `json:"image"`
}

// CommunitySummary is the slice of a community shown next to a post.
type CommunitySummary struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Image      string `json:"image"`
}

// ThreadNode is a post with its joined summaries and the replies loaded
// beneath it. ReplyCount counts the live replies, loaded or not.
type ThreadNode struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	AuthorID    string            `json:"author_id"`
	Author      *AuthorSummary    `json:"author,omitempty"`
	CommunityID *string           `json:"community_id,omitempty"`
	Community   *CommunitySummary `json:"community,omitempty"`
	ParentID    *string           `json:"parent_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ReplyCount  int               `json:"reply_count"`
	Replies     []*ThreadNode     `json:"replies,omitempty"`
}

// ThreadView is a root post with two levels of replies.
type ThreadView = ThreadNode

// NewThreadNode copies the post fields into a node without joins.
func NewThreadNode(p *Post) *ThreadNode {
	return &ThreadNode{
		ID:          p.ID,
		Text:        p.Text,
		AuthorID:    p.AuthorID,
		CommunityID: p.CommunityID,
		ParentID:    p.ParentID,
		CreatedAt:   p.CreatedAt,
		ReplyCount:  len(p.Children),
	}
}

// SummarizeUser builds the author summary for u.
func SummarizeUser(u *User) *AuthorSummary {
	if u == nil {
		return nil
	}
	return &AuthorSummary{ID: u.ID, ExternalID: u.ExternalID, Name: u.Name, Username: u.Username, Image: u.Image}
}

// SummarizeCommunity builds the community summary for c.
func SummarizeCommunity(c *Community) *CommunitySummary {
	if c == nil {
		return nil
	}
	return &CommunitySummary{ID: c.ID, ExternalID: c.ExternalID, Name: c.Name, Image: c.Image}
}

// FeedPage is one page of top-level posts.
type FeedPage struct {
	Posts    []*ThreadNode `json:"posts"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	HasMore  bool          `json:"has_more"`
}
