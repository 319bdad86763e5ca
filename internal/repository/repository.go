// Package repository defines the storage contracts of the NerdTalk engine and
// their relational (GORM) implementations.
package repository

import (
	"context"

	"nerdtalk/internal/models"

	"gorm.io/gorm"
)

// PostRepository persists individual posts and their reply logs.
type PostRepository interface {
	// Insert stores a new post and, for replies, appends its id to the
	// parent's reply log. A missing parent yields NotFound.
	Insert(ctx context.Context, in models.NewPost) (*models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// GetByIDs returns the posts that exist, in the order of ids. Ids that do
	// not resolve are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error)
	// ListTopLevel pages through posts without a parent, newest first.
	// Pages are 1-based.
	ListTopLevel(ctx context.Context, page, pageSize int) ([]*models.Post, bool, error)
	// ListDirectChildren returns posts whose parent is parentID, in reply log order.
	ListDirectChildren(ctx context.Context, parentID string) ([]*models.Post, error)
	// DeleteByIDs removes the given posts and reports how many existed.
	// Absent ids are ignored.
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// IndexRepository maintains the user→posts and community→posts back-references.
type IndexRepository interface {
	RecordAuthorship(ctx context.Context, userID, postID string) error
	RecordCommunityPost(ctx context.Context, communityID, postID string) error
	// Scrub removes postIDs from every user's and community's post set.
	Scrub(ctx context.Context, postIDs []string) error
	// ScrubOwners removes postIDs from the post sets of the listed owners only.
	ScrubOwners(ctx context.Context, postIDs, userIDs, communityIDs []string) error
	AuthorPostIDs(ctx context.Context, userID string) ([]string, error)
	CommunityPostIDs(ctx context.Context, communityID string) ([]string, error)
}

// UserRepository stores users mirrored from the identity provider.
type UserRepository interface {
	// Upsert creates or updates the user keyed by ExternalID and fills in
	// the stored ID and timestamps.
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}

// CommunityRepository stores communities and their memberships.
type CommunityRepository interface {
	Create(ctx context.Context, community *models.Community) error
	Update(ctx context.Context, community *models.Community) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.Community, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Community, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Community, error)
	AddMember(ctx context.Context, communityID, userID string, role models.MembershipRole) error
	RemoveMember(ctx context.Context, communityID, userID string) error
	ListMembers(ctx context.Context, communityID string) ([]*models.CommunityMembership, error)
}

// Stores bundles one implementation of every repository.
type Stores struct {
	Posts       PostRepository
	Index       IndexRepository
	Users       UserRepository
	Communities CommunityRepository
	// Ping reports whether the backing store is reachable.
	Ping func(ctx context.Context) error
}

// NewSQLStores returns the relational implementations backed by db.
func NewSQLStores(db *gorm.DB) Stores {
	return Stores{
		Posts:       NewPostRepository(db),
		Index:       NewIndexRepository(db),
		Users:       NewUserRepository(db),
		Communities: NewCommunityRepository(db),
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

// inBatchSize caps the number of bind parameters in a single IN clause.
const inBatchSize = 500

func batches(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
