package service

import (
	"context"

	"nerdtalk/internal/models"
	"nerdtalk/internal/repository"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	insertFn             func(context.Context, models.NewPost) (*models.Post, error)
	getByIDFn            func(context.Context, string) (*models.Post, error)
	getByIDsFn           func(context.Context, []string) ([]*models.Post, error)
	listTopLevelFn       func(context.Context, int, int) ([]*models.Post, bool, error)
	listDirectChildrenFn func(context.Context, string) ([]*models.Post, error)
	deleteByIDsFn        func(context.Context, []string) (int64, error)
}

func (s *postRepoStub) Insert(ctx context.Context, in models.NewPost) (*models.Post, error) {
	return s.insertFn(ctx, in)
}
func (s *postRepoStub) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *postRepoStub) ListTopLevel(ctx context.Context, page, pageSize int) ([]*models.Post, bool, error) {
	return s.listTopLevelFn(ctx, page, pageSize)
}
func (s *postRepoStub) ListDirectChildren(ctx context.Context, parentID string) ([]*models.Post, error) {
	return s.listDirectChildrenFn(ctx, parentID)
}
func (s *postRepoStub) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	return s.deleteByIDsFn(ctx, ids)
}

// memPosts returns a post stub backed by an in-memory map. Children lists
// are derived from ParentID in insertion order of the slice.
func memPosts(posts ...*models.Post) *postRepoStub {
	byID := make(map[string]*models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	return &postRepoStub{
		insertFn: func(_ context.Context, _ models.NewPost) (*models.Post, error) {
			return nil, models.NewInternalError(nil)
		},
		getByIDFn: func(_ context.Context, id string) (*models.Post, error) {
			if p, ok := byID[id]; ok {
				return p, nil
			}
			return nil, models.NewNotFoundError("Post", id)
		},
		getByIDsFn: func(_ context.Context, ids []string) ([]*models.Post, error) {
			out := []*models.Post{}
			for _, id := range ids {
				if p, ok := byID[id]; ok {
					out = append(out, p)
				}
			}
			return out, nil
		},
		listTopLevelFn: func(_ context.Context, _, _ int) ([]*models.Post, bool, error) {
			return nil, false, nil
		},
		listDirectChildrenFn: func(_ context.Context, parentID string) ([]*models.Post, error) {
			var out []*models.Post
			for _, p := range posts {
				if p.ParentID != nil && *p.ParentID == parentID {
					if _, ok := byID[p.ID]; ok {
						out = append(out, p)
					}
				}
			}
			return out, nil
		},
		deleteByIDsFn: func(_ context.Context, ids []string) (int64, error) {
			var n int64
			for _, id := range ids {
				if _, ok := byID[id]; ok {
					delete(byID, id)
					n++
				}
			}
			return n, nil
		},
	}
}

// indexRepoStub is a stub for repository.IndexRepository.
type indexRepoStub struct {
	recordAuthorshipFn    func(context.Context, string, string) error
	recordCommunityPostFn func(context.Context, string, string) error
	scrubFn               func(context.Context, []string) error
	scrubOwnersFn         func(context.Context, []string, []string, []string) error
	authorPostIDsFn       func(context.Context, string) ([]string, error)
	communityPostIDsFn    func(context.Context, string) ([]string, error)
}

func (s *indexRepoStub) RecordAuthorship(ctx context.Context, userID, postID string) error {
	return s.recordAuthorshipFn(ctx, userID, postID)
}
func (s *indexRepoStub) RecordCommunityPost(ctx context.Context, communityID, postID string) error {
	return s.recordCommunityPostFn(ctx, communityID, postID)
}
func (s *indexRepoStub) Scrub(ctx context.Context, postIDs []string) error {
	return s.scrubFn(ctx, postIDs)
}
func (s *indexRepoStub) ScrubOwners(ctx context.Context, postIDs, userIDs, communityIDs []string) error {
	return s.scrubOwnersFn(ctx, postIDs, userIDs, communityIDs)
}
func (s *indexRepoStub) AuthorPostIDs(ctx context.Context, userID string) ([]string, error) {
	return s.authorPostIDsFn(ctx, userID)
}
func (s *indexRepoStub) CommunityPostIDs(ctx context.Context, communityID string) ([]string, error) {
	return s.communityPostIDsFn(ctx, communityID)
}

func noopIndexRepo() *indexRepoStub {
	return &indexRepoStub{
		recordAuthorshipFn:    func(_ context.Context, _, _ string) error { return nil },
		recordCommunityPostFn: func(_ context.Context, _, _ string) error { return nil },
		scrubFn:               func(_ context.Context, _ []string) error { return nil },
		scrubOwnersFn:         func(_ context.Context, _, _, _ []string) error { return nil },
		authorPostIDsFn:       func(_ context.Context, _ string) ([]string, error) { return []string{}, nil },
		communityPostIDsFn:    func(_ context.Context, _ string) ([]string, error) { return []string{}, nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	upsertFn          func(context.Context, *models.User) error
	getByIDFn         func(context.Context, string) (*models.User, error)
	getByExternalIDFn func(context.Context, string) (*models.User, error)
	getByIDsFn        func(context.Context, []string) ([]*models.User, error)
}

func (s *userRepoStub) Upsert(ctx context.Context, user *models.User) error {
	return s.upsertFn(ctx, user)
}
func (s *userRepoStub) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.getByExternalIDFn(ctx, externalID)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	return s.getByIDsFn(ctx, ids)
}

func memUsers(users ...*models.User) *userRepoStub {
	byID := make(map[string]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return &userRepoStub{
		upsertFn: func(_ context.Context, _ *models.User) error { return nil },
		getByIDFn: func(_ context.Context, id string) (*models.User, error) {
			if u, ok := byID[id]; ok {
				return u, nil
			}
			return nil, models.NewNotFoundError("User", id)
		},
		getByExternalIDFn: func(_ context.Context, externalID string) (*models.User, error) {
			for _, u := range byID {
				if u.ExternalID == externalID {
					return u, nil
				}
			}
			return nil, models.NewNotFoundError("User", externalID)
		},
		getByIDsFn: func(_ context.Context, ids []string) ([]*models.User, error) {
			out := []*models.User{}
			for _, id := range ids {
				if u, ok := byID[id]; ok {
					out = append(out, u)
				}
			}
			return out, nil
		},
	}
}

// communityRepoStub is a stub for repository.CommunityRepository.
type communityRepoStub struct {
	createFn          func(context.Context, *models.Community) error
	updateFn          func(context.Context, *models.Community) error
	deleteFn          func(context.Context, string) error
	getByIDFn         func(context.Context, string) (*models.Community, error)
	getByExternalIDFn func(context.Context, string) (*models.Community, error)
	getByIDsFn        func(context.Context, []string) ([]*models.Community, error)
	addMemberFn       func(context.Context, string, string, models.MembershipRole) error
	removeMemberFn    func(context.Context, string, string) error
	listMembersFn     func(context.Context, string) ([]*models.CommunityMembership, error)
}

func (s *communityRepoStub) Create(ctx context.Context, c *models.Community) error {
	return s.createFn(ctx, c)
}
func (s *communityRepoStub) Update(ctx context.Context, c *models.Community) error {
	return s.updateFn(ctx, c)
}
func (s *communityRepoStub) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}
func (s *communityRepoStub) GetByID(ctx context.Context, id string) (*models.Community, error) {
	return s.getByIDFn(ctx, id)
}
func (s *communityRepoStub) GetByExternalID(ctx context.Context, externalID string) (*models.Community, error) {
	return s.getByExternalIDFn(ctx, externalID)
}
func (s *communityRepoStub) GetByIDs(ctx context.Context, ids []string) ([]*models.Community, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *communityRepoStub) AddMember(ctx context.Context, communityID, userID string, role models.MembershipRole) error {
	return s.addMemberFn(ctx, communityID, userID, role)
}
func (s *communityRepoStub) RemoveMember(ctx context.Context, communityID, userID string) error {
	return s.removeMemberFn(ctx, communityID, userID)
}
func (s *communityRepoStub) ListMembers(ctx context.Context, communityID string) ([]*models.CommunityMembership, error) {
	return s.listMembersFn(ctx, communityID)
}

func emptyCommunityRepo() *communityRepoStub {
	notFound := func(id string) error { return models.NewNotFoundError("Community", id) }
	return &communityRepoStub{
		createFn:          func(_ context.Context, _ *models.Community) error { return nil },
		updateFn:          func(_ context.Context, c *models.Community) error { return notFound(c.ID) },
		deleteFn:          func(_ context.Context, id string) error { return notFound(id) },
		getByIDFn:         func(_ context.Context, id string) (*models.Community, error) { return nil, notFound(id) },
		getByExternalIDFn: func(_ context.Context, id string) (*models.Community, error) { return nil, notFound(id) },
		getByIDsFn:        func(_ context.Context, _ []string) ([]*models.Community, error) { return []*models.Community{}, nil },
		addMemberFn:       func(_ context.Context, id, _ string, _ models.MembershipRole) error { return notFound(id) },
		removeMemberFn:    func(_ context.Context, _, _ string) error { return nil },
		listMembersFn:     func(_ context.Context, id string) ([]*models.CommunityMembership, error) { return nil, notFound(id) },
	}
}

func stubStores(posts *postRepoStub, index *indexRepoStub, users *userRepoStub, communities *communityRepoStub) repository.Stores {
	return repository.Stores{
		Posts:       posts,
		Index:       index,
		Users:       users,
		Communities: communities,
		Ping:        func(context.Context) error { return nil },
	}
}

// delegatePosts returns a stub that forwards every call to inner, so single
// methods can be wrapped.
func delegatePosts(inner repository.PostRepository) *postRepoStub {
	return &postRepoStub{
		insertFn:             inner.Insert,
		getByIDFn:            inner.GetByID,
		getByIDsFn:           inner.GetByIDs,
		listTopLevelFn:       inner.ListTopLevel,
		listDirectChildrenFn: inner.ListDirectChildren,
		deleteByIDsFn:        inner.DeleteByIDs,
	}
}
