package service

import (
	"context"
	"log/slog"

	"nerdtalk/internal/cache"
	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"
	"nerdtalk/internal/observability"
	"nerdtalk/internal/repository"
	"nerdtalk/internal/validation"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PostService struct {
	posts        repository.PostRepository
	users        repository.UserRepository
	communities  repository.CommunityRepository
	index        *IndexMaintainer
	deleter      *CascadeDeleter
	materializer *ThreadMaterializer
	threads      *cache.ThreadCache

	defaultPageSize int
	maxPageSize     int
}

type CreatePostInput struct {
	AuthorID            string
	Text                string
	CommunityExternalID string
}

type ReplyInput struct {
	ParentID string
	AuthorID string
	Text     string
}

type DeletePostInput struct {
	PostID string
	UserID string
}

func NewPostService(engine *Engine, defaultPageSize, maxPageSize int) *PostService {
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	if defaultPageSize <= 0 || defaultPageSize > maxPageSize {
		defaultPageSize = min(DefaultPageSize, maxPageSize)
	}
	return &PostService{
		posts:           engine.Stores.Posts,
		users:           engine.Stores.Users,
		communities:     engine.Stores.Communities,
		index:           engine.Index,
		deleter:         engine.Deleter,
		materializer:    engine.Materializer,
		threads:         engine.Threads,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Create stores a top-level post. An unknown community external id is not an
// error: the post is created without a community.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.ThreadNode, error) {
	text, err := validation.ValidatePostText(in.Text)
	if err != nil {
		return nil, err
	}
	author, err := s.author(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	var community *models.Community
	if in.CommunityExternalID != "" {
		community, err = s.communities.GetByExternalID(ctx, in.CommunityExternalID)
		switch {
		case models.IsNotFound(err):
			middleware.Logger.InfoContext(ctx, "Community not found, posting without community",
				slog.String("community_external_id", in.CommunityExternalID))
			community = nil
		case err != nil:
			return nil, err
		}
	}

	np := models.NewPost{Text: text, AuthorID: author.ID}
	if community != nil {
		np.CommunityID = &community.ID
	}
	post, err := s.posts.Insert(ctx, np)
	if err != nil {
		return nil, err
	}
	observability.PostsCreated.WithLabelValues("top_level").Inc()

	if err := s.index.RecordAuthorship(ctx, author.ID, post.ID); err != nil {
		return nil, err
	}
	if community != nil {
		if err := s.index.RecordCommunityPost(ctx, community.ID, post.ID); err != nil {
			return nil, err
		}
	}

	node := models.NewThreadNode(post)
	node.Author = models.SummarizeUser(author)
	node.Community = models.SummarizeCommunity(community)
	return node, nil
}

// Reply stores a reply under in.ParentID and appends it to the parent's
// reply log.
func (s *PostService) Reply(ctx context.Context, in ReplyInput) (*models.ThreadNode, error) {
	text, err := validation.ValidatePostText(in.Text)
	if err != nil {
		return nil, err
	}
	if in.ParentID == "" {
		return nil, models.NewValidationError("parent id is required")
	}
	author, err := s.author(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	parentID := in.ParentID
	// Views cached before the insert are dropped on both sides of it, so a
	// read racing the write can only re-cache a stale view until the TTL.
	var stale []string
	if s.threads.Enabled() {
		stale = ancestorIDs(ctx, s.posts, parentID, cachedAncestorDepth)
		s.threads.Invalidate(ctx, stale...)
	}

	post, err := s.posts.Insert(ctx, models.NewPost{Text: text, AuthorID: author.ID, ParentID: &parentID})
	if err != nil {
		return nil, err
	}
	observability.PostsCreated.WithLabelValues("reply").Inc()
	s.threads.Invalidate(ctx, stale...)

	if err := s.index.RecordAuthorship(ctx, author.ID, post.ID); err != nil {
		return nil, err
	}

	node := models.NewThreadNode(post)
	node.Author = models.SummarizeUser(author)
	return node, nil
}

// Delete removes a post and its subtree. Only the author may delete.
func (s *PostService) Delete(ctx context.Context, in DeletePostInput) (*DeleteResult, error) {
	if in.UserID == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only delete your own posts")
	}
	return s.deleter.DeletePost(ctx, in.PostID)
}

func (s *PostService) Feed(ctx context.Context, page, pageSize int) (*models.FeedPage, error) {
	page, pageSize = s.normalizePage(page, pageSize)
	return s.materializer.Feed(ctx, page, pageSize)
}

func (s *PostService) Thread(ctx context.Context, id string) (*models.ThreadView, error) {
	return s.materializer.Materialize(ctx, id)
}

// AuthorPosts lists the posts in userID's index, newest first.
func (s *PostService) AuthorPosts(ctx context.Context, userID string) ([]*models.ThreadNode, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.index.AuthorPostIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolveIndexed(ctx, "author_index", ids)
}

// CommunityPosts lists the posts in communityID's index, newest first.
func (s *PostService) CommunityPosts(ctx context.Context, communityID string) ([]*models.ThreadNode, error) {
	if _, err := s.communities.GetByID(ctx, communityID); err != nil {
		return nil, err
	}
	ids, err := s.index.CommunityPostIDs(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return s.resolveIndexed(ctx, "community_index", ids)
}

// resolveIndexed loads the posts behind index ids. Ids that no longer
// resolve are skipped and scrubbed from every index.
func (s *PostService) resolveIndexed(ctx context.Context, source string, ids []string) ([]*models.ThreadNode, error) {
	posts, err := s.posts.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	if len(posts) < len(ids) {
		found := make(map[string]struct{}, len(posts))
		for _, p := range posts {
			found[p.ID] = struct{}{}
		}
		var dangling []string
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				dangling = append(dangling, id)
			}
		}
		observability.DanglingReferences.WithLabelValues(source).Add(float64(len(dangling)))
		s.healIndex(ctx, dangling)
	}

	return s.materializer.Nodes(ctx, posts)
}

func (s *PostService) healIndex(ctx context.Context, dangling []string) {
	if len(dangling) == 0 {
		return
	}
	if err := s.index.Scrub(context.WithoutCancel(ctx), dangling); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to scrub dangling index entries",
			slog.Int("count", len(dangling)), slog.String("error", err.Error()))
	}
}

func (s *PostService) author(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Onboarded {
		return nil, models.NewForbiddenError("Complete onboarding before posting")
	}
	return user, nil
}

func (s *PostService) normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}
	return page, pageSize
}
