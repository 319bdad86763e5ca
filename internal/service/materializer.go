package service

import (
	"context"

	"nerdtalk/internal/cache"
	"nerdtalk/internal/models"
	"nerdtalk/internal/observability"
	"nerdtalk/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ThreadMaterializer builds bounded-depth views of threads with author and
// community summaries joined in.
type ThreadMaterializer struct {
	posts       repository.PostRepository
	users       repository.UserRepository
	communities repository.CommunityRepository
	threads     *cache.ThreadCache
}

func NewThreadMaterializer(
	posts repository.PostRepository,
	users repository.UserRepository,
	communities repository.CommunityRepository,
	threads *cache.ThreadCache,
) *ThreadMaterializer {
	return &ThreadMaterializer{posts: posts, users: users, communities: communities, threads: threads}
}

// Materialize returns rootID with its replies and their replies. Deeper levels
// are fetched by materializing a reply.
func (m *ThreadMaterializer) Materialize(ctx context.Context, rootID string) (*models.ThreadView, error) {
	span, ctx := observability.NewSpan(ctx, "thread.materialize", attribute.String("post.root_id", rootID))
	defer span.End()

	view, err := m.threads.Get(ctx, rootID, func(ctx context.Context) (*models.ThreadView, error) {
		return m.build(ctx, rootID)
	})
	span.SetError(err)
	return view, err
}

func (m *ThreadMaterializer) build(ctx context.Context, rootID string) (*models.ThreadView, error) {
	root, err := m.posts.GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}
	view := models.NewThreadNode(root)

	nested, err := m.loadReplies(ctx, []*models.Post{root}, []*models.ThreadNode{view}, 2)
	if err != nil {
		return nil, err
	}
	if err := m.join(ctx, []*models.ThreadNode{view}, nested); err != nil {
		return nil, err
	}
	return view, nil
}

// Feed returns one page of top-level posts, each with its direct replies.
func (m *ThreadMaterializer) Feed(ctx context.Context, page, pageSize int) (*models.FeedPage, error) {
	span, ctx := observability.NewSpan(ctx, "thread.feed",
		attribute.Int("feed.page", page), attribute.Int("feed.page_size", pageSize))
	defer span.End()

	posts, hasMore, err := m.posts.ListTopLevel(ctx, page, pageSize)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	nodes := make([]*models.ThreadNode, 0, len(posts))
	for _, p := range posts {
		nodes = append(nodes, models.NewThreadNode(p))
	}
	nested, err := m.loadReplies(ctx, posts, nodes, 1)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if err := m.join(ctx, nodes, nested); err != nil {
		span.SetError(err)
		return nil, err
	}
	return &models.FeedPage{Posts: nodes, Page: page, PageSize: pageSize, HasMore: hasMore}, nil
}

// Nodes joins summaries onto posts without loading replies.
func (m *ThreadMaterializer) Nodes(ctx context.Context, posts []*models.Post) ([]*models.ThreadNode, error) {
	nodes := make([]*models.ThreadNode, 0, len(posts))
	for _, p := range posts {
		nodes = append(nodes, models.NewThreadNode(p))
	}
	if err := m.countLiveReplies(ctx, posts, nodes); err != nil {
		return nil, err
	}
	if err := m.join(ctx, nodes, nil); err != nil {
		return nil, err
	}
	return nodes, nil
}

// loadReplies attaches depth levels of replies beneath nodes, following each
// post's reply log. It returns every reply node it created. Nodes on the
// level below the last loaded one get live reply counts only.
func (m *ThreadMaterializer) loadReplies(ctx context.Context, posts []*models.Post, nodes []*models.ThreadNode, depth int) ([]*models.ThreadNode, error) {
	var created []*models.ThreadNode
	for level := 0; level < depth && len(posts) > 0; level++ {
		var ids []string
		for _, p := range posts {
			ids = append(ids, p.Children...)
		}
		if len(ids) == 0 {
			break
		}

		replies, err := m.posts.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]*models.Post, len(replies))
		for _, r := range replies {
			byID[r.ID] = r
		}

		var nextPosts []*models.Post
		var nextNodes []*models.ThreadNode
		for i, p := range posts {
			parent := nodes[i]
			parent.Replies = []*models.ThreadNode{}
			for _, childID := range p.Children {
				child, ok := byID[childID]
				if !ok {
					observability.DanglingReferences.WithLabelValues("children").Inc()
					continue
				}
				node := models.NewThreadNode(child)
				parent.Replies = append(parent.Replies, node)
				created = append(created, node)
				nextPosts = append(nextPosts, child)
				nextNodes = append(nextNodes, node)
			}
			parent.ReplyCount = len(parent.Replies)
		}
		posts, nodes = nextPosts, nextNodes
	}
	if err := m.countLiveReplies(ctx, posts, nodes); err != nil {
		return nil, err
	}
	return created, nil
}

// countLiveReplies sets ReplyCount from the reply log entries that still
// resolve, without loading the replies into the nodes.
func (m *ThreadMaterializer) countLiveReplies(ctx context.Context, posts []*models.Post, nodes []*models.ThreadNode) error {
	var ids []string
	for _, p := range posts {
		ids = append(ids, p.Children...)
	}
	if len(ids) == 0 {
		return nil
	}
	live, err := m.posts.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	exists := make(map[string]struct{}, len(live))
	for _, r := range live {
		exists[r.ID] = struct{}{}
	}
	for i, p := range posts {
		n := 0
		for _, childID := range p.Children {
			if _, ok := exists[childID]; ok {
				n++
			}
		}
		if dangling := len(p.Children) - n; dangling > 0 {
			observability.DanglingReferences.WithLabelValues("children").Add(float64(dangling))
		}
		nodes[i].ReplyCount = n
	}
	return nil
}

// join fills author summaries on every node and community summaries on the
// top nodes. Authors and communities are fetched concurrently.
func (m *ThreadMaterializer) join(ctx context.Context, top, nested []*models.ThreadNode) error {
	authorSet := make(map[string]struct{})
	var authorIDs []string
	communitySet := make(map[string]struct{})
	var communityIDs []string

	for _, n := range append(append([]*models.ThreadNode{}, top...), nested...) {
		if _, ok := authorSet[n.AuthorID]; !ok {
			authorSet[n.AuthorID] = struct{}{}
			authorIDs = append(authorIDs, n.AuthorID)
		}
	}
	for _, n := range top {
		if n.CommunityID == nil {
			continue
		}
		if _, ok := communitySet[*n.CommunityID]; !ok {
			communitySet[*n.CommunityID] = struct{}{}
			communityIDs = append(communityIDs, *n.CommunityID)
		}
	}

	var users []*models.User
	var communities []*models.Community
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = m.users.GetByIDs(gctx, authorIDs)
		return err
	})
	if len(communityIDs) > 0 {
		g.Go(func() error {
			var err error
			communities, err = m.communities.GetByIDs(gctx, communityIDs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	usersByID := make(map[string]*models.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}
	communitiesByID := make(map[string]*models.Community, len(communities))
	for _, c := range communities {
		communitiesByID[c.ID] = c
	}

	for _, n := range top {
		n.Author = models.SummarizeUser(usersByID[n.AuthorID])
		if n.CommunityID != nil {
			n.Community = models.SummarizeCommunity(communitiesByID[*n.CommunityID])
		}
	}
	for _, n := range nested {
		n.Author = models.SummarizeUser(usersByID[n.AuthorID])
	}
	return nil
}
