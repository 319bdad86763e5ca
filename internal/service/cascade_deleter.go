package service

import (
	"context"
	"log/slog"
	"time"

	"nerdtalk/internal/cache"
	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"
	"nerdtalk/internal/observability"
	"nerdtalk/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// cachedAncestorDepth is how many ancestors above a changed post may hold a
// cached view that includes it. A thread view spans two reply levels.
const cachedAncestorDepth = 2

// DeleteResult describes one cascade delete.
type DeleteResult struct {
	RootID string `json:"root_id"`
	// Targeted is the size of the subtree, root included.
	Targeted int `json:"targeted"`
	// Deleted is what the store reported removing. Under a concurrent
	// delete of an overlapping subtree it may be lower than Targeted.
	Deleted      int64    `json:"deleted"`
	PostIDs      []string `json:"post_ids"`
	AuthorIDs    []string `json:"author_ids"`
	CommunityIDs []string `json:"community_ids"`
}

// CascadeDeleter removes a post with its whole subtree and scrubs the indexes.
type CascadeDeleter struct {
	posts   repository.PostRepository
	walker  *TreeWalker
	index   *IndexMaintainer
	threads *cache.ThreadCache
}

func NewCascadeDeleter(posts repository.PostRepository, walker *TreeWalker, index *IndexMaintainer, threads *cache.ThreadCache) *CascadeDeleter {
	return &CascadeDeleter{posts: posts, walker: walker, index: index, threads: threads}
}

// DeletePost deletes id and every transitive reply. Once the store delete
// starts, the operation ignores cancellation of ctx and runs to completion.
// A scrub failure after the delete is returned; the delete is not undone.
func (d *CascadeDeleter) DeletePost(ctx context.Context, id string) (*DeleteResult, error) {
	span, ctx := observability.NewSpan(ctx, "cascade.delete_post", attribute.String("post.id", id))
	defer span.End()

	res, err := d.deletePost(ctx, id)
	switch {
	case err == nil:
		observability.CascadeDeletes.WithLabelValues("ok").Inc()
	case models.IsNotFound(err):
		observability.CascadeDeletes.WithLabelValues("not_found").Inc()
	case models.IsCorruptTree(err):
		observability.CascadeDeletes.WithLabelValues("corrupt_tree").Inc()
	default:
		observability.CascadeDeletes.WithLabelValues("error").Inc()
	}
	span.SetError(err)
	return res, err
}

func (d *CascadeDeleter) deletePost(ctx context.Context, id string) (*DeleteResult, error) {
	root, err := d.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	descendants, err := d.walker.CollectDescendants(ctx, id)
	if err != nil {
		return nil, err
	}

	all := make([]*models.Post, 0, len(descendants)+1)
	all = append(all, root)
	all = append(all, descendants...)

	res := &DeleteResult{
		RootID:       id,
		Targeted:     len(all),
		PostIDs:      make([]string, 0, len(all)),
		AuthorIDs:    []string{},
		CommunityIDs: []string{},
	}
	authors := make(map[string]struct{})
	communities := make(map[string]struct{})
	for _, p := range all {
		res.PostIDs = append(res.PostIDs, p.ID)
		if _, ok := authors[p.AuthorID]; !ok && p.AuthorID != "" {
			authors[p.AuthorID] = struct{}{}
			res.AuthorIDs = append(res.AuthorIDs, p.AuthorID)
		}
		if p.CommunityID != nil && *p.CommunityID != "" {
			if _, ok := communities[*p.CommunityID]; !ok {
				communities[*p.CommunityID] = struct{}{}
				res.CommunityIDs = append(res.CommunityIDs, *p.CommunityID)
			}
		}
	}
	observability.CascadeSubtreeSize.Observe(float64(len(all)))

	// Past this point the delete must finish even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	invalidate := append([]string{}, res.PostIDs...)
	if root.ParentID != nil && d.threads.Enabled() {
		invalidate = append(invalidate, ancestorIDs(ctx, d.posts, *root.ParentID, cachedAncestorDepth)...)
	}
	d.threads.Invalidate(ctx, invalidate...)

	res.Deleted, err = d.posts.DeleteByIDs(ctx, res.PostIDs)
	if err != nil {
		return nil, err
	}
	d.threads.Invalidate(ctx, invalidate...)

	if err := d.index.ScrubOwners(ctx, res.PostIDs, res.AuthorIDs, res.CommunityIDs); err != nil {
		middleware.Logger.ErrorContext(ctx, "Index scrub failed after cascade delete",
			slog.String("root_id", id),
			slog.Int("posts", len(res.PostIDs)),
			slog.String("error", err.Error()),
		)
		return res, err
	}

	middleware.Logger.InfoContext(ctx, "Cascade delete completed",
		slog.String("root_id", id),
		slog.Int("targeted", res.Targeted),
		slog.Int64("deleted", res.Deleted),
	)
	return res, nil
}

// ancestorIDs returns startID followed by up to depth of its ancestors.
// Lookups are best effort; a missing or failing ancestor ends the chain.
func ancestorIDs(ctx context.Context, posts repository.PostRepository, startID string, depth int) []string {
	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ids := []string{startID}
	current := startID
	for i := 0; i < depth; i++ {
		p, err := posts.GetByID(lookupCtx, current)
		if err != nil || p.ParentID == nil || *p.ParentID == "" {
			break
		}
		current = *p.ParentID
		ids = append(ids, current)
	}
	return ids
}
