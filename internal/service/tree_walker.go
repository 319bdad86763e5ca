package service

import (
	"context"
	"log/slog"

	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"
	"nerdtalk/internal/observability"
	"nerdtalk/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// TreeWalker discovers the descendants of a post.
type TreeWalker struct {
	posts repository.PostRepository
}

func NewTreeWalker(posts repository.PostRepository) *TreeWalker {
	return &TreeWalker{posts: posts}
}

// CollectDescendants returns every transitive reply of rootID in depth-first
// pre-order, root excluded. A post reached twice aborts the walk with a
// CorruptTree error.
func (w *TreeWalker) CollectDescendants(ctx context.Context, rootID string) ([]*models.Post, error) {
	span, ctx := observability.NewSpan(ctx, "tree.collect_descendants", attribute.String("post.root_id", rootID))
	defer span.End()

	visited := map[string]struct{}{rootID: {}}
	var out []*models.Post

	stack, err := w.children(ctx, rootID, visited, rootID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			span.SetError(err)
			return nil, models.NewContextError(err)
		}

		post := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, post)

		kids, err := w.children(ctx, post.ID, visited, rootID)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		stack = append(stack, kids...)
	}

	span.AddAttributes(attribute.Int("tree.descendants", len(out)))
	return out, nil
}

// children lists the direct replies of parentID reversed, ready to push, and
// marks them visited.
func (w *TreeWalker) children(ctx context.Context, parentID string, visited map[string]struct{}, rootID string) ([]*models.Post, error) {
	kids, err := w.posts.ListDirectChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	reversed := make([]*models.Post, 0, len(kids))
	for i := len(kids) - 1; i >= 0; i-- {
		kid := kids[i]
		if _, seen := visited[kid.ID]; seen {
			observability.CorruptTrees.Inc()
			middleware.Logger.ErrorContext(ctx, "Corrupt thread detected",
				slog.String("root_id", rootID),
				slog.String("post_id", kid.ID),
				slog.String("parent_id", parentID),
			)
			return nil, models.NewCorruptTreeError(rootID, kid.ID)
		}
		visited[kid.ID] = struct{}{}
		reversed = append(reversed, kid)
	}
	return reversed, nil
}
