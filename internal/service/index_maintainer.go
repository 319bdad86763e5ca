package service

import (
	"context"

	"nerdtalk/internal/observability"
	"nerdtalk/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// IndexMaintainer keeps the user→posts and community→posts sets in step with
// post inserts and deletes.
type IndexMaintainer struct {
	index repository.IndexRepository
}

func NewIndexMaintainer(index repository.IndexRepository) *IndexMaintainer {
	return &IndexMaintainer{index: index}
}

func (m *IndexMaintainer) RecordAuthorship(ctx context.Context, userID, postID string) error {
	return m.index.RecordAuthorship(ctx, userID, postID)
}

func (m *IndexMaintainer) RecordCommunityPost(ctx context.Context, communityID, postID string) error {
	return m.index.RecordCommunityPost(ctx, communityID, postID)
}

// Scrub removes postIDs from every owner's set.
func (m *IndexMaintainer) Scrub(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	span, ctx := observability.NewSpan(ctx, "index.scrub", attribute.Int("index.post_ids", len(postIDs)))
	defer span.End()

	err := m.index.Scrub(ctx, postIDs)
	span.SetError(err)
	return err
}

// ScrubOwners removes postIDs from the sets of the listed owners only.
func (m *IndexMaintainer) ScrubOwners(ctx context.Context, postIDs, userIDs, communityIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	span, ctx := observability.NewSpan(ctx, "index.scrub_owners",
		attribute.Int("index.post_ids", len(postIDs)),
		attribute.Int("index.users", len(userIDs)),
		attribute.Int("index.communities", len(communityIDs)),
	)
	defer span.End()

	err := m.index.ScrubOwners(ctx, postIDs, userIDs, communityIDs)
	span.SetError(err)
	return err
}

func (m *IndexMaintainer) AuthorPostIDs(ctx context.Context, userID string) ([]string, error) {
	return m.index.AuthorPostIDs(ctx, userID)
}

func (m *IndexMaintainer) CommunityPostIDs(ctx context.Context, communityID string) ([]string, error) {
	return m.index.CommunityPostIDs(ctx, communityID)
}
