package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"nerdtalk/internal/cache"
	"nerdtalk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeDeleter_RemovesWholeSubtree(t *testing.T) {
	t.Parallel()
	env := setupEnv(t, nil)
	ctx := context.Background()
	alice := env.onboard(t, "alice")
	bob := env.onboard(t, "bob")

	root := env.post(t, alice, "root post")
	r1 := env.reply(t, bob, root.ID, "reply one")
	r2 := env.reply(t, alice, r1.ID, "reply two")
	env.reply(t, bob, r2.ID, "reply three")
	other := env.post(t, bob, "unrelated")

	res, err := env.engine.Deleter.DeletePost(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Targeted)
	assert.EqualValues(t, 4, res.Deleted)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, res.AuthorIDs)
	assert.Empty(t, res.CommunityIDs)

	for _, id := range res.PostIDs {
		_, err := env.engine.Stores.Posts.GetByID(ctx, id)
		assert.True(t, models.IsNotFound(err), "post %s should be gone", id)
	}
	assert.EqualValues(t, 1, env.countPosts(t))

	aliceIDs, err := env.engine.Index.AuthorPostIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, aliceIDs)
	bobIDs, err := env.engine.Index.AuthorPostIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, bobIDs)
}

func TestCascadeDeleter_ScrubsCommunityIndex(t *testing.T) {
	t.Parallel()
	env := setupEnv(t, nil)
	ctx := context.Background()
	u := env.onboard(t, "user_1")
	c := env.community(t, "org_1")

	p, err := env.posts.Create(ctx, CreatePostInput{AuthorID: u.ID, Text: "in a community", CommunityExternalID: "org_1"})
	require.NoError(t, err)
	require.NotNil(t, p.CommunityID)

	res, err := env.engine.Deleter.DeletePost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, res.CommunityIDs)

	got, err := env.engine.Index.CommunityPostIDs(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCascadeDeleter_SecondDeleteIsNotFound(t *testing.T) {
	t.Parallel()
	env := setupEnv(t, nil)
	ctx := context.Background()
	u := env.onboard(t, "user_1")
	root := env.post(t, u, "root post")
	env.reply(t, u, root.ID, "reply")

	_, err := env.engine.Deleter.DeletePost(ctx, root.ID)
	require.NoError(t, err)

	_, err = env.engine.Deleter.DeletePost(ctx, root.ID)
	assertAppError(t, err, models.CodeNotFound)
	assert.Zero(t, env.countPosts(t))
}

func TestCascadeDeleter_DeletingReplyKeepsParent(t *testing.T) {
	t.Parallel()
	env := setupEnv(t, nil)
	ctx := context.Background()
	u := env.onboard(t, "user_1")
	root := env.post(t, u, "root post")
	gone := env.reply(t, u, root.ID, "to be deleted")
	kept := env.reply(t, u, root.ID, "stays")

	_, err := env.engine.Deleter.DeletePost(ctx, gone.ID)
	require.NoError(t, err)

	view, err := env.posts.Thread(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, nodeIDs(view.Replies))
}

func TestCascadeDeleter_ScrubFailureSurfacesAfterDelete(t *testing.T) {
	t.Parallel()
	posts := memPosts(
		&models.Post{ID: "root", AuthorID: "u1"},
		&models.Post{ID: "child", AuthorID: "u2", ParentID: strPtr("root")},
	)
	index := noopIndexRepo()
	scrubErr := models.NewStorageUnavailableError(errors.New("index store unavailable"))
	index.scrubOwnersFn = func(context.Context, []string, []string, []string) error { return scrubErr }

	engine := NewEngine(stubStores(posts, index, memUsers(), emptyCommunityRepo()), nil)
	res, err := engine.Deleter.DeletePost(context.Background(), "root")
	require.Error(t, err)
	assert.True(t, models.IsStorageUnavailable(err))
	require.NotNil(t, res)
	assert.EqualValues(t, 2, res.Deleted)

	_, err = posts.GetByID(context.Background(), "root")
	assert.True(t, models.IsNotFound(err), "delete is not rolled back")
}

func TestCascadeDeleter_CompletesAfterCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	posts := memPosts(&models.Post{ID: "root", AuthorID: "u1"})
	inner := posts.deleteByIDsFn
	posts.deleteByIDsFn = func(c context.Context, ids []string) (int64, error) {
		cancel()
		return inner(c, ids)
	}
	index := noopIndexRepo()
	var scrubbed []string
	index.scrubOwnersFn = func(c context.Context, postIDs, userIDs, _ []string) error {
		if err := c.Err(); err != nil {
			return err
		}
		scrubbed = postIDs
		assert.Equal(t, []string{"u1"}, userIDs)
		return nil
	}

	engine := NewEngine(stubStores(posts, index, memUsers(), emptyCommunityRepo()), nil)
	_, err := engine.Deleter.DeletePost(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, scrubbed)
}

func TestCascadeDeleter_CorruptTreeDeletesNothing(t *testing.T) {
	t.Parallel()
	posts := memPosts(
		&models.Post{ID: "a", AuthorID: "u1", ParentID: strPtr("b")},
		&models.Post{ID: "b", AuthorID: "u1", ParentID: strPtr("a")},
	)
	deleted := false
	posts.deleteByIDsFn = func(context.Context, []string) (int64, error) {
		deleted = true
		return 0, nil
	}

	engine := NewEngine(stubStores(posts, noopIndexRepo(), memUsers(), emptyCommunityRepo()), nil)
	_, err := engine.Deleter.DeletePost(context.Background(), "a")
	assertAppError(t, err, models.CodeCorruptTree)
	assert.False(t, deleted)
}

func TestCascadeDeleter_InvalidatesCachedAncestors(t *testing.T) {
	t.Parallel()
	mr, rdb := setupRedis(t)
	env := setupEnv(t, rdb)
	ctx := context.Background()
	u := env.onboard(t, "user_1")

	// chain[0] > chain[1] > ... > chain[5]; delete chain[4].
	chain := []*models.ThreadNode{env.post(t, u, "top")}
	for i := 1; i <= 5; i++ {
		chain = append(chain, env.reply(t, u, chain[i-1].ID, "level "+strconv.Itoa(i)))
	}
	for _, n := range chain {
		_, err := env.posts.Thread(ctx, n.ID)
		require.NoError(t, err)
		require.True(t, mr.Exists(cache.ThreadKey(n.ID)))
	}

	_, err := env.engine.Deleter.DeletePost(ctx, chain[4].ID)
	require.NoError(t, err)

	for _, n := range chain[:1] {
		assert.True(t, mr.Exists(cache.ThreadKey(n.ID)), "thread %s should stay cached", n.ID)
	}
	for _, n := range chain[1:] {
		assert.False(t, mr.Exists(cache.ThreadKey(n.ID)), "thread %s should be invalidated", n.ID)
	}

	view, err := env.posts.Thread(ctx, chain[2].ID)
	require.NoError(t, err)
	require.Len(t, view.Replies, 1)
	assert.Equal(t, chain[3].ID, view.Replies[0].ID)
	assert.Empty(t, view.Replies[0].Replies)
}
