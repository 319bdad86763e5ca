package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"nerdtalk/internal/models"
	"nerdtalk/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNerdTalkLifecycle(t *testing.T) {
	ts := setupServer(t, testConfig(), nil)
	aliceToken, aliceID := ts.onboard(t, "alice")
	bobToken, _ := ts.onboard(t, "bob")

	rootID := ts.createPost(t, aliceToken, "Is Go a good fit for this?")
	childID := ts.reply(t, bobToken, rootID, "Absolutely, it is.")
	grandchildID := ts.reply(t, aliceToken, childID, "Glad you agree!")

	resp := ts.do(t, http.MethodGet, "/api/nerdtalks/"+rootID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view models.ThreadView
	decode(t, resp, &view)
	assert.Equal(t, rootID, view.ID)
	require.NotNil(t, view.Author)
	assert.Equal(t, aliceID, view.Author.ID)
	require.Len(t, view.Replies, 1)
	assert.Equal(t, childID, view.Replies[0].ID)
	require.Len(t, view.Replies[0].Replies, 1)
	assert.Equal(t, grandchildID, view.Replies[0].Replies[0].ID)

	// Only the author may delete.
	resp = ts.do(t, http.MethodDelete, "/api/nerdtalks/"+rootID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/nerdtalks/"+rootID, aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deleted struct {
		Deleted int64    `json:"deleted"`
		PostIDs []string `json:"post_ids"`
	}
	decode(t, resp, &deleted)
	assert.EqualValues(t, 3, deleted.Deleted)
	assert.ElementsMatch(t, []string{rootID, childID, grandchildID}, deleted.PostIDs)

	for _, id := range []string{rootID, childID, grandchildID} {
		resp = ts.do(t, http.MethodGet, "/api/nerdtalks/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, id)
	}

	resp = ts.do(t, http.MethodDelete, "/api/nerdtalks/"+rootID, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/users/"+aliceID+"/nerdtalks", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Posts []*models.ThreadNode `json:"posts"`
	}
	decode(t, resp, &listing)
	assert.Empty(t, listing.Posts)
}

func TestCreateNerdTalk_Validation(t *testing.T) {
	ts := setupServer(t, testConfig(), nil)
	token, _ := ts.onboard(t, "alice")

	tests := []struct {
		name string
		body any
	}{
		{name: "too short", body: map[string]string{"text": "ab"}},
		{name: "blank", body: map[string]string{"text": "     "}},
		{name: "missing", body: map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/api/nerdtalks", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, models.CodeValidation, decodeError(t, resp).Code)
		})
	}

	resp := ts.do(t, http.MethodGet, "/api/nerdtalks", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var feed models.FeedPage
	decode(t, resp, &feed)
	assert.Empty(t, feed.Posts)
}

func TestReplyToNerdTalk_MissingParent(t *testing.T) {
	ts := setupServer(t, testConfig(), nil)
	token, _ := ts.onboard(t, "alice")

	resp := ts.do(t, http.MethodPost, "/api/nerdtalks/does-not-exist/replies", token,
		map[string]string{"text": "into the void"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decodeError(t, resp).Code)
}

func TestGetFeed_Pagination(t *testing.T) {
	ts := setupServer(t, testConfig(), nil)
	_, aliceID := ts.onboard(t, "alice")

	ctx := context.Background()
	for i := 0; i < 45; i++ {
		_, err := ts.srv.postService.Create(ctx, service.CreatePostInput{
			AuthorID: aliceID,
			Text:     fmt.Sprintf("post number %d", i),
		})
		require.NoError(t, err)
	}

	tests := []struct {
		query   string
		wantLen int
		hasMore bool
	}{
		{query: "?page=1&page_size=20", wantLen: 20, hasMore: true},
		{query: "?page=2&page_size=20", wantLen: 20, hasMore: true},
		{query: "?page=3&page_size=20", wantLen: 5, hasMore: false},
		{query: "?page=4&page_size=20", wantLen: 0, hasMore: false},
		{query: "", wantLen: 20, hasMore: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, "/api/nerdtalks"+tt.query, "", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var feed models.FeedPage
			decode(t, resp, &feed)
			assert.Len(t, feed.Posts, tt.wantLen)
			assert.Equal(t, tt.hasMore, feed.HasMore)
		})
	}
}

func TestGetCommunityNerdTalks(t *testing.T) {
	ts := setupServer(t, testConfig(), nil)
	token, _ := ts.onboard(t, "alice")

	community, err := ts.srv.communityService.Create(context.Background(), service.CreateCommunityInput{
		ExternalID: "org_1",
		Name:       "Gophers",
		Slug:       "gophers",
	})
	require.NoError(t, err)

	resp := ts.do(t, http.MethodPost, "/api/nerdtalks", token, map[string]string{
		"text":         "community post",
		"community_id": "org_1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var node models.ThreadNode
	decode(t, resp, &node)
	require.NotNil(t, node.Community)
	assert.Equal(t, community.ID, node.Community.ID)

	// Unknown organizations post without a community.
	resp = ts.do(t, http.MethodPost, "/api/nerdtalks", token, map[string]string{
		"text":         "loose post",
		"community_id": "org_missing",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var loose models.ThreadNode
	decode(t, resp, &loose)
	assert.Nil(t, loose.CommunityID)

	resp = ts.do(t, http.MethodGet, "/api/communities/"+community.ID+"/nerdtalks", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Posts []*models.ThreadNode `json:"posts"`
	}
	decode(t, resp, &listing)
	require.Len(t, listing.Posts, 1)
	assert.Equal(t, node.ID, listing.Posts[0].ID)

	resp = ts.do(t, http.MethodGet, "/api/communities/missing/nerdtalks", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateMyProfile(t *testing.T) {
	ts := setupServer(t, testConfig(), nil)
	token := signToken(t, "user_1", nil)

	resp := ts.do(t, http.MethodPut, "/api/users/me", token, map[string]string{
		"username": "no spaces allowed",
		"name":     "User",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPut, "/api/users/me", token, map[string]string{
		"username": "Gopher_42",
		"name":     "Gopher",
		"bio":      "writes Go",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user models.User
	decode(t, resp, &user)
	assert.Equal(t, "gopher_42", user.Username)
	assert.Equal(t, "user_1", user.ExternalID)
	assert.True(t, user.Onboarded)

	resp = ts.do(t, http.MethodPut, "/api/users/me", "", map[string]string{"username": "gopher", "name": "G"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
