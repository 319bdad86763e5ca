package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nerdtalk/internal/cache"
	"nerdtalk/internal/database"
	"nerdtalk/internal/models"
	"nerdtalk/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db          *gorm.DB
	engine      *Engine
	posts       *PostService
	users       *UserService
	communities *CommunityService
}

// setupEnv wires the services over a sqlite database private to the test.
// Pass a non-nil redis client to enable the thread cache.
func setupEnv(t *testing.T, rdb *redis.Client) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nerdtalk.db")
	db, err := database.Open(sqlite.Open(database.SQLiteDSN(path)))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	engine := NewEngine(repository.NewSQLStores(db), cache.NewThreadCache(rdb, time.Minute))
	return &testEnv{
		db:          db,
		engine:      engine,
		posts:       NewPostService(engine, 20, 100),
		users:       NewUserService(engine.Stores.Users),
		communities: NewCommunityService(engine),
	}
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func (e *testEnv) onboard(t *testing.T, externalID string) *models.User {
	t.Helper()
	u, err := e.users.Onboard(context.Background(), OnboardInput{
		ExternalID: externalID,
		Username:   fmt.Sprintf("u_%s", externalID),
		Name:       externalID,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) community(t *testing.T, externalID string) *models.Community {
	t.Helper()
	c, err := e.communities.Create(context.Background(), CreateCommunityInput{
		ExternalID: externalID,
		Name:       externalID,
		Slug:       "org-" + strings.ReplaceAll(strings.ToLower(externalID), "_", "-"),
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) post(t *testing.T, author *models.User, text string) *models.ThreadNode {
	t.Helper()
	n, err := e.posts.Create(context.Background(), CreatePostInput{AuthorID: author.ID, Text: text})
	require.NoError(t, err)
	return n
}

func (e *testEnv) reply(t *testing.T, author *models.User, parentID, text string) *models.ThreadNode {
	t.Helper()
	n, err := e.posts.Reply(context.Background(), ReplyInput{ParentID: parentID, AuthorID: author.ID, Text: text})
	require.NoError(t, err)
	return n
}

func (e *testEnv) countPosts(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Post{}).Count(&n).Error)
	return n
}

func ids(nodes []*models.Post) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func nodeIDs(nodes []*models.ThreadNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

// assertAppError asserts that err is an AppError carrying code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func strPtr(s string) *string { return &s }
