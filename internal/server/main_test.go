package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"nerdtalk/internal/config"
	"nerdtalk/internal/database"
	"nerdtalk/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

const testJWTSecret = "test-secret-key-12345678901234567890123456789012"

func testConfig() *config.Config {
	return &config.Config{
		Port:                    "0",
		Env:                     "test",
		JWTSecret:               testJWTSecret,
		StoreBackend:            config.StoreSQL,
		DBDriver:                config.DriverSQLite,
		DefaultPageSize:         20,
		MaxPageSize:             100,
		ThreadCacheTTLSeconds:   60,
		RateLimitEnabled:        true,
		RateLimitPostsPerMinute: 100,
	}
}

type testServer struct {
	srv *Server
	app *fiber.App
}

// setupServer builds the full app over a sqlite database private to the test.
func setupServer(t *testing.T, cfg *config.Config, rdb *redis.Client) *testServer {
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

	srv, err := NewServerWithDeps(cfg, repository.NewSQLStores(db), rdb)
	require.NoError(t, err)
	return &testServer{srv: srv, app: srv.App()}
}

func signToken(t *testing.T, subject string, mutate func(*jwt.RegisteredClaims)) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	if mutate != nil {
		mutate(&claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

// do sends a request through the app. body is JSON encoded when non-nil.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// onboard completes onboarding for externalID and returns its bearer token
// and internal id.
func (ts *testServer) onboard(t *testing.T, externalID string) (string, string) {
	t.Helper()
	token := signToken(t, externalID, nil)
	resp := ts.do(t, http.MethodPut, "/api/users/me", token, map[string]string{
		"username": "u_" + externalID,
		"name":     "User " + externalID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user struct {
		ID string `json:"id"`
	}
	decode(t, resp, &user)
	return token, user.ID
}

func (ts *testServer) createPost(t *testing.T, token, text string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/nerdtalks", token, map[string]string{"text": text})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var node struct {
		ID string `json:"id"`
	}
	decode(t, resp, &node)
	return node.ID
}

func (ts *testServer) reply(t *testing.T, token, parentID, text string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/nerdtalks/"+parentID+"/replies", token, map[string]string{"text": text})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var node struct {
		ID string `json:"id"`
	}
	decode(t, resp, &node)
	return node.ID
}

func decode(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	decode(t, resp, &body)
	return body
}
