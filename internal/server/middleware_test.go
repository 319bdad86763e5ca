package server

import (
	"net/http"
	"testing"
	"time"

	"nerdtalk/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_AuthRequired(t *testing.T) {
	cfg := testConfig()
	cfg.JWTIssuer = "nerdtalk-identity"
	cfg.JWTAudience = "nerdtalk-api"
	ts := setupServer(t, cfg, nil)

	app := fiber.New()
	app.Get("/protected", ts.srv.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"externalID": currentExternalID(c),
			"userID":     currentUserID(c),
		})
	})

	valid := func(c *jwt.RegisteredClaims) {
		c.Issuer = "nerdtalk-identity"
		c.Audience = jwt.ClaimStrings{"nerdtalk-api"}
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{name: "Missing header", authHeader: "", expectedStatus: http.StatusUnauthorized},
		{name: "Wrong scheme", authHeader: "Basic abc", expectedStatus: http.StatusUnauthorized},
		{name: "Garbage token", authHeader: "Bearer not-a-jwt", expectedStatus: http.StatusUnauthorized},
		{
			name:           "Valid token",
			authHeader:     "Bearer " + signToken(t, "user_1", valid),
			expectedStatus: http.StatusOK,
		},
		{
			name: "Wrong issuer",
			authHeader: "Bearer " + signToken(t, "user_1", func(c *jwt.RegisteredClaims) {
				valid(c)
				c.Issuer = "someone-else"
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Wrong audience",
			authHeader: "Bearer " + signToken(t, "user_1", func(c *jwt.RegisteredClaims) {
				valid(c)
				c.Audience = jwt.ClaimStrings{"other-client"}
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Expired token",
			authHeader: "Bearer " + signToken(t, "user_1", func(c *jwt.RegisteredClaims) {
				valid(c)
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Missing subject",
			authHeader: "Bearer " + signToken(t, "", func(c *jwt.RegisteredClaims) {
				valid(c)
			}),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestServer_AuthRequired_ResolvesKnownUser(t *testing.T) {
	ts := setupServer(t, testConfig(), nil)
	_, userID := ts.onboard(t, "user_1")

	app := fiber.New()
	app.Get("/protected", ts.srv.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"externalID": currentExternalID(c), "userID": currentUserID(c)})
	})

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user_1", nil))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "user_1", body["externalID"])
	assert.Equal(t, userID, body["userID"])
}

func TestServer_OnboardedRequired(t *testing.T) {
	ts := setupServer(t, testConfig(), nil)

	resp := ts.do(t, http.MethodPost, "/api/nerdtalks", signToken(t, "stranger", nil),
		map[string]string{"text": "hello there"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, decodeError(t, resp).Code)
}

func TestServer_PostRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.RateLimitPostsPerMinute = 2
	ts := setupServer(t, cfg, rdb)
	token, _ := ts.onboard(t, "user_1")

	ts.createPost(t, token, "first post")
	ts.createPost(t, token, "second post")

	resp := ts.do(t, http.MethodPost, "/api/nerdtalks", token, map[string]string{"text": "third post"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Reads are not limited.
	resp = ts.do(t, http.MethodGet, "/api/nerdtalks", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_HealthChecks(t *testing.T) {
	t.Run("without redis", func(t *testing.T) {
		ts := setupServer(t, testConfig(), nil)

		resp := ts.do(t, http.MethodGet, "/health/live", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = ts.do(t, http.MethodGet, "/health/ready", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		decode(t, resp, &body)
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, "healthy", body.Checks["store"])
		assert.Equal(t, "disabled", body.Checks["redis"])
	})

	t.Run("redis down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = rdb.Close() })
		ts := setupServer(t, testConfig(), rdb)
		mr.SetError("ERR injected failure")

		resp := ts.do(t, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestServer_Metrics(t *testing.T) {
	ts := setupServer(t, testConfig(), nil)
	ts.do(t, http.MethodGet, "/health/live", "", nil)

	resp := ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
