// Package server contains the HTTP handlers for the NerdTalk API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nerdtalk/internal/cache"
	"nerdtalk/internal/config"
	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"
	"nerdtalk/internal/repository"
	"nerdtalk/internal/service"
	"nerdtalk/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	stores         repository.Stores
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	rateLimiter    *middleware.RateLimiter
	closeStore     func(context.Context) error
	webhook        webhookVerifier

	postService      *service.PostService
	userService      *service.UserService
	communityService *service.CommunityService
}

// NewServer connects the configured store backend and Redis and builds a
// server over them.
func NewServer(cfg *config.Config) (*Server, error) {
	ctx := context.Background()

	handle, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cache.InitRedis(cfg.RedisURL)

	s, err := NewServerWithDeps(cfg, handle.Stores, cache.GetClient())
	if err != nil {
		_ = handle.Close(ctx)
		return nil, err
	}
	s.closeStore = handle.Close
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; thread caching and rate limiting are then off.
func NewServerWithDeps(cfg *config.Config, stores repository.Stores, redisClient *redis.Client) (*Server, error) {
	if stores.Posts == nil || stores.Index == nil || stores.Users == nil || stores.Communities == nil {
		return nil, errors.New("server requires every repository")
	}

	webhook, err := newWebhookVerifier(cfg.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}

	ttl := time.Duration(cfg.ThreadCacheTTLSeconds) * time.Second
	engine := service.NewEngine(stores, cache.NewThreadCache(redisClient, ttl))

	s := &Server{
		config:           cfg,
		stores:           stores,
		redis:            redisClient,
		promMiddleware:   middleware.InitMetrics("nerdtalk-api"),
		rateLimiter:      middleware.NewRateLimiter(redisClient, cfg.RateLimitEnabled),
		webhook:          webhook,
		postService:      service.NewPostService(engine, cfg.DefaultPageSize, cfg.MaxPageSize),
		userService:      service.NewUserService(stores.Users),
		communityService: service.NewCommunityService(engine),
	}
	return s, nil
}

// App builds the fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "NerdTalk API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	postLimit := s.config.RateLimitPostsPerMinute
	if postLimit <= 0 {
		postLimit = 10
	}

	nerdtalks := api.Group("/nerdtalks")
	nerdtalks.Get("/", s.GetFeed)
	nerdtalks.Post("/", s.AuthRequired(), s.OnboardedRequired(),
		s.rateLimiter.Limit("create_nerdtalk", postLimit, time.Minute), s.CreateNerdTalk)
	nerdtalks.Post("/:id/replies", s.AuthRequired(), s.OnboardedRequired(),
		s.rateLimiter.Limit("create_nerdtalk", postLimit, time.Minute), s.ReplyToNerdTalk)
	nerdtalks.Get("/:id", s.GetThread)
	nerdtalks.Delete("/:id", s.AuthRequired(), s.DeleteNerdTalk)

	users := api.Group("/users")
	users.Put("/me", s.AuthRequired(), s.UpdateMyProfile)
	users.Get("/:id/nerdtalks", s.GetUserNerdTalks)

	communities := api.Group("/communities")
	communities.Get("/:id/nerdtalks", s.GetCommunityNerdTalks)

	webhooks := api.Group("/webhooks")
	webhooks.Post("/identity", s.IdentityWebhook)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: an
// unconfigured client reports "disabled" without failing readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if s.stores.Ping != nil {
		if err := s.stores.Ping(ctx); err != nil {
			storeStatus = "unhealthy"
			middleware.Logger.WarnContext(ctx, "store ping failed", slog.String("error", err.Error()))
		}
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storeStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired validates the bearer token. The subject is the identity
// provider's user id; it is stored in locals as "externalID". When the user
// is already known, "userID" holds the internal id and "user" the record.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		sub, err := s.parseSubject(parts[1])
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		c.Locals("externalID", sub)

		user, err := s.userService.ResolveExternal(c.UserContext(), sub)
		switch {
		case err == nil:
			c.Locals("userID", user.ID)
			c.Locals("user", user)
			c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, user.ID))
		case models.IsNotFound(err):
			// Not onboarded yet.
		default:
			return models.RespondWithError(c, models.HTTPStatus(err), err)
		}

		return c.Next()
	}
}

func (s *Server) parseSubject(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.JWTIssuer))
	}
	if s.config.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(s.config.JWTAudience))
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", models.NewUnauthorizedError("Invalid or expired token")
	}
	if claims.Subject == "" {
		return "", models.NewUnauthorizedError("Invalid subject claim")
	}
	return claims.Subject, nil
}

// OnboardedRequired rejects users that have not finished onboarding.
// Must be placed after AuthRequired.
func (s *Server) OnboardedRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals("user").(*models.User)
		if !ok || user == nil || !user.Onboarded {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Onboarding required"))
		}
		return c.Next()
	}
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	s.app = s.App()
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.closeStore != nil {
		if err := s.closeStore(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	middleware.Logger.Info("Server shutdown complete")
	return errors.Join(errs...)
}
