// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "mindlog/docs" // swagger docs
	"mindlog/internal/bootstrap"
	"mindlog/internal/cache"
	"mindlog/internal/config"
	"mindlog/internal/middleware"
	"mindlog/internal/models"
	"mindlog/internal/notifications"
	"mindlog/internal/repository"
	"mindlog/internal/service"
	"mindlog/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          storage.Store
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	auth           *middleware.Auth
	userRepo       repository.UserRepository
	logRepo        repository.LogRepository
	commentRepo    repository.CommentRepository
	likeRepo       repository.LikeRepository
	notifier       *notifications.Notifier
	logHub         *notifications.LogHub
	userService    *service.UserService
	logService     *service.LogService
	commentService *service.CommentService
	likeService    *service.LikeService
	imageService   *service.ImageService
}

// NewServer connects to the database, Redis and the blob store and wires
// a server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, rt.DB, rt.Redis, rt.Store)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; realtime events, the token blacklist and rate
// limits are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.Store) (*Server, error) {
	graphs, err := cache.NewGraphCache(cfg.GraphCacheSize)
	if err != nil {
		return nil, fmt.Errorf("graph cache: %w", err)
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		store:          store,
		promMiddleware: middleware.InitMetrics("mindlog-api"),
		auth:           middleware.NewAuth(cfg.JWTSecret, redisClient),
		userRepo:       repository.NewUserRepository(db),
		logRepo:        repository.NewLogRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		likeRepo:       repository.NewLikeRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		logHub:         notifications.NewLogHub(),
	}

	s.userService = service.NewUserService(s.userRepo)
	s.imageService = service.NewImageService(store, cfg)
	s.logService = service.NewLogService(s.logRepo, s.imageService, graphs, s.userService.IsAdmin)
	s.commentService = service.NewCommentService(s.commentRepo, s.logRepo, s.notifier)
	s.likeService = service.NewLikeService(s.likeRepo, s.logRepo, s.notifier)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Swagger UI and media are embedded by the web client.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
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
	app.Get("/swagger/*", swagger.HandlerDefault)

	if fs, ok := s.store.(*storage.FSStore); ok && strings.HasPrefix(fs.BaseURL, "/") {
		app.Static(fs.BaseURL, fs.Root, fiber.Static{MaxAge: 86400})
	}

	required := s.auth.AuthRequired()
	optional := s.auth.OptionalAuth()

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", required, s.Logout)
	auth.Get("/me", required, s.Me)

	logs := api.Group("/logs")
	logs.Get("/", optional, s.ListLogs)
	logs.Post("/", required, middleware.RateLimit(s.redis, 10, time.Minute, "create_log"), s.CreateLog)
	// Specific routes before /:id
	logs.Get("/search", optional, middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.SearchLogs)
	logs.Get("/mine", required, s.ListMyLogs)
	logs.Get("/liked", required, s.ListLikedLogs)
	logs.Get("/related-candidates", required, s.RelatedCandidates)
	logs.Get("/:id/graph", optional, s.GetLogGraph)
	logs.Get("/:id/comments", optional, s.ListComments)
	logs.Post("/:id/comments", required, middleware.RateLimit(s.redis, 5, time.Minute, "create_comment"), s.CreateComment)
	logs.Post("/:id/like", required, s.ToggleLike)
	logs.Get("/:id", optional, s.GetLog)
	logs.Put("/:id", required, s.UpdateLog)
	logs.Delete("/:id", required, s.DeleteLog)

	api.Post("/images", required, middleware.RateLimit(s.redis, 20, time.Minute, "upload_image"), s.UploadImage)

	app.Get("/ws/logs/:id", optional, s.LogWebSocketUpgrade, s.LogWebSocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	// Room for the largest multipart log: every image at the size limit.
	bodyLimit := (s.config.ImageMaxUploadSizeMB*(models.MaxSupportingImages+1) + 1) * 1024 * 1024
	app := fiber.New(fiber.Config{
		AppName:   "mindlog API",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, err)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start wires realtime events and serves until the app is shut down.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		if err := s.logHub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start log hub wiring", "hub", s.logHub.Name(), "error", err)
		}
	}

	middleware.Logger.Info("Server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if err := s.logHub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", "hub", s.logHub.Name(), "error", err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
