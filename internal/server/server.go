package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agribusiness-pro/apiserver/config"
	"github.com/agribusiness-pro/apiserver/internal/db"
	"github.com/agribusiness-pro/apiserver/internal/handlers"
	"github.com/agribusiness-pro/apiserver/internal/logging"
	"github.com/agribusiness-pro/apiserver/internal/mq"
	"github.com/agribusiness-pro/apiserver/internal/ratelimit"
	"github.com/agribusiness-pro/apiserver/internal/services"
	"github.com/agribusiness-pro/apiserver/internal/storage"
	"github.com/agribusiness-pro/apiserver/internal/store"
	"github.com/agribusiness-pro/apiserver/internal/tokens"
)

const (
	defaultPort     = 5000
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// securityHeaders are set on every response.
var securityHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data: https:"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"Referrer-Policy", "no-referrer"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
}

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	mq         *mq.MQ
	logger     *zap.Logger
}

// Dependencies are the collaborators the HTTP routes are built from. A nil
// Limiter disables rate limiting.
type Dependencies struct {
	Users       *services.UserService
	Dashboard   *services.DashboardService
	Issuer      *tokens.Issuer
	Revocations handlers.Revocations
	Limiter     *ratelimit.Limiter
	RateLimit   config.RateLimitConfig
	FrontendURL string
	Logger      *zap.Logger
}

// New connects every backing service and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	objectStorage, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}

	userService := services.NewUserService(
		store.NewUserRepository(dbConn),
		store.NewVerificationRepository(dbConn),
		services.WithPublisher(queue),
		services.WithAvatarStore(objectStorage),
		services.WithLogger(logger.Named("users")),
		services.WithVerificationTTL(cfg.Auth.VerificationTTL),
	)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(redisClient)
	}

	router := NewRouter(Dependencies{
		Users:       userService,
		Dashboard:   services.NewDashboardService(nil),
		Issuer:      tokens.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Revocations: tokens.NewDenylist(redisClient),
		Limiter:     limiter,
		RateLimit:   cfg.RateLimit,
		FrontendURL: cfg.FrontendURL,
		Logger:      logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = defaultPort
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		redis:      redisClient,
		mq:         queue,
		logger:     logger,
	}, nil
}

// NewRouter builds the /api route tree.
func NewRouter(deps Dependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(logger.Named("http")),
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
	)
	for _, h := range securityHeaders {
		router.Use(middleware.SetHeader(h[0], h[1]))
	}
	if deps.FrontendURL != "" {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{deps.FrontendURL},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Issuer, deps.Revocations, logger.Named("auth"))
	profileHandler := handlers.NewProfileHandler(deps.Users, logger.Named("profile"))
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard)

	limit := func(policy ratelimit.Policy) func(http.Handler) http.Handler {
		if deps.Limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return deps.Limiter.Middleware(policy, logger.Named("ratelimit"))
	}
	general := ratelimit.Policy{
		Name:    "general",
		Max:     deps.RateLimit.GeneralMax,
		Window:  deps.RateLimit.Window,
		Message: "Too many requests from this IP, please try again later.",
	}
	auth := ratelimit.Policy{
		Name:    "auth",
		Max:     deps.RateLimit.AuthMax,
		Window:  deps.RateLimit.Window,
		Message: "Too many authentication attempts, please try again later.",
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(limit(general))
		r.Get("/health", handlers.Healthz)
		r.Get("/docs", handlers.Docs)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler, limit(auth))
		})
		r.Route("/users", func(r chi.Router) {
			handlers.ProfileRouter(r, profileHandler, authHandler.RequireAuth)
		})
		r.Route("/dashboard", func(r chi.Router) {
			handlers.DashboardRouter(r, dashboardHandler, authHandler.RequireAuth)
		})
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes owned connections.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		err = errors.Join(err, s.mq.Close())
	}
	if s.redis != nil {
		err = errors.Join(err, s.redis.Close())
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
