package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/lock"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the database the server runs against
type Store interface {
	DB() *sql.DB
	Health(ctx context.Context) map[string]string
	Close() error
}

// Deps are the external collaborators of the server. Redis is optional:
// without it checkout locks are process local and rate limiting is off.
type Deps struct {
	Redis    *redis.Client
	Gateway  payment.Gateway
	Notifier notify.Notifier
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	store  Store
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, store Store, deps Deps) *Server {
	s := &Server{
		config: cfg,
		logger: logger,
		store:  store,
		redis:  deps.Redis,
	}

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      s.routes(deps),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) routes(deps Deps) http.Handler {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(s.logger))
	router.Use(custommiddleware.LoggingMiddleware(s.logger))
	router.Use(custommiddleware.CORSMiddleware(s.config.CORS.AllowedOrigins, s.config.IsDevelopment()))

	router.Get("/health", s.health)

	db := s.store.DB()
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	locker := lock.NewMemoryLocker()
	if deps.Redis != nil {
		locker = lock.NewRedisLocker(deps.Redis, "storefront")
	}

	userService := service.NewUserService(userRepo, refreshTokenRepo, s.config.JWT)
	categoryService := service.NewCategoryService(categoryRepo)
	productService := service.NewProductService(productRepo, categoryRepo)
	orderService := service.NewOrderService(orderRepo, deps.Notifier, s.logger)
	checkoutService := service.NewCheckoutService(userRepo, productRepo, orderRepo, deps.Gateway, locker, deps.Notifier, s.logger)

	authMiddleware := custommiddleware.Authenticate(userService, userService, s.logger)

	router.Route("/api/v1", func(r chi.Router) {
		if deps.Redis != nil && s.config.RateLimit.Requests > 0 {
			r.Use(custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
				RequestsPerWindow: s.config.RateLimit.Requests,
				Window:            s.config.RateLimit.Window,
				KeyPrefix:         "storefront:ratelimit",
			}, s.logger))
		}

		r.Route("/auth", func(r chi.Router) {
			transport.NewAuthHandler(userService, orderService, s.logger).RegisterRoutes(r, authMiddleware)
		})
		r.Route("/category", func(r chi.Router) {
			transport.NewCategoryHandler(categoryService, s.logger).RegisterRoutes(r, authMiddleware)
		})
		r.Route("/product", func(r chi.Router) {
			transport.NewProductHandler(productService, s.logger).RegisterRoutes(r, authMiddleware)
			transport.NewCheckoutHandler(checkoutService, s.logger).RegisterRoutes(r, authMiddleware)
		})
	})

	return router
}

// health reports database and Redis reachability; any component down
// turns the answer into a 503
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	report := map[string]interface{}{"status": "ok"}

	db := s.store.Health(r.Context())
	report["database"] = db
	if db["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			report["redis"] = map[string]string{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			report["redis"] = map[string]string{"status": "up"}
		}
	}

	if status != http.StatusOK {
		report["status"] = "degraded"
	}
	custommiddleware.RespondWithJSON(w, status, report)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close Redis client", zap.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
