package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/database"
	custommiddleware "product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"
	"product-catalog/internal/transport"
	"product-catalog/internal/upload"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires the catalog API. redisClient may be nil, in which case write
// routes are not rate limited.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health()
		if health["status"] != "up" {
			logger.Warn("Health check failed", zap.Any("database", health))
			custommiddleware.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":   "unavailable",
				"database": health,
			})
			return
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	images := upload.NewManager(cfg.Upload.Root, cfg.Upload.PublicURL)
	router.Handle("/"+upload.PublicPrefix+"/*", uploadsHandler(images.Root()))

	productRepo := repository.NewProductRepository(db.DB())
	productService := service.NewProductService(productRepo, images, cfg.Upload.Folder, logger)
	productHandler := transport.NewProductHandler(productService, cfg.Upload.MaxBytes, logger)

	productHandler.RegisterRoutes(router, writeMiddleware(cfg, logger, redisClient)...)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

// writeMiddleware guards the routes that change the catalog
func writeMiddleware(cfg *config.Config, logger *zap.Logger, redisClient *redis.Client) []func(http.Handler) http.Handler {
	var chain []func(http.Handler) http.Handler

	if cfg.JWT.Secret != "" {
		chain = append(chain,
			custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger),
			custommiddleware.RequireAdmin(logger),
		)
	} else {
		logger.Warn("JWT_SECRET is not set; product write routes are open")
	}

	if redisClient != nil {
		chain = append(chain, custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "rate_limit:products",
		}, logger))
	}

	return chain
}

// uploadsHandler serves stored files from <root>/uploads without directory listings
func uploadsHandler(root string) http.Handler {
	prefix := "/" + upload.PublicPrefix + "/"
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(filepath.Join(root, upload.PublicPrefix))))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// NewRedisClient connects to the configured Redis and checks it answers
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}

	return client, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if err := s.db.DB().Close(); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
	}

	s.logger.Sync()
	return nil
}
