package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/o2a/bapsim/config"
	"github.com/o2a/bapsim/internal/chat"
	"github.com/o2a/bapsim/internal/db"
	"github.com/o2a/bapsim/internal/handlers"
	"github.com/o2a/bapsim/internal/logging"
	"github.com/o2a/bapsim/internal/metrics"
	"github.com/o2a/bapsim/internal/mq"
	"github.com/o2a/bapsim/internal/services"
	"github.com/o2a/bapsim/internal/session"
	"github.com/o2a/bapsim/internal/storage"
	"github.com/o2a/bapsim/internal/store"
	"github.com/o2a/bapsim/internal/web"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	client     *mongo.Client
	queue      *mq.MQ
	logger     *zap.Logger
}

// New connects to the backing services and constructs a Server. Image
// storage, the message queue and the chatbot are optional and disabled when
// not configured.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, database, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	renderer, err := web.NewRenderer()
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	var images services.ImageStore
	objects, err := storage.Open(ctx, cfg.Storage)
	switch {
	case err == nil:
		images = objects
		logger.Info("image storage enabled", zap.String("backend", cfg.Storage.Backend), zap.String("bucket", objects.Bucket()))
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Warn("image storage disabled, uploads with an image will be rejected")
	default:
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var events services.ImageEvents
	queue, err := mq.Open(ctx, cfg.MQ)
	switch {
	case err == nil:
		events = queue
		logger.Info("message queue enabled", zap.String("backend", cfg.MQ.Backend))
	case errors.Is(err, mq.ErrNotConfigured):
		logger.Info("message queue disabled, images are removed inline")
	default:
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("open mq: %w", err)
	}

	var replier services.Replier
	chatClient, err := chat.NewClient(cfg.OpenAI)
	switch {
	case err == nil:
		replier = chatClient
	case errors.Is(err, chat.ErrNotConfigured):
		logger.Warn("OPENAI_API_KEY is not set, chatbot disabled")
	default:
		if queue != nil {
			_ = queue.Close()
		}
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	userRepo := store.NewUserRepository(database)
	postRepo := store.NewPostRepository(database)
	reviewRepo := store.NewReviewRepository(database)

	promMetrics := metrics.New()

	userService := services.NewUserService(userRepo)
	postService := services.NewPostService(postRepo, reviewRepo, images, events, logger)
	dashboardService := services.NewDashboardService(userRepo, postRepo, logger)
	chatService := services.NewChatService(replier, promMetrics, logger)
	reviewService := services.NewReviewService(reviewRepo, postRepo)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.RequestLogger(logger),
		promMetrics.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(func(ctx context.Context) error {
		return db.Ping(ctx, client)
	}))
	router.Handle("/metrics", promMetrics.Handler())
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))

	handlers.AuthRouter(router, userService, sessions, logger)
	handlers.SearchRouter(router, postService, logger)
	handlers.PostRouter(router, postService, sessions, logger, cfg.MaxUploadSize)
	handlers.MyPageRouter(router, dashboardService, sessions, logger)
	handlers.ChatbotRouter(router, chatService, logger)
	handlers.ReviewRouter(router, reviewService, sessions, logger)
	handlers.PageRouter(router, handlers.NewPageHandler(renderer, sessions, postService, dashboardService, logger))

	port := cfg.ServerPort
	if port == 0 {
		port = 5004
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		client:     client,
		queue:      queue,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the backing services.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		if closeErr := s.queue.Close(); closeErr != nil {
			s.logger.Warn("failed to close message queue", zap.Error(closeErr))
		}
	}
	if s.client != nil {
		if closeErr := s.client.Disconnect(ctx); closeErr != nil {
			s.logger.Warn("failed to disconnect mongo", zap.Error(closeErr))
		}
	}
	return err
}
