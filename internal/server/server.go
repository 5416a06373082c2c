package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tasktrack/apiserver/config"
	"github.com/tasktrack/apiserver/internal/auth"
	"github.com/tasktrack/apiserver/internal/db"
	"github.com/tasktrack/apiserver/internal/handlers"
	"github.com/tasktrack/apiserver/internal/logger"
	"github.com/tasktrack/apiserver/internal/metrics"
	"github.com/tasktrack/apiserver/internal/mq"
	"github.com/tasktrack/apiserver/internal/notify"
	"github.com/tasktrack/apiserver/internal/services"
	"github.com/tasktrack/apiserver/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	logger     *slog.Logger
}

// New constructs a Server with its storage, message queue and routes.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWT)
	if err != nil {
		return nil, err
	}

	s := &Server{logger: log}

	var (
		userRepo services.UserRepository
		taskRepo services.TaskRepository
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		mem := store.NewMemory()
		userRepo, taskRepo = mem.Users(), mem.Tasks()
		log.Warn("using in-memory storage, data is lost on restart")
	default:
		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.db = dbConn
		userRepo, taskRepo = store.NewUserRepository(dbConn), store.NewTaskRepository(dbConn)
	}

	m := metrics.New()
	taskOpts := []services.TaskServiceOption{
		services.WithLogger(log),
		services.WithTransitionObserver(m),
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	switch {
	case errors.Is(err, mq.ErrDisabled):
	case err != nil:
		s.close()
		return nil, err
	default:
		s.mq = queue
		taskOpts = append(taskOpts, services.WithEventPublisher(mq.NewTaskEventPublisher(queue, cfg.MQ.Channel)))
		log.Info("publishing task events", slog.String("backend", cfg.MQ.Backend), slog.String("channel", cfg.MQ.Channel))
	}

	userService := services.NewUserService(userRepo, auth.NewBcryptHasher(), notify.New(cfg.SMTP, log), log)
	taskService := services.NewTaskService(taskRepo, userRepo, taskOpts...)

	s.router = newRouter(log, m, handlers.NewAuthHandler(userService, tokens, log), handlers.NewTaskHandler(taskService, log))

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func newRouter(log *slog.Logger, m *metrics.Metrics, authHandler *handlers.AuthHandler, taskHandler *handlers.TaskHandler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logger.StructuredLogger(log),
		middleware.Recoverer,
		m.Middleware,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}),
	)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Task tracking API is running"}` + "\n"))
	})
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", m.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, taskHandler, authHandler.RequireAuth)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and releases the database and broker.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.logger.Warn("failed to close message queue", slog.Any("error", err))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
