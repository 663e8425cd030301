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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/projectsentinel/apiserver/config"
	"github.com/projectsentinel/apiserver/internal/advisory"
	"github.com/projectsentinel/apiserver/internal/cache"
	"github.com/projectsentinel/apiserver/internal/db"
	"github.com/projectsentinel/apiserver/internal/handlers"
	"github.com/projectsentinel/apiserver/internal/metrics"
	"github.com/projectsentinel/apiserver/internal/mq"
	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/internal/storage"
	"github.com/projectsentinel/apiserver/internal/store"
)

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	cache      *cache.LeaderboardCache
	logger     *slog.Logger
}

// New connects every configured backend and registers all routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	srv := &Server{db: dbConn, logger: logger}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		srv.close()
		return nil, err
	}
	srv.mq = broker

	leaderboardCache, err := cache.Open(ctx, cfg.Redis)
	if err != nil {
		srv.close()
		return nil, err
	}
	srv.cache = leaderboardCache

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		srv.close()
		return nil, err
	}

	srv.router = srv.routes(cfg, objects)
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *Server) routes(cfg config.Config, objects *storage.Storage) *chi.Mux {
	st := store.New(s.db)
	repos := serviceRepos(st.Repos())
	tx := transactor{store: st}

	// Optional backends stay untyped nil when disabled.
	var publisher services.EventPublisher
	if s.mq != nil {
		publisher = mq.NewEventPublisher(s.mq, cfg.MQ.AlertChannel, cfg.MQ.ReviewChannel)
	}
	var leaderboardCache services.LeaderboardCache
	if s.cache != nil {
		leaderboardCache = s.cache
	}
	var reportStore services.ObjectStore
	var reportObjects handlers.ReportObjects
	if objects != nil {
		reportStore = objects
		reportObjects = objects
	}

	admissionOpts := []services.AdmissionOption{
		services.WithAdmissionPublisher(publisher),
		services.WithAdmissionLogger(s.logger),
	}
	if cfg.Advisory.APIKey != "" {
		client := advisory.NewClient(advisory.Config{
			APIKey:    cfg.Advisory.APIKey,
			BaseURL:   cfg.Advisory.BaseURL,
			Model:     cfg.Advisory.Model,
			MaxTokens: cfg.Advisory.MaxTokens,
			Timeout:   cfg.Advisory.Timeout,
		})
		admissionOpts = append(admissionOpts, services.WithAdvisoryScorer(client, cfg.Advisory.Timeout))
		s.logger.Info("advisory scoring enabled", "model", client.Model())
	}

	userService := services.NewUserService(repos, tx, leaderboardCache)
	admissionService := services.NewAdmissionService(tx, admissionOpts...)
	submissionService := services.NewSubmissionService(repos, tx, leaderboardCache, publisher, s.logger)
	leaderboardService := services.NewLeaderboardService(repos.Leaderboard, leaderboardCache, s.logger)
	prizeService := services.NewPrizeService(repos.Prizes, leaderboardService)
	admin := handlers.AdminServices{
		Users:      userService,
		Rules:      services.NewRulesService(repos.Rules),
		Alerts:     services.NewAlertService(repos.Alerts),
		Statistics: services.NewStatisticsService(repos),
		Reports:    services.NewReportService(repos, leaderboardService, reportStore, s.logger),
		Objects:    reportObjects,
	}

	metrics.Register()
	authMiddleware := handlers.RequireAuth(cfg.JWTSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler,
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, cfg.JWTSecret)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UsersRouter(r, userService, authMiddleware)
	})
	router.Route("/submissions", func(r chi.Router) {
		handlers.SubmissionRouter(r, admissionService, submissionService, userService, authMiddleware)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, admin, authMiddleware)
	})
	router.Group(func(r chi.Router) {
		handlers.PublicRouter(r, leaderboardService, prizeService, admissionService)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.logger.Warn("close mq", "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("close cache", "error", err)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
