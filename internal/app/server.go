// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fedportal-service/internal/config"
	"fedportal-service/internal/db"
	adminHandler "fedportal-service/internal/handlers/admin"
	identityHandler "fedportal-service/internal/handlers/identity"
	metricsHandler "fedportal-service/internal/handlers/metrics"
	presenceHandler "fedportal-service/internal/handlers/presence"
	wsHandler "fedportal-service/internal/handlers/websocket"
	"fedportal-service/internal/middleware"
	"fedportal-service/internal/notify"
	"fedportal-service/internal/pkg/jwt"
	"fedportal-service/internal/pkg/session"
	"fedportal-service/internal/repository/postgres"
	gateUsecase "fedportal-service/internal/service/gate"
	identityUsecase "fedportal-service/internal/service/identity"
	metricsUsecase "fedportal-service/internal/service/metrics"
	presenceUsecase "fedportal-service/internal/service/presence"
	"fedportal-service/internal/websocket"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	httpServer *http.Server
	cancel     context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("[REDIS] connected")

	// ----- JWT Verifier -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Session Manager -----
	sessionManager := session.NewManager(redisClient, s.cfg.SessionTTL)

	// ----- Repositories -----
	userRepo := postgres.NewUserRepository(pool)
	presenceRepo := postgres.NewPresenceRepository(pool)
	doceaseRepo := postgres.NewDoceaseRepository(pool)
	signeaseRepo := postgres.NewSigneaseRepository(pool)
	signatureRepo := postgres.NewSignatureRepository(pool)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(verifier, logger)
	go hub.Run(ctx)

	// ----- Services -----
	identityService := identityUsecase.NewService(userRepo, sessionManager, logger)
	gateService := gateUsecase.NewGate(sessionManager, logger)
	tracker := presenceUsecase.NewTracker(presenceRepo, logger, s.cfg.PresenceExpiry, s.cfg.BootstrapTimeout)
	engine := metricsUsecase.NewEngine(doceaseRepo, signeaseRepo, signatureRepo, presenceRepo, userRepo, logger)
	coordinator := metricsUsecase.NewCoordinator(engine, logger, s.cfg.DebounceWindow, hub)
	go coordinator.Run(ctx)

	// ----- Change notifications -----
	listener := notify.NewListener(pool, logger)
	go listener.Run(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case inv := <-listener.Sink:
				coordinator.Invalidate(inv)
				hub.BroadcastInvalidation(inv.Category)
			}
		}
	}()

	// ----- Handlers -----
	identityHandlerInst := identityHandler.NewIdentityHandler(identityService, logger)
	presenceHandlerInst := presenceHandler.NewPresenceHandler(tracker, hub, logger)
	metricsHandlerInst := metricsHandler.NewMetricsHandler(engine, coordinator, logger)
	adminHandlerInst := adminHandler.NewAdminHandler(userRepo, gateService, hub, logger)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(verifier, identityService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		IdentityHandler: identityHandlerInst,
		PresenceHandler: presenceHandlerInst,
		MetricsHandler:  metricsHandlerInst,
		AdminHandler:    adminHandlerInst,
		WSHandler:       wsHandlerInst,
		AuthMiddleware:  authMiddleware,
		Gate:            gateService,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	s.httpServer = &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	log.Printf("server running on %s", s.cfg.HTTPAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener and the background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.logger != nil {
		defer s.logger.Sync()
	}
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
