package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/atproto"
	"github.com/skybridge-labs/skybridge/internal/auth"
	"github.com/skybridge-labs/skybridge/internal/bridge"
	"github.com/skybridge-labs/skybridge/internal/config"
	"github.com/skybridge-labs/skybridge/internal/events"
	"github.com/skybridge-labs/skybridge/internal/linkcard"
	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/media"
	"github.com/skybridge-labs/skybridge/internal/monitoring"
	"github.com/skybridge-labs/skybridge/internal/pipeline"
	"github.com/skybridge-labs/skybridge/internal/store"
	"github.com/skybridge-labs/skybridge/internal/vault"
)

// Server wires the bridge daemon together: storage, session management,
// the posting pipeline, the health monitor, and the HTTP surface.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	router  *gin.Engine
	store   *store.Store
	auth    *auth.Manager
	monitor *auth.Monitor
	hub     *events.Hub
	http    *http.Server
}

// New builds a fully wired server from configuration. storagePath must be
// resolved by the caller; the config default is empty.
func New(cfg *config.Config, storagePath string, log *logging.Logger) (*Server, error) {
	kv, err := store.Open(storagePath)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.New()
	client := atproto.NewClient(cfg.Bluesky.ServiceURL, cfg.Bluesky.Timeout, log)
	credVault := vault.New(kv, log)
	authMgr := auth.NewManager(client, kv, credVault, log, metrics)

	hub := events.NewHub(log, metrics)
	monitor := auth.NewMonitor(authMgr, cfg.Health.Interval, hub, log, metrics)

	uploader := media.NewUploader(client, log, metrics)
	cards := linkcard.NewFetcher(log)
	pl := pipeline.New(authMgr, client, uploader, cards, log, metrics)
	router := bridge.NewRouter(authMgr, pl, hub, log)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(monitoring.Middleware(metrics))
	engine.Use(RateLimit(DefaultRateLimitConfig()))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		cfg:     cfg,
		log:     log,
		router:  engine,
		store:   kv,
		auth:    authMgr,
		monitor: monitor,
		hub:     hub,
	}

	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	engine.POST("/api/message", s.handleMessage(router))
	engine.GET("/api/events", hub.HandleConnection)

	s.http = &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s, nil
}

// Run starts the daemon and blocks until ctx is cancelled. The persisted
// session is hydrated and the health monitor started before the listener
// accepts traffic.
func (s *Server) Run(ctx context.Context) error {
	s.auth.Load(ctx)

	if s.cfg.Health.Enabled {
		s.monitor.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.http.Shutdown(shutdownCtx)
		s.shutdown()
		return err
	}
}

func (s *Server) shutdown() {
	s.monitor.Stop()
	s.hub.Close()
	if err := s.store.Close(); err != nil {
		s.log.Warn("failed to close store", zap.Error(err))
	}
}

func (s *Server) health(c *gin.Context) {
	session := s.auth.Session()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"authenticated": session.Usable(),
	})
}

func (s *Server) handleMessage(router *bridge.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req bridge.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, &bridge.Response{
				Success: false,
				Error:   "invalid request body",
			})
			return
		}
		c.JSON(http.StatusOK, router.Dispatch(c.Request.Context(), &req))
	}
}
