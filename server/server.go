package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/auth"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/config"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/health"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/location"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/logger"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/mailer"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/presence"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/push"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/storage"
)

// Server wires the two relay engines, the REST API, and their shared
// dependencies onto one HTTP listener.
type Server struct {
	cfg      *config.ServerConfig
	store    storage.Store
	presence *presence.Engine
	location *location.Engine
	tokens   *auth.TokenManager
	mailer   *mailer.Mailer
	push     *push.Manager
	health   *health.Monitor

	httpServer *http.Server
	serverMu   sync.Mutex
	cancelMu   sync.Mutex
	cancel     context.CancelFunc
}

// NewServer creates a server instance from loaded configuration
func NewServer(cfg *config.ServerConfig) (*Server, error) {
	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:   cfg,
		store: store,
		presence: presence.NewEngine(presence.Options{
			SweepInterval:    time.Duration(cfg.Relay.SweepIntervalMS) * time.Millisecond,
			HeartbeatTimeout: time.Duration(cfg.Relay.HeartbeatTimeoutMS) * time.Millisecond,
			PushOnRegister:   cfg.Relay.PresencePushOnRegister,
		}),
		location: location.NewEngine(location.Options{
			PushOnRegister: cfg.Relay.LocationPushOnRegister,
		}),
		tokens: auth.NewTokenManager(cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.TokenTTLHours)*time.Hour),
		mailer: mailer.New(cfg.SMTP),
		push:   push.NewManager(cfg.Push),
		health: health.NewMonitor(),
	}, nil
}

// Start runs the liveness sweep and serves HTTP until Shutdown
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()

	s.presence.Start(ctx)
	s.location.Start(ctx)

	router := s.buildRouter()

	server := &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	s.serverMu.Lock()
	s.httpServer = server
	s.serverMu.Unlock()

	logger.Get().InfoWith("server starting", "address", s.cfg.Address, "tls", s.cfg.TLS.Enabled)

	if s.cfg.TLS.Enabled {
		return server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}
	return server.ListenAndServe()
}

// buildRouter registers every route on a gin engine
func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RequestLogger())

	// Root probe, kept for the mobile apps' connectivity check
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Child Compass API is running")
	})

	// WebSocket relay paths
	router.GET("/activeStatus", s.handlePresenceSocket)
	router.GET("/location", s.handleLocationSocket)

	// Parent account routes
	parent := router.Group("/api/parent")
	{
		parent.POST("/register", s.handleParentRegister)
		parent.POST("/verify-email", s.handleVerifyEmail)
		parent.POST("/login", s.handleParentLogin)
		parent.POST("/add-child", s.handleAddChild)
	}

	// Child record routes
	child := router.Group("/api/child")
	{
		child.POST("/register", s.handleChildRegister)
		child.POST("/names-by-connection", s.handleNamesByConnection)
	}

	// Task routes, token protected
	tasks := router.Group("/api/tasks", s.AuthRequired())
	{
		tasks.POST("", s.handleTaskCreate)
		tasks.GET("", s.handleTaskList)
		tasks.POST("/:id/complete", s.handleTaskComplete)
		tasks.DELETE("/:id", s.handleTaskDelete)
	}
	// Child devices poll their tasks with just a connection string
	router.GET("/api/tasks/by-connection/:cs", s.handleTasksByConnection)

	// Chat routes, token protected
	messages := router.Group("/api/messages", s.AuthRequired())
	{
		messages.POST("", s.handleMessageSend)
		messages.GET("/:chatId", s.handleChatHistory)
		messages.POST("/:chatId/read", s.handleMarkRead)
		messages.GET("/unread/count", s.handleUnreadCount)
		messages.POST("/push-subscribe", s.handlePushSubscribe)
	}

	// Operational endpoints
	router.GET("/health", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		router.GET(s.cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	return router
}

// Shutdown stops the sweep, the HTTP listener, and the store
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancelMu.Unlock()

	s.serverMu.Lock()
	httpServer := s.httpServer
	s.serverMu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Get().ErrorWithErr("error shutting down HTTP server", err)
			httpServer.Close()
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Get().ErrorWithErr("error closing database", err)
		}
	}

	return nil
}
