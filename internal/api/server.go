// Package api exposes the operator HTTP surface: engine status, trade
// history, risk controls, and a websocket feed of engine events.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/thomasjamais/bitget-agent-sub001/internal/auth"
	"github.com/thomasjamais/bitget-agent-sub001/internal/cache"
	"github.com/thomasjamais/bitget-agent-sub001/internal/database"
	"github.com/thomasjamais/bitget-agent-sub001/internal/events"
	"github.com/thomasjamais/bitget-agent-sub001/internal/logging"
	"github.com/thomasjamais/bitget-agent-sub001/internal/opportunity"
	"github.com/thomasjamais/bitget-agent-sub001/internal/portfolio"
	"github.com/thomasjamais/bitget-agent-sub001/internal/risk"
	"github.com/thomasjamais/bitget-agent-sub001/internal/trading"
	"github.com/thomasjamais/bitget-agent-sub001/internal/vault"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins string // comma separated, empty allows localhost dev origins
	ProductionMode bool
}

// AuthDeps bundles the pieces needed for operator login. Nil disables auth.
type AuthDeps struct {
	JWTManager   *auth.JWTManager
	Passwords    *auth.PasswordManager
	OperatorName string
	PasswordHash string
}

// Server is the operator API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      ServerConfig
	logger      *logging.Logger
	authDeps    *AuthDeps
	authEnabled bool

	manager   *trading.Manager
	riskMgr   *risk.Manager
	evaluator *opportunity.Evaluator
	balancer  *portfolio.Balancer
	repo      *database.Repository // nil when the database is disabled
	cacheSvc  *cache.CacheService  // nil when Redis is disabled
	vaultCli  *vault.Client        // nil when vault is disabled
	eventBus  *events.EventBus
	hub       *WSHub
	startedAt time.Time
}

// Deps bundles everything the server reads from
type Deps struct {
	Manager   *trading.Manager
	RiskMgr   *risk.Manager
	Evaluator *opportunity.Evaluator
	Balancer  *portfolio.Balancer
	Repo      *database.Repository
	CacheSvc  *cache.CacheService
	VaultCli  *vault.Client
	EventBus  *events.EventBus
	Logger    *logging.Logger
	Auth      *AuthDeps
}

// NewServer creates the API server and wires the websocket hub to the bus
func NewServer(config ServerConfig, deps Deps) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	logger := deps.Logger
	if logger == nil {
		logger = logging.New(&logging.Config{Level: "INFO", Output: "stdout", JSONFormat: true})
	}

	s := &Server{
		router:      router,
		config:      config,
		logger:      logger.WithComponent("api"),
		authDeps:    deps.Auth,
		authEnabled: deps.Auth != nil,
		manager:     deps.Manager,
		riskMgr:     deps.RiskMgr,
		evaluator:   deps.Evaluator,
		balancer:    deps.Balancer,
		repo:        deps.Repo,
		cacheSvc:    deps.CacheSvc,
		vaultCli:    deps.VaultCli,
		eventBus:    deps.EventBus,
		hub:         NewWSHub(logger),
		startedAt:   time.Now(),
	}

	if deps.EventBus != nil {
		deps.EventBus.SubscribeAll(s.hub.BroadcastEvent)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth_enabled": s.authEnabled})
	})

	if s.authEnabled {
		s.router.POST("/api/auth/login", s.handleLogin)
	}

	api := s.router.Group("/api")
	if s.authEnabled {
		api.Use(s.authMiddleware())
	}
	{
		api.GET("/engine/status", s.handleEngineStatus)
		api.GET("/engine/report", s.handleEngineReport)

		api.GET("/risk", s.handleRiskMetrics)
		api.POST("/risk/reset", s.handleRiskReset)

		api.GET("/opportunities/stats", s.handleOpportunityStats)

		api.GET("/portfolio", s.handlePortfolioStatus)
		api.GET("/portfolio/deviations", s.handlePortfolioDeviations)
		api.PUT("/portfolio/allocations", s.handleUpdateAllocations)

		api.GET("/trades/open", s.handleOpenTrades)
		api.GET("/trades/closed", s.handleClosedTrades)
		api.GET("/trades/summary", s.handleTradeSummary)
		api.POST("/trades/:symbol/close", s.handleCloseTrade)
		api.POST("/trades/:symbol/release", s.handleReleaseSymbol)

		api.GET("/rebalance/history", s.handleRebalanceHistory)

		api.GET("/cache/stats", s.handleCacheStats)
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the websocket hub and the HTTP server, blocking until shutdown
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if s.repo != nil {
		if err := s.repo.HealthCheck(ctx); err != nil {
			checks["database"] = "unhealthy"
			healthy = false
		} else {
			checks["database"] = "healthy"
		}
	}
	if s.cacheSvc != nil {
		if err := s.cacheSvc.Ping(ctx); err != nil {
			checks["redis"] = "unhealthy"
		} else {
			checks["redis"] = "healthy"
		}
	}
	if s.vaultCli != nil {
		if err := s.vaultCli.Health(ctx); err != nil {
			checks["vault"] = "unhealthy"
		} else {
			checks["vault"] = "healthy"
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status": state,
		"uptime": time.Since(s.startedAt).String(),
		"checks": checks,
	})
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": true, "message": message})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}
