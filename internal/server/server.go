package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainfeed/gateway/internal/accesspass"
	"github.com/chainfeed/gateway/internal/config"
	"github.com/chainfeed/gateway/internal/handler"
	"github.com/chainfeed/gateway/internal/middleware"
	"github.com/chainfeed/gateway/internal/models"
	"github.com/chainfeed/gateway/internal/payment"
	"github.com/chainfeed/gateway/internal/pricing"
	"github.com/chainfeed/gateway/internal/proxy"
	"github.com/chainfeed/gateway/internal/ratelimit"
	"github.com/chainfeed/gateway/internal/repository"
	"github.com/chainfeed/gateway/internal/service"
	"github.com/chainfeed/gateway/internal/storage"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	redis    *storage.RedisClient
	postgres *storage.Postgres

	catalog *pricing.Catalog
	limiter ratelimit.Limiter
	passes  accesspass.Store
	builder *payment.Builder

	apiKeyService *service.APIKeyService
	authService   *service.AuthService
	apiKeyHandler *handler.APIKeyHandler
	authHandler   *handler.AuthHandler
	usageHandler  *handler.UsageHandler
	tierRepo      *repository.TierRepository

	proxies    map[string]*proxy.Proxy
	httpServer *http.Server
	closers    []func()
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	records, err := cfg.PricingRecords()
	if err != nil {
		return nil, fmt.Errorf("invalid pricing configuration: %w", err)
	}

	s := &Server{
		router:   gin.New(),
		config:   cfg,
		redis:    redis,
		postgres: postgres,
		catalog:  pricing.NewCatalog(records),
		proxies:  make(map[string]*proxy.Proxy),
	}

	s.initStores()
	s.initPayment()
	s.initServices()
	s.initProxies()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// initStores picks the backend for rate-limit windows and access passes.
// Memory is correct for a single process; redis shares state across
// replicas. Nothing downstream knows the difference.
func (s *Server) initStores() {
	sweep := time.Duration(s.config.RateLimit.SweepIntervalSeconds) * time.Second

	if s.config.Store.Backend == "redis" {
		s.limiter = ratelimit.NewRedis(s.redis)
		s.passes = accesspass.NewRedis(s.redis)
		log.Println("Using redis-backed rate limit and access pass stores")
		return
	}

	memLimiter := ratelimit.NewMemory(sweep)
	memPasses := accesspass.NewMemory(sweep)
	s.limiter = memLimiter
	s.passes = memPasses
	s.closers = append(s.closers, memLimiter.Close, memPasses.Close)
	log.Println("Using in-memory rate limit and access pass stores")
}

func (s *Server) initPayment() {
	pay := s.config.Payment

	s.builder = payment.NewBuilder(pay.PayTo, pay.Network, pay.Asset, pay.MaxTimeoutSeconds)
}

func (s *Server) initServices() {
	keyRepo := repository.NewAPIKeyRepository(s.postgres)
	s.tierRepo = repository.NewTierRepository(s.postgres)
	accountRepo := repository.NewAdminUserRepository(s.postgres)
	logRepo := repository.NewRequestLogRepository(s.postgres)

	s.apiKeyService = service.NewAPIKeyService(keyRepo, s.tierRepo, s.redis)
	s.authService = service.NewAuthService(accountRepo, s.config.Auth.JWTSecret, s.config.Auth.JWTExpiryHours)

	s.apiKeyHandler = handler.NewAPIKeyHandler(s.apiKeyService)
	s.authHandler = handler.NewAuthHandler(s.authService)
	s.usageHandler = handler.NewUsageHandler(s.apiKeyService, logRepo)

	middleware.InitRequestLogger(logRepo, 1000)
}

func (s *Server) initProxies() {
	for _, upstream := range s.config.Upstreams {
		p, err := proxy.New(upstream.Target)
		if err != nil {
			log.Printf("Failed to create proxy for %s: %v", upstream.Path, err)
			continue
		}

		s.proxies[upstream.Path] = p
		log.Printf("Initialized proxy for %s -> %s", upstream.Path, upstream.Target)
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.RequestLogger())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	auth := s.router.Group("/auth")
	{
		auth.POST("/register", s.authHandler.Register)
		auth.POST("/login", s.authHandler.Login)
	}

	// Viewers can read; mutations need the admin role.
	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.authService))
	{
		admin.GET("/keys", s.apiKeyHandler.List)
		admin.GET("/keys/:id", s.apiKeyHandler.Get)
		admin.GET("/tiers", s.apiKeyHandler.Tiers)
		admin.GET("/stats", s.usageHandler.Stats)
		admin.GET("/logs", s.usageHandler.Logs)

		admin.POST("/keys", middleware.RequireWriter(), s.apiKeyHandler.Create)
		admin.PATCH("/keys/:id", middleware.RequireWriter(), s.apiKeyHandler.Update)
		admin.DELETE("/keys/:id", middleware.RequireWriter(), s.apiKeyHandler.Delete)
		admin.PUT("/payout-wallet", middleware.RequireWriter(), s.authHandler.UpdatePayoutWallet)
	}

	// Quota self-service for key holders; the key itself is the credential.
	s.router.GET("/api/v1/usage", s.usageHandler.Usage)

	pay := s.config.Payment
	facilitator := payment.NewFacilitatorClient(pay.FacilitatorURL, time.Duration(pay.TimeoutSeconds)*time.Second)
	verifier := payment.NewVerifier(facilitator, pay.AllowDegraded)

	gate := middleware.HybridAuth(
		s.catalog,
		s.limiter,
		s.passes,
		verifier,
		s.apiKeyService,
		s.builder,
		middleware.HybridAuthConfig{PassMultiplier: s.config.RateLimit.PassMultiplier},
	)

	api := s.router.Group("/")
	api.Use(gate)
	{
		// Buying the pass product grants the pass as a verification side
		// effect; the handler just reports what was granted.
		api.GET("/api/v1/pass", s.passStatus)
		api.POST("/api/v1/pass", s.passStatus)

		for path, proxyInstance := range s.proxies {
			p := proxyInstance
			api.Any(path+"/*proxyPath", func(c *gin.Context) { p.Handle(c) })
			api.Any(path, func(c *gin.Context) { p.Handle(c) })
			log.Printf("Registered gated route: %s", path)
		}
	}
}

func (s *Server) passStatus(c *gin.Context) {
	wallet := c.GetString("wallet")
	if wallet == "" {
		wallet = c.GetHeader(middleware.HeaderWallet)
	}

	pass, valid, err := s.passes.Check(c.Request.Context(), wallet)
	if err != nil || !valid {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active access pass"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":     wallet,
		"tier":       pass.Tier,
		"expires_at": pass.ExpiresAt.Unix(),
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		log.Printf("Redis health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "chainfeed-gateway",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

// SeedTiers upserts the configured subscription tiers at startup.
func (s *Server) SeedTiers(ctx context.Context) error {
	tiers := make([]models.APIKeyTier, 0, len(s.config.Tiers))
	for _, t := range s.config.Tiers {
		tiers = append(tiers, models.APIKeyTier{
			Name:           t.Name,
			RequestsPerDay: t.RequestsPerDay,
			Features:       t.Features,
		})
	}

	return s.tierRepo.Seed(ctx, tiers)
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting gateway on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	for _, closeFn := range s.closers {
		closeFn()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
