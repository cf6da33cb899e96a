package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/app"
	iauth "github.com/tacticalpanel/panel/internal/auth"
	"github.com/tacticalpanel/panel/internal/auth/mfa"
	"github.com/tacticalpanel/panel/internal/cache"
	"github.com/tacticalpanel/panel/internal/handlers"
	"github.com/tacticalpanel/panel/internal/middleware"
	"github.com/tacticalpanel/panel/internal/monitoring"
	"github.com/tacticalpanel/panel/internal/permissions"
	"github.com/tacticalpanel/panel/internal/security"
	"github.com/tacticalpanel/panel/internal/services"
)

// NewRouter builds the Gin engine, wires the services and middleware and registers
// every route. store backs the token deny-list, attempt limiter and auth rate limit;
// it is Redis when configured and the database otherwise.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, store cache.Store) (*gin.Engine, error) {
	if db == nil {
		return nil, errors.New("database handle must be provided")
	}
	if jwt == nil {
		return nil, errors.New("jwt service must be provided")
	}
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if store == nil {
		return nil, errors.New("cache store must be provided")
	}

	auditSvc, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	resolver, err := permissions.NewResolver(db)
	if err != nil {
		return nil, err
	}

	authCfg, err := cfg.Auth.AuthServiceConfig()
	if err != nil {
		return nil, err
	}
	authSvc, err := services.NewAuthService(db, jwt, mfa.NewEngine(cfg.Auth.TOTPOptions()...), authCfg,
		services.WithAuditService(auditSvc),
		services.WithAttemptLimiter(services.NewAttemptLimiter(store, cfg.Auth.AttemptLimits())),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}
	subAdminSvc, err := services.NewSubAdminService(db, auditSvc, authCfg.PasswordPolicy)
	if err != nil {
		return nil, err
	}
	serverSvc, err := services.NewServerService(db, resolver, auditSvc)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	r.Use(middleware.AuditContext())
	if limit := cfg.Server.RateLimit; limit.PerSecond > 0 {
		r.Use(middleware.Throttle(limit.PerSecond, limit.Burst))
	}

	health := handlers.NewHealthHandler(monitoring.NewHealthManager(
		monitoring.DatabaseCheck(db),
		monitoring.CacheCheck(store),
	))
	r.GET("/health", health.Ready)
	r.GET("/health/live", health.Live)
	r.GET("/health/ready", health.Ready)

	if prom := cfg.Monitoring.Prometheus; prom.Enabled {
		endpoint := strings.TrimSpace(prom.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.Auth(jwt)
	api := r.Group("/api")

	authHandler := handlers.NewAuthHandler(authSvc, jwt.TTL())
	registerAuthRoutes(api, requireAuth, authRouteDeps{
		AuthHandler:     authHandler,
		SetupHandler:    handlers.NewSetupHandler(authSvc, authHandler),
		RecoveryHandler: handlers.NewRecoveryHandler(authSvc),
		RateLimit:       middleware.RateLimit(middleware.NewCacheRateStore(store), cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window),
	})

	registerAdminRoutes(api, requireAuth, adminRouteDeps{
		Resolver:        resolver,
		SubAdminHandler: handlers.NewSubAdminHandler(subAdminSvc),
		AuditHandler:    handlers.NewAuditHandler(auditSvc),
		SecurityHandler: handlers.NewSecurityHandler(security.NewPostureService(db, cfg)),
	})

	registerServerRoutes(api, requireAuth, handlers.NewServerHandler(serverSvc))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
