package main

import (
	"context"
	"log"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/datalens-io/querygate/pkg/audit"
	"github.com/datalens-io/querygate/pkg/auth"
	"github.com/datalens-io/querygate/pkg/config"
	"github.com/datalens-io/querygate/pkg/database"
	"github.com/datalens-io/querygate/pkg/handlers"
	"github.com/datalens-io/querygate/pkg/logging"
	"github.com/datalens-io/querygate/pkg/repositories"
	"github.com/datalens-io/querygate/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("default_database", cfg.Engine.DefaultDatabase),
	)

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.ConnectionString(), cfg.Engine.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	grantRepo := repositories.NewGrantRepository(db)
	permissionRepo := repositories.NewPermissionRepository(db)
	auditor := audit.NewSecurityAuditor(logger)

	queryAccessService := services.NewQueryAccessService(permissionRepo, grantRepo, auditor, logger)

	authMiddleware := auth.NewMiddleware(jwksClient, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	queryAccessHandler := handlers.NewQueryAccessHandler(cfg, queryAccessService, auditor, logger)
	queryAccessHandler.RegisterRoutes(mux, authMiddleware)

	grantsHandler := handlers.NewGrantsHandler(grantRepo, permissionRepo, logger)
	grantsHandler.RegisterRoutes(mux, authMiddleware)

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	logger.Info("Starting querygate", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
