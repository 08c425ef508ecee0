package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "cedeva-recon/docs"
	"cedeva-recon/internal/config"
	"cedeva-recon/internal/handler"
	"cedeva-recon/internal/matcher"
	"cedeva-recon/internal/middleware"
	"cedeva-recon/internal/repository"
	"cedeva-recon/internal/service"
	"cedeva-recon/pkg/logger"
)

// @title Cedeva Bank Reconciliation API
// @version 1.0
// @description Imports Belgian CODA bank statements and reconciles transactions against outstanding bookings

// @contact.name API Support
// @contact.email support@cedeva.be

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.LogLevel)
	logger.GetLogger().Info("Starting Cedeva Bank Reconciliation Service")

	// Connect to database
	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	logger.GetLogger().Info("Database connection established")

	// Initialize repositories
	statementRepo := repository.NewStatementRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	reconRepo := repository.NewReconciliationRepository(db)

	// Initialize services
	scorer := matcher.NewScorer(cfg.Reconciliation.AutoThreshold, cfg.Reconciliation.SuggestionFloor)
	importService := service.NewImportService(statementRepo)
	reconService := service.NewReconciliationService(statementRepo, bookingRepo, reconRepo, scorer)

	// Initialize handlers
	codaHandler := handler.NewCodaHandler(importService, reconService)
	reconHandler := handler.NewReconciliationHandler(reconService)

	// Setup router
	router := setupRouter(codaHandler, reconHandler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.GetLogger().WithField("address", addr).Info("Server starting")

	if err := router.Run(addr); err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to start server")
	}
}

func connectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func setupRouter(codaHandler *handler.CodaHandler, reconHandler *handler.ReconciliationHandler) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// CODA import routes
		coda := v1.Group("/coda")
		{
			coda.POST("/import", codaHandler.ImportCoda)
			coda.POST("/batches/:batch_id/auto-reconcile", codaHandler.AutoReconcile)
		}

		// Reconciliation routes
		reconciliation := v1.Group("/reconciliation")
		{
			reconciliation.GET("/suggestions", reconHandler.GetSuggestions)
			reconciliation.GET("/unreconciled", reconHandler.GetUnreconciled)
			reconciliation.POST("/manual", reconHandler.ManualReconcile)
		}
	}

	return router
}
