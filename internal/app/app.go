package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Lorient94/GimnasioAdmin/database"
	"github.com/Lorient94/GimnasioAdmin/internal/config"
	"github.com/Lorient94/GimnasioAdmin/internal/gateway"
	"github.com/Lorient94/GimnasioAdmin/internal/handlers"
	"github.com/Lorient94/GimnasioAdmin/internal/logger"
	"github.com/Lorient94/GimnasioAdmin/internal/middleware"
	"github.com/Lorient94/GimnasioAdmin/internal/repositories"
	"github.com/Lorient94/GimnasioAdmin/internal/routes"
	"github.com/Lorient94/GimnasioAdmin/internal/services"
	"github.com/Lorient94/GimnasioAdmin/internal/validator"
	"github.com/Lorient94/GimnasioAdmin/internal/workers"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	gormDB, err := database.ConnectGorm()
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err := database.AutoMigrate(gormDB); err != nil {
		logger.Fatal("Migration failed", "error", err)
	}

	serviceContainer := initializeServices(cfg)

	ginRouter := SetupRouter(gormDB, serviceContainer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := workers.NewReconciliationWorker(
		gormDB,
		serviceContainer.ReconciliationService,
		repositories.NewTransactionRepository(),
		cfg.Reconciliation,
	)
	worker.Start(ctx)
	logger.Info("Reconciliation worker started",
		"apply_interval_seconds", cfg.Reconciliation.ApplyIntervalSeconds,
		"verify_interval_seconds", cfg.Reconciliation.VerifyIntervalSeconds,
	)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", "address", address)
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

func SetupRouter(gormDB *gorm.DB, serviceContainer *services.ServiceContainer) *gin.Engine {
	appHandlers := initializeHandlers(serviceContainer)

	ginRouter := initializeGinRouter(gormDB)

	routes.RegisterRoutes(ginRouter, appHandlers)

	return ginRouter
}

func initializeServices(cfg *config.Config) *services.ServiceContainer {
	gatewayClient := gateway.NewMercadoPagoClient(gateway.MercadoPagoConfig{
		AccessToken:     cfg.MercadoPago.AccessToken,
		BaseURL:         cfg.MercadoPago.BaseURL,
		Currency:        cfg.MercadoPago.Currency,
		NotificationURL: cfg.MercadoPago.NotificationURL,
		BackURL:         cfg.MercadoPago.BackURL,
		Timeout:         time.Duration(cfg.MercadoPago.TimeoutSeconds) * time.Second,
	})

	classRepo := repositories.NewClassRepository()
	enrollmentRepo := repositories.NewEnrollmentRepository()
	transactionRepo := repositories.NewTransactionRepository()
	paymentRepo := repositories.NewPaymentRepository()
	eventRepo := repositories.NewGatewayEventRepository()

	enrollmentService := services.NewEnrollmentService(enrollmentRepo, classRepo)
	transactionService := services.NewTransactionService(transactionRepo, paymentRepo, enrollmentRepo, gatewayClient)
	reconciliationService := services.NewReconciliationService(eventRepo, transactionRepo, paymentRepo, enrollmentRepo, gatewayClient)
	cancellationService := services.NewCancellationService(enrollmentService, transactionRepo, paymentRepo, gatewayClient)

	return &services.ServiceContainer{
		EnrollmentService:     enrollmentService,
		TransactionService:    transactionService,
		ReconciliationService: reconciliationService,
		CancellationService:   cancellationService,
	}
}

func initializeHandlers(services *services.ServiceContainer) *handlers.AppHandlers {
	customValidator := validator.New()
	baseHandler := handlers.NewBaseHandler(customValidator)

	return &handlers.AppHandlers{
		ClientHandler:      handlers.NewClientHandler(baseHandler, repositories.NewClientRepository()),
		ClassHandler:       handlers.NewClassHandler(baseHandler, repositories.NewClassRepository()),
		EnrollmentHandler:  handlers.NewEnrollmentHandler(baseHandler, services.EnrollmentService, services.CancellationService),
		TransactionHandler: handlers.NewTransactionHandler(baseHandler, services.TransactionService, services.ReconciliationService),
		WebhookHandler:     handlers.NewWebhookHandler(baseHandler, services.ReconciliationService),
	}
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}
