package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/freecash-dev/freecash-api/internal/config"
	"github.com/freecash-dev/freecash-api/internal/database"
	"github.com/freecash-dev/freecash-api/internal/handlers"
	"github.com/freecash-dev/freecash-api/internal/middleware"
	"github.com/freecash-dev/freecash-api/internal/services"
	"github.com/freecash-dev/freecash-api/internal/store"
	"github.com/freecash-dev/freecash-api/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Connect runs the startup schema migration before returning the pool.
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database ready")

	st := store.New(pool)

	authService := services.NewAuthService(st, cfg.JWTSecret, cfg.TokenTTL, logger)
	invoiceService := services.NewInvoiceService(st, logger)
	subscriptionService := services.NewSubscriptionService(st, invoiceService, logger)
	backupService := services.NewBackupService(st, logger)
	workbookService := services.NewWorkbookService(st, logger)
	legacyService := services.NewLegacyImportService(st, logger)
	reportService := services.NewReportImportService(st, logger)
	statementService := services.NewStatementService(st, logger)
	rateService := services.NewRateService(cfg.RatesBaseURL, logger)

	// The archive is optional outside production: imports still work, the
	// uploaded files are just not kept.
	var archiveService *services.ArchiveService
	if cfg.S3Bucket != "" {
		archiveService, err = services.NewArchiveService(ctx, cfg.S3Bucket, cfg.S3Region, cfg.AWSEndpoint, logger)
		if err != nil {
			logger.Fatal("archive initialization failed", zap.Error(err))
		}
		logger.Info("archive ready", zap.String("bucket", cfg.S3Bucket))
	}

	authHandler := handlers.NewAuthHandler(authService, st)
	categoryHandler := handlers.NewCategoryHandler(st)
	paymentMethodHandler := handlers.NewPaymentMethodHandler(st)
	cardHandler := handlers.NewCardHandler(st, invoiceService)
	entryHandler := handlers.NewEntryHandler(st, invoiceService)
	subscriptionHandler := handlers.NewSubscriptionHandler(st, subscriptionService)
	configHandler := handlers.NewConfigHandler(st)
	importHandler := handlers.NewImportHandler(st, backupService, workbookService, legacyService, reportService, archiveService)
	statementHandler := handlers.NewStatementHandler(st, statementService)
	rateHandler := handlers.NewRateHandler(rateService)

	app := fiber.New(fiber.Config{
		AppName:      "freecash API v1.0",
		ErrorHandler: utils.ErrorHandler,
	})

	app.Use(middleware.CORS(cfg.CORSOrigins))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "freecash-api",
		})
	})

	v1 := app.Group("/v1")

	// Public routes
	v1.Post("/auth/register", authHandler.Register)
	v1.Post("/auth/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("", middleware.RequireAuth(authService))

	protected.Get("/me", authHandler.Me)
	protected.Get("/config", configHandler.Get)
	protected.Put("/config", configHandler.Update)

	protected.Get("/categories", categoryHandler.List)
	protected.Post("/categories", categoryHandler.Create)
	protected.Put("/categories/:id", categoryHandler.Update)
	protected.Delete("/categories/:id", categoryHandler.Delete)

	protected.Get("/payment-methods", paymentMethodHandler.List)
	protected.Post("/payment-methods", paymentMethodHandler.Create)
	protected.Put("/payment-methods/:id", paymentMethodHandler.Update)
	protected.Delete("/payment-methods/:id", paymentMethodHandler.Delete)

	protected.Get("/cards", cardHandler.List)
	protected.Post("/cards", cardHandler.Create)
	protected.Put("/cards/:id", cardHandler.Update)
	protected.Delete("/cards/:id", cardHandler.Delete)
	protected.Post("/cards/:id/purchases", cardHandler.CreatePurchase)
	protected.Get("/cards/:id/invoices", cardHandler.GetInvoice)
	protected.Post("/invoices/:id/pay", cardHandler.PayInvoice)
	protected.Post("/invoices/:id/unpay", cardHandler.UnpayInvoice)

	protected.Get("/entries", entryHandler.List)
	protected.Post("/entries", entryHandler.Create)
	protected.Get("/entries/:id", entryHandler.Get)
	protected.Put("/entries/:id", entryHandler.Update)
	protected.Delete("/entries/:id", entryHandler.Delete)
	protected.Post("/entries/:id/realize", entryHandler.Realize)
	protected.Post("/entries/:id/unrealize", entryHandler.Unrealize)

	protected.Get("/subscriptions", subscriptionHandler.List)
	protected.Post("/subscriptions", subscriptionHandler.Create)
	protected.Put("/subscriptions/:id", subscriptionHandler.Update)
	protected.Delete("/subscriptions/:id", subscriptionHandler.Delete)
	protected.Post("/subscriptions/generate", subscriptionHandler.Generate)

	protected.Post("/imports", importHandler.Import)
	protected.Get("/imports/logs", importHandler.Logs)
	protected.Post("/exports/backup", importHandler.ExportBackup)
	protected.Get("/exports/workbook", importHandler.ExportWorkbook)

	protected.Post("/statements", statementHandler.Upload)
	protected.Get("/statements", statementHandler.List)
	protected.Get("/statements/:id/lines", statementHandler.Lines)
	protected.Post("/statements/lines/:id/confirm", statementHandler.Confirm)
	protected.Post("/statements/lines/:id/discard", statementHandler.Discard)

	protected.Get("/rates", rateHandler.Get)
	protected.Get("/rates/convert", rateHandler.Convert)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("listening", zap.String("addr", addr), zap.String("environment", cfg.Environment))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
