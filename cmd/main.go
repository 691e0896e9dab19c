package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"storefront-sync-service/internal/cache"
	"storefront-sync-service/internal/clients"
	"storefront-sync-service/internal/config"
	"storefront-sync-service/internal/events"
	"storefront-sync-service/internal/handlers"
	"storefront-sync-service/internal/images"
	"storefront-sync-service/internal/middleware"
	"storefront-sync-service/internal/repository"
	"storefront-sync-service/internal/services"
	"storefront-sync-service/internal/workers"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Storefront Sync API
// @version 1.0.0
// @description Storefront catalog, cart and checkout API with 1C CommerceML exchange

// @host localhost:5000
// @BasePath /api

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// @securityDefinitions.apikey AdminKeyAuth
// @in header
// @name X-Admin-Key

const serviceName = "storefront-sync-service"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize storage backend
	var store repository.Store
	var db *gorm.DB
	switch cfg.StorageBackend {
	case config.StorageMemory:
		store = repository.NewMemoryStore(nil)
		log.Println("✓ Using in-memory storage (data is lost on restart)")
	case config.StoragePostgres:
		var err error
		db, err = config.InitDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		ids := repository.NewIDGenerator()
		productsRepo := repository.NewProductsRepository(db, ids)
		seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := productsRepo.SeedIDs(seedCtx); err != nil {
			log.Fatal("Failed to seed product ids:", err)
		}
		seedCancel()
		store = repository.NewGormStore(productsRepo, repository.NewCartRepository(db), repository.NewOrdersRepository(db))
		log.Println("✓ PostgreSQL storage initialized")
	default:
		log.Fatalf("Unknown STORAGE_BACKEND %q (expected memory or postgres)", cfg.StorageBackend)
	}

	// Initialize Redis client for the shared catalog cache
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		} else {
			if password := secrets.GetRedisPassword(); password != "" {
				redisOpts.Password = password
			}
			redisClient = redis.NewClient(redisOpts)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.Printf("WARNING: Failed to connect to Redis: %v (using in-process cache only)", err)
				redisClient.Close()
				redisClient = nil
			} else {
				log.Println("✓ Redis connected successfully")
			}
			cancel()
		}
	}
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	// Initialize event publisher only if NATS_URL is set
	var catalogNotifier services.CatalogSyncNotifier
	var orderNotifier services.OrderNotifier
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		var err error
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, serviceName, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			catalogNotifier = eventsPublisher
			orderNotifier = eventsPublisher
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer eventsPublisher.Close()

	// Object storage: S3-compatible bucket when configured, local disk otherwise
	localUploads, err := clients.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatal("Failed to prepare upload directory:", err)
	}
	var imageStore clients.ObjectStore = localUploads
	var remoteStaging clients.ObjectStore
	if cfg.ObjectStorage.Configured() {
		s3Store, err := clients.NewS3Store(cfg.ObjectStorage, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize object storage: %v (serving images from %s)", err, cfg.UploadDir)
		} else {
			imageStore = s3Store
			remoteStaging = s3Store
			log.Printf("✓ Object storage initialized (bucket %s)", cfg.ObjectStorage.Bucket)
		}
	}
	localStaging, err := clients.NewLocalStore(cfg.StagingDir)
	if err != nil {
		log.Fatal("Failed to prepare staging directory:", err)
	}
	staging, err := services.NewStagingArea(localStaging, remoteStaging, logger)
	if err != nil {
		log.Fatal("Failed to initialize staging area:", err)
	}

	// Initialize services
	var limiter *rate.Limiter
	if cfg.ImageRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ImageRatePerSec), 1)
	}
	pipeline := images.NewPipeline(imageStore, limiter, cfg.ImageBatchLimit, logger)
	resolver := images.NewResolver(imageStore, "")
	catalog := services.NewCatalogStore(store, cache.NewProductCache(cfg.CacheTTL, redisClient, logger), logger)
	importer := services.NewCommerceMLImporter(catalog, resolver, catalogNotifier, logger)
	exporter := services.NewOrderExporter(store, cfg.SaleExportStatus, logger)
	checkout := services.NewCheckoutService(store, store, catalog, orderNotifier, logger)
	syncService := services.NewSyncService(catalog, resolver, catalogNotifier, logger)
	maintenance := services.NewMaintenanceService(catalog, pipeline, logger)

	// Initialize background workers
	reconciler := workers.NewReconciliationWorker(importer, staging, cfg.ReconcileInterval, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	exchangeHandler := handlers.NewExchangeHandler(importer, staging, pipeline, exporter, cfg.FileLimit, logger)
	productsHandler := handlers.NewProductsHandler(catalog, logger)
	cartHandler := handlers.NewCartHandler(checkout, logger)
	syncHandler := handlers.NewSyncHandler(syncService, checkout, logger)
	adminHandler := handlers.NewAdminHandler(maintenance, reconciler, logger)
	importHandler := handlers.NewImportHandler(syncService, logger)

	if cfg.ExchangeUser == "" || cfg.ExchangePassword == "" {
		log.Println("WARNING: EXCHANGE_USER/EXCHANGE_PASSWORD not set, 1C exchange will reject every request")
	}
	if cfg.SyncAPIKey == "" {
		log.Println("WARNING: SYNC_API_KEY not set, sync API will reject every request")
	}

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig(serviceName))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig(serviceName))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	// Initialize Prometheus metrics
	metrics := gosharedmw.InitGlobalMetrics("storefront", "sync_service")
	log.Println("✓ Prometheus metrics initialized")

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	// Add observability middleware (metrics + tracing)
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware(serviceName))
	router.Use(gosharedmw.CompressionMiddleware())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	// Health check endpoints (no auth required)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/metrics", gosharedmw.Handler())

	// 1C CommerceML exchange
	router.Any("/api/1c-exchange", middleware.BasicAuth(cfg.ExchangeUser, cfg.ExchangePassword), exchangeHandler.Handle)

	// Locally stored images
	router.Static("/uploads", cfg.UploadDir)

	api := router.Group("/api")
	{
		// Public catalog
		catalogRoutes := api.Group("", middleware.CacheControl(middleware.PublicCatalogCache))
		{
			catalogRoutes.GET("/products", productsHandler.GetProducts)
			catalogRoutes.GET("/products/:id", productsHandler.GetProduct)
			catalogRoutes.GET("/categories", productsHandler.GetCategories)
		}
		api.POST("/products", middleware.AdminKeyAuth(cfg.AdminAPIKey), productsHandler.CreateProduct)

		// Guest cart and checkout
		api.GET("/cart/:sessionId", cartHandler.GetCart)
		api.POST("/cart", cartHandler.AddToCart)
		api.DELETE("/cart/:sessionId/items", cartHandler.RemoveFromCart)
		api.DELETE("/cart/:sessionId", cartHandler.ClearCart)
		api.POST("/orders", cartHandler.Checkout)
		api.GET("/orders/:id", cartHandler.GetOrder)

		// ERP sync API
		sync := api.Group("/sync", middleware.APIKeyAuth(cfg.SyncAPIKey))
		{
			sync.POST("/products", syncHandler.SyncProducts)
			sync.POST("/inventory", syncHandler.SyncInventory)
			sync.GET("/orders", syncHandler.GetOrders)
			sync.PATCH("/orders/:id", syncHandler.UpdateOrderStatus)
		}

		// Maintenance
		admin := api.Group("/admin", middleware.AdminKeyAuth(cfg.AdminAPIKey))
		{
			admin.POST("/images/convert", adminHandler.ConvertImages)
			admin.POST("/images/thumbnails", adminHandler.GenerateThumbnails)
			admin.POST("/catalog/backfill", adminHandler.Backfill)
			admin.POST("/catalog/resync", adminHandler.Resync)
			admin.POST("/catalog/reconcile", adminHandler.Reconcile)
			admin.GET("/catalog/reconcile", adminHandler.ReconcileStatus)
			admin.GET("/catalog/export", adminHandler.ExportCatalog)
			admin.POST("/catalog/import", importHandler.ImportCatalog)
			admin.GET("/catalog/import/template", importHandler.GetImportTemplate)
			admin.POST("/cache/clear", adminHandler.ClearCache)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Start background workers
	reconciler.Start()
	log.Println("✓ Reconciliation worker started")

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting %s on port %s", serviceName, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down %s...", serviceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reconciler.Stop()
	log.Println("✓ Background workers stopped")

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	log.Printf("%s stopped", serviceName)
}
