package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"storefront-sync-service/internal/cache"
	"storefront-sync-service/internal/clients"
	"storefront-sync-service/internal/images"
	"storefront-sync-service/internal/middleware"
	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
	"storefront-sync-service/internal/services"
	"storefront-sync-service/internal/workers"
)

const (
	testExchangeUser     = "1c"
	testExchangePassword = "secret"
	testSyncKey          = "sync-key"
	testAdminKey         = "admin-key"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type serverOptions struct {
	adminKey  string
	fileLimit int64
}

type testServer struct {
	router     *gin.Engine
	store      *repository.MemoryStore
	catalog    *services.CatalogStore
	checkout   *services.CheckoutService
	uploads    *clients.LocalStore
	staging    *clients.LocalStore
	reconciler *workers.ReconciliationWorker
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	uploads, err := clients.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	stagingStore, err := clients.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	store := repository.NewMemoryStore(nil)
	catalog := services.NewCatalogStore(store, cache.NewProductCache(0, nil, logger), logger)
	resolver := images.NewResolver(nil, "")
	pipeline := images.NewPipeline(uploads, nil, 0, logger)
	staging, err := services.NewStagingArea(stagingStore, nil, logger)
	require.NoError(t, err)

	importer := services.NewCommerceMLImporter(catalog, resolver, nil, logger)
	exporter := services.NewOrderExporter(store, "", logger)
	checkout := services.NewCheckoutService(store, store, catalog, nil, logger)
	sync := services.NewSyncService(catalog, resolver, nil, logger)
	maintenance := services.NewMaintenanceService(catalog, pipeline, logger)
	reconciler := workers.NewReconciliationWorker(importer, staging, 0, logger)

	exchangeHandler := NewExchangeHandler(importer, staging, pipeline, exporter, opts.fileLimit, logger)
	productsHandler := NewProductsHandler(catalog, logger)
	cartHandler := NewCartHandler(checkout, logger)
	syncHandler := NewSyncHandler(sync, checkout, logger)
	adminHandler := NewAdminHandler(maintenance, reconciler, logger)
	importHandler := NewImportHandler(sync, logger)
	healthHandler := NewHealthHandler(nil)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.Any("/api/1c-exchange", middleware.BasicAuth(testExchangeUser, testExchangePassword), exchangeHandler.Handle)

	api := router.Group("/api")
	catalogRoutes := api.Group("", middleware.CacheControl(middleware.PublicCatalogCache))
	catalogRoutes.GET("/products", productsHandler.GetProducts)
	catalogRoutes.GET("/products/:id", productsHandler.GetProduct)
	catalogRoutes.GET("/categories", productsHandler.GetCategories)
	api.POST("/products", productsHandler.CreateProduct)

	api.GET("/cart/:sessionId", cartHandler.GetCart)
	api.POST("/cart", cartHandler.AddToCart)
	api.DELETE("/cart/:sessionId/items", cartHandler.RemoveFromCart)
	api.DELETE("/cart/:sessionId", cartHandler.ClearCart)
	api.POST("/orders", cartHandler.Checkout)
	api.GET("/orders/:id", cartHandler.GetOrder)

	syncRoutes := api.Group("/sync", middleware.APIKeyAuth(testSyncKey))
	syncRoutes.POST("/products", syncHandler.SyncProducts)
	syncRoutes.POST("/inventory", syncHandler.SyncInventory)
	syncRoutes.GET("/orders", syncHandler.GetOrders)
	syncRoutes.PATCH("/orders/:id", syncHandler.UpdateOrderStatus)

	admin := api.Group("/admin", middleware.AdminKeyAuth(opts.adminKey))
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

	return &testServer{
		router:     router,
		store:      store,
		catalog:    catalog,
		checkout:   checkout,
		uploads:    uploads,
		staging:    stagingStore,
		reconciler: reconciler,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, target string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return s.do(req)
}

func (s *testServer) mustCreate(t *testing.T, p *models.Product) *models.Product {
	t.Helper()
	require.NoError(t, s.store.CreateProduct(context.Background(), p))
	return p
}

// placeOrder puts product in a cart for session and checks out
func (s *testServer) placeOrder(t *testing.T, session string, product *models.Product) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := s.checkout.AddToCart(ctx, &models.AddToCartRequest{SessionID: session, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	order, err := s.checkout.Checkout(ctx, &models.CheckoutRequest{
		SessionID:     session,
		CustomerName:  "Анна",
		CustomerEmail: "anna@example.com",
		Address:       "Тула",
	})
	require.NoError(t, err)
	return order
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.Error {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	return resp.Error
}

func testProduct(name string, price int64) *models.Product {
	return &models.Product{Name: name, Price: models.MinorUnits(price), Category: "merch"}
}
