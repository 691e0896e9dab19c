package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/classifier"
	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/repository"
	"storefront-sync-service/internal/services"
)

type ProductsHandler struct {
	catalog *services.CatalogStore
	logger  *logrus.Entry
}

func NewProductsHandler(catalog *services.CatalogStore, logger *logrus.Logger) *ProductsHandler {
	return &ProductsHandler{
		catalog: catalog,
		logger:  logger.WithField("component", "products_handler"),
	}
}

// GetProducts godoc
// @Summary List products
// @Description Paginated storefront catalog with category, subcategory and sale filters
// @Tags Products
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param category query string false "Category id, or sale"
// @Param subcategory query string false "Subcategory name"
// @Param sale query bool false "Only products on sale"
// @Success 200 {object} models.ProductListResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /products [get]
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	saleOnly, _ := strconv.ParseBool(c.DefaultQuery("sale", "false"))

	filter := models.ProductFilter{
		Category:    strings.TrimSpace(c.Query("category")),
		Subcategory: strings.TrimSpace(c.Query("subcategory")),
		SaleOnly:    saleOnly,
		Page:        page,
		Limit:       queryLimit(c),
	}

	products, pagination, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("failed to list products")
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to retrieve products")
		return
	}

	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       products,
		Pagination: pagination,
	})
}

// GetProduct godoc
// @Summary Get product
// @Tags Products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} models.ProductResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{id} [get]
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("product_id", id).Error("failed to get product")
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to retrieve product")
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// CreateProduct godoc
// @Summary Create product
// @Description Manual product creation. Category is derived from SKU and name when omitted.
// @Tags Products
// @Accept json
// @Produce json
// @Param product body models.CreateProductRequest true "Product"
// @Success 201 {object} models.ProductResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /products [post]
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		respondFieldError(c, http.StatusBadRequest, *apiErr)
		return
	}

	class := classifier.Classify(models.Deref(req.SKU), req.Name)
	product := &models.Product{
		ExternalID:  req.ExternalID,
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Price:       models.MinorUnits(req.Price),
		ImageURL:    req.ImageURL,
		Category:    class.Category,
		Subcategory: models.Ptr(class.Subcategory),
		Sizes:       models.StringList(req.Sizes),
		Colors:      models.StringList(req.Colors),
		IsNew:       req.IsNew,
		OnSale:      req.OnSale || classifier.IsOnSale(req.Name, req.Price, 0),
	}
	if req.Category != "" {
		if !classifier.IsKnownCategory(req.Category) || req.Category == classifier.CategorySale {
			respondFieldError(c, http.StatusBadRequest, models.Error{
				Code: "VALIDATION_ERROR", Message: "Unknown category", Field: "category",
			})
			return
		}
		product.Category = req.Category
		if req.Category != class.Category || req.Subcategory != nil {
			product.Subcategory = req.Subcategory
		}
	}

	ctx := c.Request.Context()
	if err := h.catalog.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			respondError(c, http.StatusConflict, "DUPLICATE", "A product with this sku or externalId already exists")
			return
		}
		h.logger.WithError(err).Error("failed to create product")
		respondError(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create product")
		return
	}
	h.catalog.ClearCache(ctx)

	c.JSON(http.StatusCreated, models.ProductResponse{
		Success: true,
		Data:    product,
	})
}

// GetCategories godoc
// @Summary Category tree
// @Tags Categories
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /categories [get]
func (h *ProductsHandler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    classifier.Categories(),
	})
}
