package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ferneyS02/licor-solution/internal/apperr"
	"github.com/ferneyS02/licor-solution/internal/auth"
	"github.com/ferneyS02/licor-solution/internal/database/models"
	"github.com/ferneyS02/licor-solution/internal/middleware"
)

const (
	CATEGORY_LIST_CACHE_KEY      = "catalog:categories"
	PRODUCT_CACHE_PREFIX         = "catalog:product:"
	PRODUCT_LIST_CACHE_PREFIX    = "catalog:products:cat:"
	PRODUCT_ADMIN_LIST_CACHE_KEY = "catalog:products"

	CACHE_TTL_SHORT  = 5 * time.Minute
	CACHE_TTL_MEDIUM = 30 * time.Minute
)

type CatalogHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCatalogHandler(db *gorm.DB, redisClient *redis.Client) *CatalogHandler {
	return &CatalogHandler{db: db, redis: redisClient}
}

type categoryResponse struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
}

type productResponse struct {
	ID         int32   `json:"id"`
	Name       string  `json:"name"`
	Price      string  `json:"price"`
	Stock      int32   `json:"stock"`
	CategoryID int32   `json:"categoryId"`
	Image      *string `json:"image,omitempty"`
}

type productRequest struct {
	Name       string  `json:"name"`
	Price      string  `json:"price"`
	Stock      int32   `json:"stock"`
	CategoryID int32   `json:"categoryId"`
	Image      *string `json:"image"`
}

type priceRequest struct {
	Price string `json:"price"`
}

func productToResponse(p models.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Stock:      p.Stock,
		CategoryID: p.CategoryID,
		Image:      p.Image,
	}
}

func (s *CatalogHandler) invalidateProductCaches(ctx context.Context, products ...models.Product) {
	keys := []string{PRODUCT_ADMIN_LIST_CACHE_KEY}
	for _, p := range products {
		keys = append(keys,
			fmt.Sprintf("%s%d", PRODUCT_CACHE_PREFIX, p.ID),
			fmt.Sprintf("%s%d", PRODUCT_LIST_CACHE_PREFIX, p.CategoryID),
		)
	}
	_ = s.redis.Del(ctx, keys...)
}

// ListCategories serves the category list from cache when warm.
func (s *CatalogHandler) ListCategories(c *gin.Context) {
	ctx := c.Request.Context()

	if cached, err := s.redis.Get(ctx, CATEGORY_LIST_CACHE_KEY).Result(); err == nil {
		var resp []categoryResponse
		if json.Unmarshal([]byte(cached), &resp) == nil {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, cat := range categories {
		resp = append(resp, categoryResponse{ID: cat.ID, Name: cat.Name})
	}

	if body, err := json.Marshal(resp); err == nil {
		_ = s.redis.Set(ctx, CATEGORY_LIST_CACHE_KEY, body, CACHE_TTL_MEDIUM).Err()
	}
	c.JSON(http.StatusOK, resp)
}

// ProductsByCategory is the sell-screen lookup: id, name, price, image.
func (s *CatalogHandler) ProductsByCategory(c *gin.Context) {
	categoryID, err := strconv.ParseInt(c.Param("categoryId"), 10, 32)
	if err != nil || categoryID <= 0 {
		apperr.Respond(c, apperr.InvalidInput("INVALID_ID", "invalid category id"))
		return
	}

	ctx := c.Request.Context()
	cacheKey := fmt.Sprintf("%s%d", PRODUCT_LIST_CACHE_PREFIX, categoryID)

	if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var resp []productResponse
		if json.Unmarshal([]byte(cached), &resp) == nil {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("name").
		Find(&products).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productToResponse(p))
	}

	if body, err := json.Marshal(resp); err == nil {
		_ = s.redis.Set(ctx, cacheKey, body, CACHE_TTL_SHORT).Err()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *CatalogHandler) requireManager(c *gin.Context) bool {
	actor, ok := middleware.CurrentActor(c)
	if !ok || !auth.Allowed(auth.OpManageProducts, actor.Role) {
		apperr.Respond(c, apperr.Forbidden("FORBIDDEN", "role cannot manage the catalog"))
		return false
	}
	return true
}

// ListProducts is the admin view with optional name and category filters.
func (s *CatalogHandler) ListProducts(c *gin.Context) {
	if !s.requireManager(c) {
		return
	}
	ctx := c.Request.Context()

	query := s.db.WithContext(ctx).Model(&models.Product{})
	if idStr := c.Query("categoryId"); idStr != "" {
		if id, err := strconv.ParseInt(idStr, 10, 32); err == nil {
			query = query.Where("category_id = ?", id)
		}
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		query = query.Where("name ILIKE ?", "%"+q+"%")
	}

	var products []models.Product
	if err := query.Order("name").Find(&products).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productToResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *CatalogHandler) GetProduct(c *gin.Context) {
	if !s.requireManager(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		apperr.Respond(c, apperr.InvalidInput("INVALID_ID", "invalid product id"))
		return
	}

	ctx := c.Request.Context()
	cacheKey := fmt.Sprintf("%s%d", PRODUCT_CACHE_PREFIX, id)
	if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var resp productResponse
		if json.Unmarshal([]byte(cached), &resp) == nil {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	var product models.Product
	err = s.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Respond(c, apperr.NotFound("PRODUCT_NOT_FOUND", "product %d does not exist", id))
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	resp := productToResponse(product)
	if body, err := json.Marshal(resp); err == nil {
		_ = s.redis.Set(ctx, cacheKey, body, CACHE_TTL_SHORT).Err()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *CatalogHandler) validateProductRequest(req *productRequest, tx *gorm.DB) *apperr.Error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apperr.InvalidInput("INVALID_NAME", "name is required")
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return apperr.InvalidInput("INVALID_PRICE", "price must be a non-negative decimal")
	}
	req.Price = price.StringFixed(2)
	if req.Stock < 0 {
		return apperr.InvalidInput("INVALID_STOCK", "stock cannot be negative")
	}

	var category models.Category
	if err := tx.First(&category, req.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.InvalidInput("INVALID_CATEGORY", "category %d does not exist", req.CategoryID)
		}
		return apperr.Storage(err)
	}
	return nil
}

func (s *CatalogHandler) CreateProduct(c *gin.Context) {
	if !s.requireManager(c) {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.InvalidInput("INVALID_BODY", "malformed product body"))
		return
	}

	ctx := c.Request.Context()
	db := s.db.WithContext(ctx)
	if appErr := s.validateProductRequest(&req, db); appErr != nil {
		apperr.Respond(c, appErr)
		return
	}

	product := models.Product{
		Name:       req.Name,
		Price:      req.Price,
		Stock:      req.Stock,
		CategoryID: req.CategoryID,
		Image:      req.Image,
	}
	if err := db.Create(&product).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	s.invalidateProductCaches(ctx, product)
	c.JSON(http.StatusOK, productToResponse(product))
}

func (s *CatalogHandler) UpdateProduct(c *gin.Context) {
	if !s.requireManager(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		apperr.Respond(c, apperr.InvalidInput("INVALID_ID", "invalid product id"))
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.InvalidInput("INVALID_BODY", "malformed product body"))
		return
	}

	ctx := c.Request.Context()
	db := s.db.WithContext(ctx)

	var product models.Product
	err = db.First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Respond(c, apperr.NotFound("PRODUCT_NOT_FOUND", "product %d does not exist", id))
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	if appErr := s.validateProductRequest(&req, db); appErr != nil {
		apperr.Respond(c, appErr)
		return
	}

	previousCategory := product.CategoryID
	product.Name = req.Name
	product.Price = req.Price
	product.Stock = req.Stock
	product.CategoryID = req.CategoryID
	product.Image = req.Image
	if err := db.Save(&product).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	s.invalidateProductCaches(ctx, product, models.Product{ID: product.ID, CategoryID: previousCategory})
	c.JSON(http.StatusOK, productToResponse(product))
}

// ChangePrice updates only the current price. Existing order lines keep
// their snapshots.
func (s *CatalogHandler) ChangePrice(c *gin.Context) {
	if !s.requireManager(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		apperr.Respond(c, apperr.InvalidInput("INVALID_ID", "invalid product id"))
		return
	}
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.InvalidInput("INVALID_BODY", "malformed price body"))
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		apperr.Respond(c, apperr.InvalidInput("INVALID_PRICE", "price must be a non-negative decimal"))
		return
	}

	ctx := c.Request.Context()
	var product models.Product
	err = s.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Respond(c, apperr.NotFound("PRODUCT_NOT_FOUND", "product %d does not exist", id))
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	product.Price = price.StringFixed(2)
	if err := s.db.WithContext(ctx).Save(&product).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	s.invalidateProductCaches(ctx, product)
	c.JSON(http.StatusOK, productToResponse(product))
}

// DeleteProduct refuses to remove anything that ever appeared in a sale,
// so historical lines keep a valid product reference.
func (s *CatalogHandler) DeleteProduct(c *gin.Context) {
	if !s.requireManager(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		apperr.Respond(c, apperr.InvalidInput("INVALID_ID", "invalid product id"))
		return
	}

	ctx := c.Request.Context()
	db := s.db.WithContext(ctx)

	var product models.Product
	err = db.First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperr.Respond(c, apperr.NotFound("PRODUCT_NOT_FOUND", "product %d does not exist", id))
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var sold int64
	if err := db.Model(&models.OrderLine{}).Where("product_id = ?", id).Count(&sold).Error; err != nil {
		apperr.Respond(c, err)
		return
	}
	if sold > 0 {
		apperr.Respond(c, apperr.Conflict("PRODUCT_IN_USE",
			"product %d was already sold; deactivate it instead of deleting", id))
		return
	}

	if err := db.Delete(&product).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	s.invalidateProductCaches(ctx, product)
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": product.ID})
}
