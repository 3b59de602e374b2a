package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/ferneyS02/licor-solution/config"
	"github.com/ferneyS02/licor-solution/internal/events"
	"github.com/ferneyS02/licor-solution/internal/middleware"
	authhandler "github.com/ferneyS02/licor-solution/internal/services/auth/handler"
	cataloghandler "github.com/ferneyS02/licor-solution/internal/services/catalog/handler"
	ordershandler "github.com/ferneyS02/licor-solution/internal/services/orders/handler"
	reportshandler "github.com/ferneyS02/licor-solution/internal/services/reports/handler"
	tableshandler "github.com/ferneyS02/licor-solution/internal/services/tables/handler"
)

func setupRouter(db *gorm.DB, rdb *redis.Client, pub *events.Publisher, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(cfg.HTTP.RateLimit))

	authH := authhandler.NewAuthHandler(db, cfg.Auth.TokenTTL)
	tablesH := tableshandler.NewTablesHandler(db)
	ordersH := ordershandler.NewOrdersHandler(db, rdb, pub)
	catalogH := cataloghandler.NewCatalogHandler(db, rdb)
	reportsH := reportshandler.NewReportsHandler(db)

	r.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "database": "unreachable"})
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "cache": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/auth/login", authH.Login)

	protected := api.Group("")
	protected.Use(middleware.JWTAuth())
	{
		protected.GET("/auth/me", authH.Me)
		protected.POST("/auth/change-password", authH.ChangePassword)

		protected.GET("/tables", tablesH.List)
		protected.PUT("/tables/:id/state", tablesH.SetState)
		protected.GET("/tables/:id/order", ordersH.GetOpenOrderForTable)
		protected.POST("/tables/:id/open", ordersH.OpenTable)

		protected.GET("/orders/:id/lines", ordersH.Lines)
		protected.POST("/orders/:id/lines", ordersH.AddLine)
		protected.POST("/orders/:id/lines/remove", ordersH.RemoveLine)
		protected.POST("/orders/:id/pay", ordersH.Pay)
		protected.POST("/orders/:id/close", ordersH.Close)
		protected.DELETE("/orders/:id", ordersH.Cancel)

		protected.GET("/categories", catalogH.ListCategories)
		protected.GET("/products/:categoryId", catalogH.ProductsByCategory)

		protected.GET("/admin/products", catalogH.ListProducts)
		protected.GET("/admin/products/:id", catalogH.GetProduct)
		protected.POST("/admin/products", catalogH.CreateProduct)
		protected.PUT("/admin/products/:id", catalogH.UpdateProduct)
		protected.PATCH("/admin/products/:id/price", catalogH.ChangePrice)
		protected.DELETE("/admin/products/:id", catalogH.DeleteProduct)

		protected.GET("/admin/business-day", ordersH.GetBusinessDay)
		protected.POST("/admin/business-day/close", ordersH.CloseBusinessDay)
		protected.DELETE("/admin/purge-sales", reportsH.PurgeSales)

		protected.GET("/reports/range", reportsH.Range)
	}

	return r
}
