package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/flicky/flashmart-api/internal/authz"
	"github.com/flicky/flashmart-api/internal/middleware"
)

type Handlers struct {
	Auth    *AuthHandler
	Address *AddressHandler
	Catalog *CatalogHandler
	Pincode *PincodeHandler
	Cart    *CartHandler
	Order   *OrderHandler
	Admin   *AdminOrderHandler
	Health  *HealthHandler
}

func RegisterRoutes(router *gin.Engine, h Handlers, resolver middleware.IdentityResolver, enforcer middleware.Authorizer) {
	if h.Health != nil {
		router.GET("/healthz", h.Health.Healthz)
		router.GET("/readyz", h.Health.Readyz)
	}

	authed := middleware.AuthMiddleware(resolver)
	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.GET("/me", authed, h.Auth.Me)

		api.GET("/categories", h.Catalog.ListCategories)
		api.GET("/products", h.Catalog.ListProducts)
		api.GET("/products/:id", h.Catalog.GetProduct)
		api.POST("/pincode/check", h.Pincode.Check)

		addresses := api.Group("/addresses", authed)
		addresses.GET("", h.Address.List)
		addresses.POST("", h.Address.Add)
		addresses.DELETE("/:id", h.Address.Delete)

		cart := api.Group("/cart", authed)
		cart.GET("", h.Cart.GetCart)
		cart.POST("/add", h.Cart.AddItem)
		cart.PUT("/update", h.Cart.UpdateItem)
		cart.DELETE("/remove/:product_id", h.Cart.RemoveItem)
		cart.DELETE("/clear", h.Cart.Clear)

		orders := api.Group("/orders", authed)
		orders.POST("", h.Order.CreateOrder)
		orders.GET("", h.Order.ListOrders)
		orders.GET("/:id", h.Order.GetOrder)
		orders.GET("/:id/history", h.Order.History)

		admin := api.Group("/admin", authed)
		adminOrders := admin.Group("/orders")
		adminOrders.GET("", middleware.RequirePermission(enforcer, authz.ResourceOrder, authz.ActionRead), h.Admin.ListOrders)
		adminOrders.GET("/export", middleware.RequirePermission(enforcer, authz.ResourceOrder, authz.ActionRead), h.Admin.Export)
		adminOrders.GET("/live", middleware.RequirePermission(enforcer, authz.ResourceOrder, authz.ActionRead), h.Admin.Live)
		adminOrders.PUT("/:id/status", middleware.RequirePermission(enforcer, authz.ResourceOrder, authz.ActionWrite), h.Admin.UpdateStatus)

		catalog := admin.Group("", middleware.RequirePermission(enforcer, authz.ResourceCatalog, authz.ActionWrite))
		catalog.POST("/categories", h.Catalog.CreateCategory)
		catalog.POST("/products", h.Catalog.CreateProduct)
		catalog.PUT("/products/:id", h.Catalog.UpdateProduct)
		catalog.DELETE("/products/:id", h.Catalog.DeleteProduct)

		admin.PUT("/pincodes/:pincode", middleware.RequirePermission(enforcer, authz.ResourcePincode, authz.ActionWrite), h.Pincode.Upsert)
	}
}
