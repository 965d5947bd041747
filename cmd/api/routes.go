package main

import (
	"stock-finder/internal/httpapi"
	"stock-finder/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/api/health", h.Health)

	api := r.Group("/api")
	api.Use(authMW)
	{
		read := api.Group("")
		read.Use(rbac.RequireAnyKnownRole())
		{
			read.GET("/products", h.Products)
			read.POST("/search", h.Search)
			read.GET("/call/:job_id", h.GetCallJob)
		}

		// Calls cost money and reach real stores.
		dial := api.Group("")
		dial.Use(rbac.RequireAnyRole(rbac.RoleOperator))
		{
			dial.POST("/call", h.StartCalls)
			dial.POST("/call/single", h.SingleCall)
			dial.POST("/website-stock", h.WebsiteStock)
		}
	}
}
