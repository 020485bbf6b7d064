package server

import (
	"raven/internal/server/middleware"
	"raven/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Graph lifecycle routes
	apiRoutes.POST("/graphs", routes.CreateGraphHandler, middleware.RequirePermission("graph.create"))
	apiRoutes.GET("/graphs/:id", routes.GetGraphHandler)
	apiRoutes.DELETE("/graphs/:id", routes.DeleteGraphHandler, middleware.RequirePermission("graph.delete"))

	// Graph query routes
	apiRoutes.GET("/graphs/:id/nodes/:key", routes.GetNodeHandler)
	apiRoutes.POST("/graphs/:id/similar", routes.SimilarHandler)
}
