package server

import (
	"github.com/thirai-kg/backend/internal/server/middleware"
	"github.com/thirai-kg/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Ingestion routes
	apiRoutes.POST("/ingest", routes.IngestHandler, middleware.RequirePermission(middleware.PermissionIngest))
	apiRoutes.POST("/ingest/batch", routes.IngestBatchHandler, middleware.RequirePermission(middleware.PermissionIngest))
	apiRoutes.GET("/jobs/:id", routes.GetJobHandler, middleware.RequirePermission(middleware.PermissionIngest))

	// Question answering
	apiRoutes.POST("/answer", routes.AnswerHandler)

	// Explore routes
	apiRoutes.GET("/explore/entities/:name", routes.ExploreEntityHandler)
	apiRoutes.GET("/explore/path", routes.ExplorePathHandler)
	apiRoutes.GET("/explore/stats", routes.ExploreStatsHandler)
	apiRoutes.GET("/export", routes.ExportHandler, middleware.RequirePermission(middleware.PermissionExport))
}
