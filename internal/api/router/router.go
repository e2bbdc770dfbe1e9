package router

import (
	"github.com/gin-gonic/gin"

	"sale_inviter/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger.With("component", "api")))

	h := handler.New(deps)

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings/:key", h.UpdateSetting)

		v1.GET("/mappings", h.GetMappings)
		v1.PUT("/mappings", h.ReplaceMappings)

		v1.GET("/logs", h.GetLogs)
		v1.DELETE("/logs", h.ClearLogs)

		v1.POST("/reset", h.Reset)
		v1.POST("/sync", h.Sync)

		connections := v1.Group("/connections")
		{
			connections.POST("/github", h.TestGitHub)
			connections.POST("/gumroad", h.TestGumroad)
		}
	}

	return r
}
