// Package http exposes the delay use cases over a JSON HTTP API.
package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.ngs.io/iono-api/internal/usecase"
)

// SetupRouter creates and configures the Gin router. An empty
// allowedOrigins list allows all origins.
func SetupRouter(delayUC *usecase.DelayUseCase, allowedOrigins []string) *gin.Engine {
	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// Create handler.
	handler := NewHandler(delayUC)

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.GET("/files", handler.GetFiles)
	v1.GET("/delays", handler.GetDelays)
	v1.GET("/klobuchar", handler.GetKlobuchar)
	v1.GET("/gpstime", handler.GetGPSTime)

	// Health check and metrics.
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
