package handlers

import (
	"net/http"

	"draw_queue/internal/auth"
	"draw_queue/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewRouter mounts every route of the service.
func NewRouter(h *QueueHandler, authn *auth.Authenticator) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/queues/counts", h.Counts)
		api.POST("/queue/leave", h.LeaveBeacon)
	}

	products := api.Group("/products/:id/queue")
	{
		products.POST("/join", authn.Middleware(), h.Join)
		products.POST("/heartbeat", authn.Middleware(), h.Heartbeat)
		products.POST("/leave", h.Leave)
		products.GET("/status", authn.OptionalMiddleware(), h.Status)
		products.GET("/events", authn.StreamMiddleware(), h.Events)
		products.GET("/ws", authn.StreamMiddleware(), h.WebSocket)
	}

	return r
}
