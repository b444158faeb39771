package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authDelivery "mailpilot-backend/internal/auth/delivery"
	"mailpilot-backend/internal/realtime"
	webhookDelivery "mailpilot-backend/internal/webhook/delivery"
	"mailpilot-backend/pkg/config"
)

func SetupRoutes(r *gin.Engine, webhookHandler *webhookDelivery.WebhookHandler, hub *realtime.Hub, cfg *config.Config) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Pub/Sub push endpoint; verified in the handler, not by the
		// user-facing auth middleware
		api.POST("/gmail/webhook", webhookHandler.HandleGmailPush)

		// Realtime websocket (protected)
		api.GET("/ws", authDelivery.AuthMiddleware(cfg.JWTSecret), hub.HandleWS)
	}
}
