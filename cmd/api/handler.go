package api

import (
	"github.com/gin-gonic/gin"

	"mailpilot-backend/internal/realtime"
	webhookDelivery "mailpilot-backend/internal/webhook/delivery"
	"mailpilot-backend/pkg/config"
)

// Handler owns the HTTP surface: the webhook receiver, the websocket
// endpoint and health
type Handler struct {
	webhookHandler *webhookDelivery.WebhookHandler
	hub            *realtime.Hub
	config         *config.Config
}

func NewHandler(webhookHandler *webhookDelivery.WebhookHandler, hub *realtime.Hub, cfg *config.Config) *Handler {
	return &Handler{
		webhookHandler: webhookHandler,
		hub:            hub,
		config:         cfg,
	}
}

func (h *Handler) Start(addr string) error {
	if h.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.webhookHandler, h.hub, h.config)

	return r.Run(addr)
}
