package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sokocraft/escrow-service/internal/api/handler"
	"github.com/sokocraft/escrow-service/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application.
// The gateway callback endpoint stays outside the auth group: the gateway
// does not hold platform credentials and the handler acknowledges everything.
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	jwtSecret string,
	paymentHandler *handler.PaymentHandler,
	callbackHandler *handler.CallbackHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(jwtSecret))
	{
		orders := v1.Group("/orders")
		{
			orders.POST("/:id/payment", paymentHandler.Initiate)
			orders.GET("/:id/payment", paymentHandler.GetByOrder)
			orders.POST("/:id/delivery-confirmation", paymentHandler.ConfirmDelivery)
			orders.POST("/:id/refund", paymentHandler.Refund)
		}
	}

	// Inbound gateway notifications, unauthenticated
	r.POST("/payment/callback", callbackHandler.Receive)

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
