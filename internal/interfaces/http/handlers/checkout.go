// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	checkoutService *checkout.Service
	config          *config.Config
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, logger *logrus.Logger) *CheckoutHandler {
	cartService := cart.NewService(db, cfg)
	sessionStore := checkout.NewSessionStore(redisClient, cfg, cartService)
	orderService := order.NewService(db, cfg, logger, cartService)
	tossClient := payment.NewTossClient(cfg)

	return &CheckoutHandler{
		checkoutService: checkout.NewService(cfg, logger, sessionStore, orderService, tossClient),
		config:          cfg,
	}
}

// BeginCheckout handles POST /checkout/session
func (h *CheckoutHandler) BeginCheckout(c *gin.Context) {
	ownerID, _ := middleware.GetUserIDFromContext(c)

	var req checkout.BeginCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.checkoutService.BeginCheckout(ownerID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout session created successfully",
		"data":    result,
	})
}

// CompleteCheckout handles POST /checkout/complete
func (h *CheckoutHandler) CompleteCheckout(c *gin.Context) {
	ownerID, _ := middleware.GetUserIDFromContext(c)

	var params checkout.CompleteCheckoutParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result := h.checkoutService.CompleteCheckout(ownerID, &params)
	if !result.Success {
		c.JSON(h.completionStatus(result.FailureCode), gin.H{
			"error": result.Message,
			"data":  result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout completed successfully",
		"data":    result,
	})
}

// completionStatus maps a completion failure to an HTTP status. Failures
// after the payment was captured are server-side problems, everything
// before that is a bad or stale request.
func (h *CheckoutHandler) completionStatus(failureCode string) int {
	switch failureCode {
	case checkout.FailureOrderCreateFailed, checkout.FailureStatusUpdateFailed:
		return http.StatusInternalServerError
	case payment.CodeMissingSecretKey:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
