// internal/handlers/webhook.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/repasso/repasso-backend/internal/config"
	"github.com/repasso/repasso-backend/internal/services"
)

// WebhookHandler is the gateway's entry point into the escrow engine.
type WebhookHandler struct {
	config                *config.Config
	paymentService        *services.PaymentService
	reconciliationService *services.ReconciliationService
}

func NewWebhookHandler(cfg *config.Config, paymentService *services.PaymentService, reconciliationService *services.ReconciliationService) *WebhookHandler {
	return &WebhookHandler{
		config:                cfg,
		paymentService:        paymentService,
		reconciliationService: reconciliationService,
	}
}

// POST /webhooks/payment
//
// Always acknowledges with 200 past the token check: the gateway
// retries on anything else, and our transitions are idempotent, so a
// retry storm buys nothing. Malformed payloads and processing errors
// are logged, and the reconciliation sweep covers anything that
// slipped through.
func (h *WebhookHandler) PaymentWebhook(c *gin.Context) {
	if h.config.Gateway.WebhookToken != "" {
		if c.GetHeader("asaas-access-token") != h.config.Gateway.WebhookToken {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
	}

	var event services.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		logrus.WithError(err).Warn("Unreadable webhook payload")
	} else if err := h.paymentService.ProcessWebhookEvent(&event); err != nil {
		logrus.WithError(err).WithField("event", event.Event).Error("Webhook processing failed")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// POST /cron/reconcile?token=...
//
// Invoked by an external scheduler. The sweep itself never fails the
// request; per-transaction errors are counted in the result.
func (h *WebhookHandler) Reconcile(c *gin.Context) {
	if h.config.Escrow.CronToken == "" || c.Query("token") != h.config.Escrow.CronToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid cron token"})
		return
	}

	result := h.reconciliationService.Reconcile(c.Request.Context())
	c.JSON(http.StatusOK, result)
}
