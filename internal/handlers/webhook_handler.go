package handlers

import (
	"net/http"

	"github.com/Lorient94/GimnasioAdmin/internal/logger"
	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/internal/services"
	"github.com/Lorient94/GimnasioAdmin/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	*BaseHandler
	reconciliationService services.ReconciliationService
}

func NewWebhookHandler(base *BaseHandler, reconciliationService services.ReconciliationService) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:           base,
		reconciliationService: reconciliationService,
	}
}

func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/mercadopago/webhook", h.Receive)
}

// Receive acknowledges gateway notifications. It only persists the event;
// the reconciliation worker applies it afterwards, so local processing
// latency never trips the gateway's retry timers.
//
// Malformed payloads are the one case that answers 4xx before persistence: a
// corrected redelivery must still be applicable. Anything after persistence
// is swallowed and logged, because it is not the gateway's fault.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var notification models.WebhookNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid webhook payload: "+err.Error()))
		return
	}
	if err := h.validator.Validate(&notification); err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid webhook payload: "+err.Error()))
		return
	}

	if err := h.reconciliationService.Ingest(h.GetDB(c), &notification); err != nil {
		if apperrors.Is(err, apperrors.ErrDuplicateEvent) {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
		logger.CtxWithError(c.Request.Context(), "webhook ingest failed, acknowledging anyway", err,
			"event_id", notification.EventID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
