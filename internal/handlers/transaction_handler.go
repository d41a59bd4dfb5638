package handlers

import (
	"net/http"

	"github.com/Lorient94/GimnasioAdmin/internal/logger"
	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/internal/services"
	"github.com/Lorient94/GimnasioAdmin/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type TransactionHandler struct {
	*BaseHandler
	transactionService    services.TransactionService
	reconciliationService services.ReconciliationService
}

func NewTransactionHandler(base *BaseHandler, transactionService services.TransactionService, reconciliationService services.ReconciliationService) *TransactionHandler {
	return &TransactionHandler{
		BaseHandler:           base,
		transactionService:    transactionService,
		reconciliationService: reconciliationService,
	}
}

func (h *TransactionHandler) RegisterRoutes(r *gin.RouterGroup) {
	transactions := r.Group("/transactions")
	{
		transactions.POST("", h.Create)
		transactions.GET("", h.GetByReference)
		transactions.GET("/stats", h.Stats)
		transactions.GET("/:id", h.Get)
		transactions.GET("/:id/payments", h.ListAttempts)
		transactions.POST("/:id/payments", h.RecordAttempt)
		transactions.POST("/:id/advance", h.Advance)
		transactions.POST("/:id/verify", h.Verify)
	}

	r.POST("/payments/:id/complete", h.CompleteAttempt)
	r.GET("/clients/:dni/transactions", h.ListByClient)
}

func (h *TransactionHandler) Create(c *gin.Context) {
	var req models.TransactionCreateRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	ctx := logger.WithClientID(c.Request.Context(), req.ClientDNI)
	response, err := h.transactionService.Create(ctx, h.GetDB(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

func (h *TransactionHandler) Get(c *gin.Context) {
	transaction, err := h.transactionService.Get(h.GetDB(c), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// GetByReference resolves a transaction from its gateway external reference,
// the value checkout return pages carry back.
func (h *TransactionHandler) GetByReference(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Query parameter 'reference' is required"))
		return
	}

	transaction, err := h.transactionService.GetByExternalReference(h.GetDB(c), reference)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

type advanceRequest struct {
	State models.TransactionState `json:"state" validate:"required,oneof=pending completed rejected cancelled refunded"`
}

// Advance is the administrative edge for non-gateway settlements (cash,
// transfers confirmed by the front desk).
func (h *TransactionHandler) Advance(c *gin.Context) {
	var req advanceRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	transaction, err := h.transactionService.Advance(h.GetDB(c), c.Param("id"), req.State)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// Verify triggers the pull-path reconciliation for a transaction whose
// webhook never arrived.
func (h *TransactionHandler) Verify(c *gin.Context) {
	transaction, err := h.reconciliationService.Verify(c.Request.Context(), h.GetDB(c), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

type recordAttemptRequest struct {
	ExternalReference string  `json:"external_reference" validate:"required"`
	Amount            float64 `json:"amount" validate:"gte=0"`
}

// RecordAttempt registers a manual payment attempt (front-desk cash or
// transfer receipts). Gateway attempts arrive through reconciliation instead.
func (h *TransactionHandler) RecordAttempt(c *gin.Context) {
	var req recordAttemptRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	payment, err := h.transactionService.RecordAttempt(h.GetDB(c), c.Param("id"), req.ExternalReference, req.Amount)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payment": payment})
}

// CompleteAttempt settles a manual attempt once the money is confirmed.
func (h *TransactionHandler) CompleteAttempt(c *gin.Context) {
	if err := h.transactionService.CompleteAttempt(h.GetDB(c), c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (h *TransactionHandler) ListAttempts(c *gin.Context) {
	payments, err := h.transactionService.ListAttempts(h.GetDB(c), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments, "total": len(payments)})
}

func (h *TransactionHandler) ListByClient(c *gin.Context) {
	limit := ParseQueryInt(c, "limit", 50)
	transactions, err := h.transactionService.ListByClient(h.GetDB(c), c.Param("dni"), limit)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "total": len(transactions)})
}

func (h *TransactionHandler) Stats(c *gin.Context) {
	stats, err := h.transactionService.Stats(h.GetDB(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
