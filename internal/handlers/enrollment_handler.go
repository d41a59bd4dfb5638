package handlers

import (
	"net/http"

	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/internal/services"

	"github.com/gin-gonic/gin"
)

type EnrollmentHandler struct {
	*BaseHandler
	enrollmentService   services.EnrollmentService
	cancellationService services.CancellationService
}

func NewEnrollmentHandler(base *BaseHandler, enrollmentService services.EnrollmentService, cancellationService services.CancellationService) *EnrollmentHandler {
	return &EnrollmentHandler{
		BaseHandler:         base,
		enrollmentService:   enrollmentService,
		cancellationService: cancellationService,
	}
}

func (h *EnrollmentHandler) RegisterRoutes(r *gin.RouterGroup) {
	enrollments := r.Group("/enrollments")
	{
		enrollments.POST("", h.Create)
		enrollments.GET("/:id", h.Get)
		enrollments.DELETE("/:id", h.Cancel)
		enrollments.POST("/:id/reactivate", h.Reactivate)
		enrollments.POST("/:id/complete", h.Complete)
	}

	r.GET("/clients/:dni/enrollments", h.ListByClient)
	r.GET("/classes/:id/enrollments/stats", h.Stats)
}

func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req models.EnrollmentCreateRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	enrollment, err := h.enrollmentService.Create(h.GetDB(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"enrollment": enrollment})
}

func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollmentService.Get(h.GetDB(c), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollment": enrollment})
}

// Cancel runs the full coordinator: enrollment cancellation plus, when the
// linked transaction already settled, the gateway refund.
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	var req models.EnrollmentCancelRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	result, err := h.cancellationService.CancelAndMaybeRefund(
		c.Request.Context(), h.GetDB(c), c.Param("id"), req.Reason)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *EnrollmentHandler) Reactivate(c *gin.Context) {
	enrollment, err := h.enrollmentService.Reactivate(h.GetDB(c), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollment": enrollment})
}

func (h *EnrollmentHandler) Complete(c *gin.Context) {
	enrollment, err := h.enrollmentService.Complete(h.GetDB(c), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollment": enrollment})
}

func (h *EnrollmentHandler) ListByClient(c *gin.Context) {
	enrollments, err := h.enrollmentService.ListByClient(h.GetDB(c), c.Param("dni"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollments": enrollments, "total": len(enrollments)})
}

func (h *EnrollmentHandler) Stats(c *gin.Context) {
	stats, err := h.enrollmentService.Stats(h.GetDB(c), c.Param("id"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
