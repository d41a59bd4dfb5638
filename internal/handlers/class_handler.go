package handlers

import (
	"net/http"

	"github.com/Lorient94/GimnasioAdmin/internal/repositories"

	"github.com/gin-gonic/gin"
)

// ClassHandler exposes the read-only class catalogue. Offerings are managed
// by the admin side; enrollments only consult them.
type ClassHandler struct {
	*BaseHandler
	classRepo repositories.ClassRepository
}

func NewClassHandler(base *BaseHandler, classRepo repositories.ClassRepository) *ClassHandler {
	return &ClassHandler{
		BaseHandler: base,
		classRepo:   classRepo,
	}
}

func (h *ClassHandler) RegisterRoutes(r *gin.RouterGroup) {
	classes := r.Group("/classes")
	{
		classes.GET("", h.ListActive)
		classes.GET("/:id", h.Get)
	}
}

func (h *ClassHandler) ListActive(c *gin.Context) {
	classes, err := h.classRepo.ListActive(h.GetDB(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"classes": classes, "total": len(classes)})
}

func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classRepo.FindByID(h.GetDB(c), c.Param("id"))
	if err != nil {
		if err == repositories.ErrClassNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
			return
		}
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"class": class})
}
