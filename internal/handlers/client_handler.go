package handlers

import (
	"net/http"

	"github.com/Lorient94/GimnasioAdmin/internal/models"
	"github.com/Lorient94/GimnasioAdmin/internal/repositories"
	"github.com/Lorient94/GimnasioAdmin/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// ClientHandler exposes the member registry. Enrollments and transactions
// reference clients by DNI, so registration is the only write here.
type ClientHandler struct {
	*BaseHandler
	clientRepo repositories.ClientRepository
}

func NewClientHandler(base *BaseHandler, clientRepo repositories.ClientRepository) *ClientHandler {
	return &ClientHandler{
		BaseHandler: base,
		clientRepo:  clientRepo,
	}
}

func (h *ClientHandler) RegisterRoutes(r *gin.RouterGroup) {
	clients := r.Group("/clients")
	{
		clients.POST("", h.Create)
		clients.GET("", h.ListActive)
		clients.GET("/:dni", h.Get)
	}
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req models.ClientCreateRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	client := &models.Client{
		DNI:      req.DNI,
		Name:     req.Name,
		Email:    req.Email,
		IsActive: true,
	}
	if err := h.clientRepo.Create(h.GetDB(c), client); err != nil {
		if err == repositories.ErrDuplicateDNI {
			h.HandleServiceError(c, apperrors.ErrConflict(err, "client", "DNI already registered"))
			return
		}
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"client": client})
}

func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.clientRepo.FindByDNI(h.GetDB(c), c.Param("dni"))
	if err != nil {
		if err == repositories.ErrClientNotFound {
			h.HandleServiceError(c, apperrors.ErrNotFound(err))
			return
		}
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"client": client})
}

func (h *ClientHandler) ListActive(c *gin.Context) {
	clients, err := h.clientRepo.ListActive(h.GetDB(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"clients": clients, "total": len(clients)})
}
