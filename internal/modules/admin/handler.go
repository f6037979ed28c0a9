package admin

import (
	"errors"
	"net/http"

	"authservice/internal/middleware"
	"authservice/internal/pkg/response"
	"authservice/internal/pkg/validator"
	"authservice/internal/settings"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts admin endpoints on a group that already requires a
// staff user.
func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/settings", h.GetSettings)
	admin.PUT("/settings", h.UpdateSettings)
}

func (h *Handler) GetSettings(c *gin.Context) {
	response.Success(c, http.StatusOK, h.service.GetSettings())
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, http.StatusBadRequest, validator.FromBinding(err))
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.Validation(c, http.StatusBadRequest, fields)
		return
	}

	var actorID int64
	if actor, ok := middleware.CurrentUser(c); ok {
		actorID = actor.ID
	}

	out, err := h.service.UpdateSettings(c.Request.Context(), actorID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNothingToUpdate):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, "No settings given")
		case errors.Is(err, settings.ErrInvalidValue), errors.Is(err, settings.ErrUnknownKey):
			response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update settings")
		}
		return
	}

	response.Success(c, http.StatusOK, out)
}
