package auth

import (
	"context"
	"errors"
	"net/http"

	"authservice/internal/domain"
	"authservice/internal/middleware"
	"authservice/internal/pkg/response"
	"authservice/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Engine is what the handler needs from the token lifecycle engine.
type Engine interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, raw string) (*TokenPair, error)
	Logout(ctx context.Context, raw string) error
	UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*domain.User, error)
}

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service Engine
	log     logrus.FieldLogger
}

func NewHandler(service Engine, log logrus.FieldLogger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	v1.POST("/register", h.Register)
	v1.POST("/login", h.Login)
	v1.POST("/refresh", h.Refresh)
	v1.POST("/logout", h.Logout)
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.GET("/me", h.GetMe)
	protected.PUT("/me", h.UpdateMe)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, http.StatusBadRequest, validator.FromBinding(err))
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, toPublic(user))
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, http.StatusBadRequest, validator.FromBinding(err))
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, pair)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, http.StatusBadRequest, validator.FromBinding(err))
		return
	}

	pair, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, pair)
}

func (h *Handler) Logout(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, http.StatusBadRequest, validator.FromBinding(err))
		return
	}

	if err := h.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

func (h *Handler) GetMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	response.Success(c, http.StatusOK, toPublic(user))
}

func (h *Handler) UpdateMe(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, http.StatusBadRequest, validator.FromBinding(err))
		return
	}
	if fields := validator.Validate(req); fields != nil {
		response.Validation(c, http.StatusBadRequest, fields)
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), current.ID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, toPublic(user))
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPasswordTooLong):
		response.Validation(c, http.StatusBadRequest, map[string]string{"password": "max"})
	case errors.Is(err, ErrBlankUsername):
		response.Validation(c, http.StatusBadRequest, map[string]string{"username": "required"})
	case errors.Is(err, ErrEmailAlreadyExists):
		response.Error(c, http.StatusBadRequest, "EMAIL_EXISTS", "This email is already registered")
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Email or password is incorrect")
	case errors.Is(err, ErrMissingToken):
		response.Error(c, http.StatusBadRequest, "MISSING_TOKEN", "Refresh token is required")
	case errors.Is(err, ErrMalformedToken):
		response.Error(c, http.StatusBadRequest, "MALFORMED_TOKEN", "Refresh token is malformed")
	case errors.Is(err, ErrUnknownToken):
		response.Error(c, http.StatusUnauthorized, "UNKNOWN_TOKEN", "Refresh token is not recognized")
	case errors.Is(err, ErrExpiredToken):
		response.Error(c, http.StatusUnauthorized, "EXPIRED_TOKEN", "Refresh token has expired")
	case errors.Is(err, ErrSessionConflict):
		response.Error(c, http.StatusConflict, "SESSION_CONFLICT", "Session changed concurrently, retry")
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, ErrInternalInconsistency), errors.Is(err, ErrUnknownSubject):
		h.logError(c, err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_INCONSISTENCY", "Internal error")
	default:
		h.logError(c, err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}

func (h *Handler) logError(c *gin.Context, err error) {
	_ = c.Error(err)
	h.log.WithError(err).WithField("path", c.FullPath()).Error("auth request failed")
}

func toPublic(u *domain.User) UserPublic {
	return UserPublic{ID: u.ID, Username: u.Username, Email: u.Email}
}
