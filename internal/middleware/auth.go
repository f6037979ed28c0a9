package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"authservice/internal/domain"
	"authservice/internal/pkg/jwt"
	"authservice/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	ctxUserID  = "user_id"
	ctxUser    = "auth_user"
	ctxAuthErr = "auth_error"
)

var ErrInvalidAuthHeader = errors.New("authorization header must be 'Bearer <token>'")

// AccessValidator resolves an access token to a user.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (*domain.User, error)
}

// Policy decides whether a request may reach the handler.
type Policy int

const (
	AllowAnonymous Policy = iota
	RequireAuthenticated
)

// Authenticate resolves the bearer token, if any, and records the outcome on
// the context. It never rejects a request itself; Require does that.
func Authenticate(v AccessValidator, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, err := bearerToken(header)
		if err == nil {
			var user *domain.User
			user, err = v.ValidateAccess(c.Request.Context(), token)
			if err == nil {
				SetCurrentUser(c, user)
				c.Next()
				return
			}
		}

		c.Set(ctxAuthErr, err)
		entry := log.WithError(err).WithField("path", c.Request.URL.Path)
		if isCredentialError(err) {
			entry.Debug("access token rejected")
		} else {
			entry.Error("access token validation failed")
		}
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidAuthHeader
	}
	return parts[1], nil
}

func isCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidAuthHeader) ||
		errors.Is(err, jwt.ErrMalformed) ||
		errors.Is(err, jwt.ErrBadSignature) ||
		errors.Is(err, jwt.ErrExpired) ||
		errors.Is(err, domain.ErrUnknownSubject)
}

// Require enforces p. Preflight requests always pass. Presented but
// rejected credentials get 403, absent ones 401.
func Require(p Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p == AllowAnonymous || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}

		err := AuthError(c)
		switch {
		case err == nil:
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided")
		case errors.Is(err, jwt.ErrExpired):
			response.Abort(c, http.StatusForbidden, "TOKEN_EXPIRED", "Access token has expired")
		case isCredentialError(err):
			response.Abort(c, http.StatusForbidden, "INVALID_TOKEN", "Access token is invalid")
		default:
			response.Abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
		}
	}
}

// CurrentUser returns the user resolved by Authenticate.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

// SetCurrentUser attaches an authenticated user to the request.
func SetCurrentUser(c *gin.Context, user *domain.User) {
	c.Set(ctxUser, user)
	c.Set(ctxUserID, user.ID)
}

// AuthError returns why presented credentials were rejected, or nil.
func AuthError(c *gin.Context) error {
	v, ok := c.Get(ctxAuthErr)
	if !ok {
		return nil
	}
	err, _ := v.(error)
	return err
}
