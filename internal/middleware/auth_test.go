package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authservice/internal/domain"
	"authservice/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// fakeValidator accepts tokens minted by codec for known emails.
type fakeValidator struct {
	codec *jwt.Codec
	users map[string]*domain.User
	err   error
}

func (f *fakeValidator) ValidateAccess(_ context.Context, token string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	subject, err := f.codec.Verify(token, time.Now())
	if err != nil {
		return nil, err
	}
	u, ok := f.users[subject]
	if !ok {
		return nil, domain.ErrUnknownSubject
	}
	return u, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newValidator() *fakeValidator {
	return &fakeValidator{
		codec: jwt.New("test-secret-123", ""),
		users: map[string]*domain.User{
			"user@example.com":  {ID: 42, Email: "user@example.com"},
			"admin@example.com": {ID: 1, Email: "admin@example.com", IsStaff: true},
		},
	}
}

func mint(t *testing.T, v *fakeValidator, email string, lifetime time.Duration) string {
	t.Helper()
	tok, err := v.codec.Mint(email, time.Now(), lifetime)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func protectedRouter(v AccessValidator, policy Policy, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Authenticate(v, quietLogger()))
	handlers := append([]gin.HandlerFunc{Require(policy)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		_, authed := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64("user_id"), "authed": authed})
	})
	router.Handle(http.MethodGet, "/protected", handlers...)
	router.Handle(http.MethodOptions, "/protected", handlers...)
	return router
}

func serve(router http.Handler, method, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/protected", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_ValidToken(t *testing.T) {
	v := newValidator()
	router := protectedRouter(v, RequireAuthenticated)

	w := serve(router, http.MethodGet, "Bearer "+mint(t, v, "user@example.com", time.Hour))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":42,"authed":true}`, w.Body.String())
}

func TestAuthenticate_SchemeIsCaseInsensitive(t *testing.T) {
	v := newValidator()
	router := protectedRouter(v, RequireAuthenticated)

	w := serve(router, http.MethodGet, "bearer "+mint(t, v, "user@example.com", time.Hour))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequire_NoCredentials(t *testing.T) {
	router := protectedRouter(newValidator(), RequireAuthenticated)

	w := serve(router, http.MethodGet, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestRequire_RejectedCredentials(t *testing.T) {
	v := newValidator()
	cases := map[string]struct {
		header string
		code   string
	}{
		"garbage":        {"Bearer invalid-jwt-here", "INVALID_TOKEN"},
		"wrong format":   {"Token abc def", "INVALID_TOKEN"},
		"missing token":  {"Bearer", "INVALID_TOKEN"},
		"expired":        {"Bearer " + mint(t, v, "user@example.com", -time.Minute), "TOKEN_EXPIRED"},
		"unknown user":   {"Bearer " + mint(t, v, "ghost@example.com", time.Hour), "INVALID_TOKEN"},
		"foreign secret": {"Bearer " + mintWith(t, "other", "user@example.com"), "INVALID_TOKEN"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			router := protectedRouter(v, RequireAuthenticated)
			w := serve(router, http.MethodGet, tc.header)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
}

func mintWith(t *testing.T, secret, email string) string {
	t.Helper()
	tok, err := jwt.New(secret, "").Mint(email, time.Now(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestRequire_StoreFailureIs500(t *testing.T) {
	v := newValidator()
	v.err = errors.New("db down")
	router := protectedRouter(v, RequireAuthenticated)

	w := serve(router, http.MethodGet, "Bearer whatever")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequire_AllowAnonymous(t *testing.T) {
	router := protectedRouter(newValidator(), AllowAnonymous)

	w := serve(router, http.MethodGet, "Bearer invalid")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":0,"authed":false}`, w.Body.String())
}

func TestRequire_OptionsBypasses(t *testing.T) {
	router := protectedRouter(newValidator(), RequireAuthenticated)

	w := serve(router, http.MethodOptions, "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireStaff(t *testing.T) {
	v := newValidator()
	router := protectedRouter(v, RequireAuthenticated, RequireStaff())

	w := serve(router, http.MethodGet, "Bearer "+mint(t, v, "user@example.com", time.Hour))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")

	w = serve(router, http.MethodGet, "Bearer "+mint(t, v, "admin@example.com", time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
}
