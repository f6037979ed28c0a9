package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"authservice/internal/domain"
	"authservice/internal/middleware"
	"authservice/internal/pkg/password"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) user(args mock.Arguments) (*domain.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockEngine) pair(args mock.Arguments) (*TokenPair, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TokenPair), args.Error(1)
}

func (m *mockEngine) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	return m.user(m.Called(ctx, req))
}

func (m *mockEngine) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	return m.pair(m.Called(ctx, email, password))
}

func (m *mockEngine) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	return m.pair(m.Called(ctx, raw))
}

func (m *mockEngine) Logout(ctx context.Context, raw string) error {
	return m.Called(ctx, raw).Error(0)
}

func (m *mockEngine) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*domain.User, error) {
	return m.user(m.Called(ctx, userID, req))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

// newTestRouter mounts the handler; authedAs stands in for the auth gate.
func newTestRouter(engine Engine, authedAs *domain.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	h := NewHandler(engine, log)
	r := gin.New()
	v1 := r.Group("/api/v1")
	h.RegisterPublicRoutes(v1)
	protected := v1.Group("")
	protected.Use(func(c *gin.Context) {
		if authedAs != nil {
			middleware.SetCurrentUser(c, authedAs)
		}
	})
	h.RegisterProtectedRoutes(protected)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestHandler_Login(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Login", mock.Anything, "user@example.com", "pw").
		Return(&TokenPair{AccessToken: "a", RefreshToken: "r"}, nil)
	engine.On("Login", mock.Anything, "user@example.com", "bad").Return(nil, ErrInvalidCredentials)
	r := newTestRouter(engine, nil)

	w, env := do(t, r, http.MethodPost, "/api/v1/login", `{"email":"user@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"access_token":"a","refresh_token":"r"}`, string(env.Data))

	w, env = do(t, r, http.MethodPost, "/api/v1/login", `{"email":"user@example.com","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	w, env = do(t, r, http.MethodPost, "/api/v1/login", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "email")
}

func TestHandler_Register(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Register", mock.Anything, mock.MatchedBy(func(r RegisterRequest) bool { return r.Email == "new@example.com" })).
		Return(&domain.User{ID: 3, Email: "new@example.com", Username: "new", PasswordHash: "secret"}, nil)
	engine.On("Register", mock.Anything, mock.Anything).Return(nil, ErrEmailAlreadyExists)
	r := newTestRouter(engine, nil)

	w, env := do(t, r, http.MethodPost, "/api/v1/register", `{"email":"new@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":3,"username":"new","email":"new@example.com"}`, string(env.Data))

	w, env = do(t, r, http.MethodPost, "/api/v1/register", `{"email":"dup@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMAIL_EXISTS", env.Error.Code)
}

func TestHandler_RefreshErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{ErrMissingToken, http.StatusBadRequest, "MISSING_TOKEN"},
		{ErrMalformedToken, http.StatusBadRequest, "MALFORMED_TOKEN"},
		{ErrUnknownToken, http.StatusUnauthorized, "UNKNOWN_TOKEN"},
		{ErrExpiredToken, http.StatusUnauthorized, "EXPIRED_TOKEN"},
		{ErrSessionConflict, http.StatusConflict, "SESSION_CONFLICT"},
		{ErrInternalInconsistency, http.StatusInternalServerError, "INTERNAL_INCONSISTENCY"},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			engine := new(mockEngine)
			engine.On("Refresh", mock.Anything, "tok").Return(nil, tc.err)
			r := newTestRouter(engine, nil)

			w, env := do(t, r, http.MethodPost, "/api/v1/refresh", `{"refresh_token":"tok"}`)

			assert.Equal(t, tc.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestHandler_Logout(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Logout", mock.Anything, "tok").Return(nil).Once()
	engine.On("Logout", mock.Anything, "tok").Return(ErrUnknownToken)
	r := newTestRouter(engine, nil)

	w, _ := do(t, r, http.MethodPost, "/api/v1/logout", `{"refresh_token":"tok"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, r, http.MethodPost, "/api/v1/logout", `{"refresh_token":"tok"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNKNOWN_TOKEN", env.Error.Code)
}

func TestHandler_Me(t *testing.T) {
	engine := new(mockEngine)
	user := &domain.User{ID: 1, Email: "admin@example.com", Username: "admin"}

	w, env := do(t, newTestRouter(engine, user), http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"username":"admin","email":"admin@example.com"}`, string(env.Data))
	engine.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)

	w, _ = do(t, newTestRouter(engine, nil), http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_UpdateMe(t *testing.T) {
	engine := new(mockEngine)
	engine.On("UpdateProfile", mock.Anything, int64(1), mock.MatchedBy(func(r UpdateProfileRequest) bool {
		return r.Username != nil && *r.Username == "ADMIN2" && r.Email == nil && r.Password == nil
	})).Return(&domain.User{ID: 1, Email: "admin@example.com", Username: "ADMIN2"}, nil)
	r := newTestRouter(engine, &domain.User{ID: 1, Email: "admin@example.com", Username: "admin"})

	w, env := do(t, r, http.MethodPut, "/api/v1/me", `{"username":"ADMIN2"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"username":"ADMIN2","email":"admin@example.com"}`, string(env.Data))

	w, env = do(t, r, http.MethodPut, "/api/v1/me", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email", env.Error.Details["email"])

	w, env = do(t, r, http.MethodPut, "/api/v1/me", `{"password":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "min", env.Error.Details["password"])
}

func TestHandler_UpdateMeRejectedByEngine(t *testing.T) {
	engine := new(mockEngine)
	engine.On("UpdateProfile", mock.Anything, int64(1), mock.MatchedBy(func(r UpdateProfileRequest) bool {
		return r.Password != nil
	})).Return(nil, ErrPasswordTooLong)
	engine.On("UpdateProfile", mock.Anything, int64(1), mock.MatchedBy(func(r UpdateProfileRequest) bool {
		return r.Username != nil
	})).Return(nil, ErrBlankUsername)
	r := newTestRouter(engine, &domain.User{ID: 1, Email: "admin@example.com"})

	w, env := do(t, r, http.MethodPut, "/api/v1/me", `{"password":"`+strings.Repeat("a", 100)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "max", env.Error.Details["password"])

	w, env = do(t, r, http.MethodPut, "/api/v1/me", `{"username":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "required", env.Error.Details["username"])
}

func TestHandler_RegisterPasswordTooLong(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Register", mock.Anything, mock.Anything).Return(nil, password.ErrTooLong)
	r := newTestRouter(engine, nil)

	w, env := do(t, r, http.MethodPost, "/api/v1/register",
		`{"email":"a@x.com","password":"`+strings.Repeat("a", 100)+`"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "max", env.Error.Details["password"])
}
