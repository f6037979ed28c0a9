// Package server assembles the HTTP API.
package server

import (
	"net/http"

	"authservice/internal/middleware"
	"authservice/internal/modules/admin"
	"authservice/internal/modules/auth"
	"authservice/internal/pkg/response"
	"authservice/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Deps struct {
	DB          *gorm.DB
	Auth        *auth.Service
	Admin       *admin.Service
	Log         logrus.FieldLogger
	CORSOrigins []string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestLogger(d.Log),
		middleware.ErrorLogger(d.Log),
		middleware.CORS(d.CORSOrigins),
	)

	r.GET("/healthz", func(c *gin.Context) {
		if err := repository.Ping(d.DB); err != nil {
			_ = c.Error(err)
			response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database is not reachable")
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := auth.NewHandler(d.Auth, d.Log)
	adminHandler := admin.NewHandler(d.Admin)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Authenticate(d.Auth, d.Log))
	{
		public := v1.Group("")
		public.Use(middleware.Require(middleware.AllowAnonymous))
		authHandler.RegisterPublicRoutes(public)

		protected := v1.Group("")
		protected.Use(middleware.Require(middleware.RequireAuthenticated))
		authHandler.RegisterProtectedRoutes(protected)

		staff := protected.Group("/admin")
		staff.Use(middleware.RequireStaff())
		adminHandler.RegisterRoutes(staff)
	}

	return r
}
