// Package server assembles the HTTP router from the feature packages.
package server

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/vrrprepo/rprepo/api/swagger"
	"github.com/vrrprepo/rprepo/pkg/rprepo/admin"
	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/auth"
	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
	"github.com/vrrprepo/rprepo/pkg/rprepo/events"
	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
	"github.com/vrrprepo/rprepo/pkg/rprepo/mailer"
	"github.com/vrrprepo/rprepo/pkg/rprepo/messaging"
	"github.com/vrrprepo/rprepo/pkg/rprepo/owners"
	"github.com/vrrprepo/rprepo/pkg/rprepo/projects"
	"github.com/vrrprepo/rprepo/pkg/rprepo/schedules"
	"github.com/vrrprepo/rprepo/pkg/rprepo/tags"
	"github.com/vrrprepo/rprepo/pkg/rprepo/updates"
	"github.com/vrrprepo/rprepo/pkg/rprepo/uploads"
	"github.com/vrrprepo/rprepo/pkg/rprepo/users"
)

// Deps are the collaborators the router hands to the feature handlers.
// Nil Mailer and Publisher fall back to no-ops; a nil Storage disables uploads.
type Deps struct {
	DB        *gorm.DB
	Config    *config.Config
	Logger    *zap.Logger
	Tokens    *auth.Tokens
	Providers []auth.Provider
	Mailer    mailer.Mailer
	Publisher messaging.Publisher
	Storage   uploads.Storage
}

// NewRouter builds the gin engine with every API route registered under /api
func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Mailer == nil {
		d.Mailer = mailer.Nop{}
	}
	if d.Publisher == nil {
		d.Publisher = messaging.Nop{}
	}
	if d.Tokens == nil {
		d.Tokens = auth.NewTokens(d.Config.Auth)
	}

	corsMiddleware, err := newCORS(d.Config.Server)
	if err != nil {
		return nil, err
	}

	api.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(d.Logger))
	r.Use(corsMiddleware)

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "rprepo"})
	}
	r.GET("/health", health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	mw := auth.NewMiddleware(d.DB, d.Tokens)

	rg := r.Group("/api")
	{
		rg.GET("/health", health)

		auth.NewHandler(d.DB, d.Tokens, d.Config.Auth, d.Config.Server.Production, d.Providers...).
			RegisterRoutes(rg.Group("/auth"))

		projects.NewHandler(d.DB).RegisterRoutes(rg.Group("/projects"), mw)
		owners.NewHandler(d.DB, d.Mailer, d.Config.Mail.AdminAddresses).
			RegisterRoutes(rg.Group("/projects/:id/owners"), mw)
		schedules.NewHandler(d.DB).RegisterRoutes(rg.Group("/projects/:id/schedule"), mw)

		tags.NewHandler(d.DB).RegisterRoutes(rg.Group("/tags"))
		updates.NewHandler(d.DB, d.Publisher).RegisterRoutes(rg.Group("/updates"), mw)
		events.NewHandler(d.DB).RegisterRoutes(rg.Group("/events"))
		users.NewHandler(d.DB).RegisterRoutes(rg.Group("/users"), mw)

		if d.Storage != nil {
			uploads.NewHandler(d.Storage, d.Config.Uploads).RegisterRoutes(rg.Group("/uploads"), mw)
		} else {
			d.Logger.Info("object storage not configured, uploads disabled")
		}

		admin.NewHandler(d.DB).RegisterRoutes(rg.Group("/admin", mw.RequireUser(), auth.RequireAdmin()))
	}

	r.NoRoute(func(c *gin.Context) {
		api.Fail(c, api.NotFoundError("route"))
	})

	return r, nil
}

// newCORS allows the configured client URL and any origin matching the
// optional pattern. Credentials are allowed so the session cookie is sent.
func newCORS(cfg config.ServerConfig) (gin.HandlerFunc, error) {
	var pattern *regexp.Regexp
	if cfg.CORSOriginPattern != "" {
		p, err := regexp.Compile(cfg.CORSOriginPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid cors origin pattern: %w", err)
		}
		pattern = p
	}
	clientURL := strings.TrimRight(cfg.ClientURL, "/")

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if clientURL != "" && origin == clientURL {
				return true
			}
			return pattern != nil && pattern.MatchString(origin)
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}), nil
}
