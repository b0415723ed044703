package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
	"github.com/vrrprepo/rprepo/pkg/rprepo/logger"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

const (
	stateCookieName = "oauth_state"
	stateMaxAge     = 10 * 60
)

// identity columns per provider name
var identityColumns = map[string]string{
	"discord": "discord_id",
	"google":  "google_id",
}

// Handler handles login, logout and the current session
type Handler struct {
	db         *gorm.DB
	tokens     *Tokens
	middleware *Middleware
	providers  map[string]Provider
	adminIDs   map[string]bool
	secure     bool
}

func NewHandler(db *gorm.DB, tokens *Tokens, cfg config.AuthConfig, production bool, providers ...Provider) *Handler {
	h := &Handler{
		db:         db,
		tokens:     tokens,
		middleware: NewMiddleware(db, tokens),
		providers:  make(map[string]Provider),
		adminIDs:   make(map[string]bool),
		secure:     production,
	}
	for _, p := range providers {
		h.providers[p.Name()] = p
	}
	for _, id := range cfg.AdminDiscordIDs {
		if id = strings.TrimSpace(id); id != "" {
			h.adminIDs[id] = true
		}
	}
	return h
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/providers", h.ListProviders)
	rg.GET("/me", h.middleware.RequireUser(), h.Me)
	rg.GET("/:provider", h.Redirect)
	rg.POST("/token", h.Token)
	rg.POST("/logout", h.Logout)
}

// TokenRequest completes a login with the code returned by the provider
type TokenRequest struct {
	Provider string `json:"provider" binding:"required,notblank"`
	Code     string `json:"code" binding:"required,notblank"`
	State    string `json:"state" binding:"required,notblank"`
}

// ListProviders returns the names of the configured identity providers
// @Summary List identity providers
// @Description Get the names of the configured login providers
// @Tags auth
// @Produce json
// @Success 200 {object} api.Response{data=[]string}
// @Router /auth/providers [get]
func (h *Handler) ListProviders(c *gin.Context) {
	names := make([]string, 0, len(h.providers))
	for _, name := range []string{"discord", "google"} {
		if _, ok := h.providers[name]; ok {
			names = append(names, name)
		}
	}
	api.OK(c, names)
}

// Redirect starts a login by sending the browser to the provider
// @Summary Start a login
// @Description Redirect the browser to the provider's consent page
// @Tags auth
// @Produce json
// @Param provider path string true "Provider name"
// @Success 302 {string} string "Redirect to provider"
// @Failure 404 {object} api.Response "Provider not found"
// @Router /auth/{provider} [get]
func (h *Handler) Redirect(c *gin.Context) {
	provider, ok := h.providers[c.Param("provider")]
	if !ok {
		api.Fail(c, api.NotFoundError("provider"))
		return
	}

	state := uuid.NewString()
	h.setCookie(c, stateCookieName, state, stateMaxAge)
	c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// Token exchanges an authorization code for a session cookie
// @Summary Complete a login
// @Description Exchange an authorization code for a session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Authorization code"
// @Success 200 {object} api.Response{data=models.User}
// @Failure 400 {object} api.Response "Validation error"
// @Failure 401 {object} api.Response "Login failed"
// @Failure 403 {object} api.Response "Account is banned"
// @Router /auth/token [post]
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Fail(c, api.BindError(err))
		return
	}

	expected, err := c.Cookie(stateCookieName)
	if err != nil || expected == "" || expected != req.State {
		api.Fail(c, api.AuthorizationError("login state mismatch"))
		return
	}
	h.setCookie(c, stateCookieName, "", -1)

	provider, ok := h.providers[req.Provider]
	if !ok {
		api.Fail(c, api.NotFoundError("provider"))
		return
	}

	identity, err := provider.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		logger.FromContext(c).Warn("identity exchange failed",
			zap.String("provider", req.Provider), zap.Error(err))
		api.Fail(c, api.AuthorizationError("login failed"))
		return
	}

	user, err := h.findOrCreateUser(c, provider.Name(), identity)
	if err != nil {
		api.Fail(c, err)
		return
	}

	if user.IsBanned() {
		api.Fail(c, api.ForbiddenError("account is banned"))
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Role)
	if err != nil {
		api.Fail(c, api.QueryError("sign token", err))
		return
	}
	h.setCookie(c, CookieName, token, int(h.tokens.TTL().Seconds()))

	api.OK(c, user)
}

// Me returns the logged-in user
// @Summary Get current user
// @Description Get the logged-in user
// @Tags auth
// @Produce json
// @Success 200 {object} api.Response{data=models.User}
// @Failure 401 {object} api.Response "Authentication required"
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	user, _ := CurrentUser(c)
	api.OK(c, user)
}

// Logout clears the session cookie
// @Summary Log out
// @Description Clear the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} api.Response
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	h.setCookie(c, CookieName, "", -1)
	api.OK(c, gin.H{"loggedOut": true})
}

func (h *Handler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.secure, true)
}

// findOrCreateUser finds the user linked to identity or creates one.
// Listed Discord IDs are promoted to Admin unless banned.
func (h *Handler) findOrCreateUser(c *gin.Context, providerName string, identity *Identity) (*models.User, error) {
	column, ok := identityColumns[providerName]
	if !ok {
		return nil, api.NotFoundError("provider")
	}
	db := h.db.WithContext(c.Request.Context())

	var user models.User
	err := db.Where(column+" = ?", identity.Subject).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{Name: identity.Name, Role: models.RoleUser}
		if user.Name == "" {
			user.Name = providerName + " user"
		}
		if identity.AvatarURL != "" {
			avatar := identity.AvatarURL
			user.AvatarURL = &avatar
		}
		subject := identity.Subject
		if providerName == "discord" {
			user.DiscordID = &subject
		} else {
			user.GoogleID = &subject
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, api.QueryError("create user", err)
		}
		logger.FromContext(c).Info("user created",
			zap.Uint("user_id", user.ID), zap.String("provider", providerName))
	case err != nil:
		return nil, api.QueryError("find user", err)
	case identity.AvatarURL != "" && (user.AvatarURL == nil || *user.AvatarURL != identity.AvatarURL):
		avatar := identity.AvatarURL
		if err := db.Model(&user).Update("avatar_url", avatar).Error; err != nil {
			return nil, api.QueryError("update avatar", err)
		}
		user.AvatarURL = &avatar
	}

	if providerName == "discord" && h.adminIDs[identity.Subject] && user.Role == models.RoleUser {
		if err := db.Model(&user).Update("role", models.RoleAdmin).Error; err != nil {
			return nil, api.QueryError("promote admin", err)
		}
		user.Role = models.RoleAdmin
	}

	return &user, nil
}
