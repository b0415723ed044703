package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
	"github.com/vrrprepo/rprepo/pkg/rprepo/models"
)

const (
	// CookieName holds the session token
	CookieName = "token"
	// ContextKeyUser is the key for the authenticated *models.User in gin context
	ContextKeyUser = "user"
)

// Middleware resolves the session token to a user
type Middleware struct {
	db     *gorm.DB
	tokens *Tokens
}

func NewMiddleware(db *gorm.DB, tokens *Tokens) *Middleware {
	return &Middleware{db: db, tokens: tokens}
}

// tokenFromRequest reads the session cookie, falling back to a Bearer header
func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}

	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// authenticate loads the user behind the request token.
// The role is always read from the database so bans apply immediately.
func (m *Middleware) authenticate(c *gin.Context) (*models.User, error) {
	raw := tokenFromRequest(c)
	if raw == "" {
		return nil, api.AuthorizationError("authentication required")
	}

	claims, err := m.tokens.Validate(raw)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, api.AuthorizationError("token has expired")
		}
		return nil, api.AuthorizationError("invalid token")
	}

	var user models.User
	if err := m.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, api.AuthorizationError("invalid token")
		}
		return nil, api.QueryError("load session user", err)
	}
	return &user, nil
}

// RequireUser rejects anonymous requests with 401 and banned users with 403
func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.authenticate(c)
		if err != nil {
			api.Fail(c, err)
			return
		}
		if user.IsBanned() {
			api.Fail(c, api.ForbiddenError("account is banned"))
			return
		}

		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// OptionalUser sets the user when a valid token is present and never rejects
func (m *Middleware) OptionalUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := m.authenticate(c); err == nil {
			c.Set(ContextKeyUser, user)
		}
		c.Next()
	}
}

// RequireAdmin must run after RequireUser
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			api.Fail(c, api.AuthorizationError("authentication required"))
			return
		}
		if !user.IsAdmin() {
			api.Fail(c, api.ForbiddenError("admin access required"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user from the gin context
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
