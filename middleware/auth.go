package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"boardapp/app"
	"boardapp/models"
)

const userKey = "currentUser"
const tokenKey = "bearerToken"

// bearerToken extracts the token from an Authorization header. A missing
// or non-bearer header is a request-shape problem, reported as 422.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func resolveUser(c *gin.Context, a *app.App, token string) (*models.User, error) {
	ctx := c.Request.Context()

	revoked, err := a.Blacklist.IsRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, models.ErrUnauthorized
	}

	username, _, err := a.Auth.ParseToken(token)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	var user models.User
	err = a.DB.WithContext(ctx).
		Where("username = ? AND is_deleted = ?", username, false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Auth requires a valid bearer token and loads the caller.
func Auth(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid authorization header"})
			return
		}

		user, err := resolveUser(c, a, token)
		if errors.Is(err, models.ErrUnauthorized) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or revoked token"})
			return
		}
		if err != nil {
			a.Log.Error().Err(err).Msg("auth lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(userKey, user)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// OptionalAuth loads the caller when a valid token is present and stays
// silent otherwise.
func OptionalAuth(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}
		if user, err := resolveUser(c, a, token); err == nil {
			c.Set(userKey, user)
			c.Set(tokenKey, token)
		}
		c.Next()
	}
}

// WithUser injects a pre-resolved caller. Used by tests to exercise
// handlers without going through token resolution.
func WithUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(userKey, user)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated caller, or nil when the route ran
// without (or with failed optional) authentication.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentToken returns the raw bearer token the caller presented.
func CurrentToken(c *gin.Context) string {
	v, ok := c.Get(tokenKey)
	if !ok {
		return ""
	}
	token, _ := v.(string)
	return token
}
