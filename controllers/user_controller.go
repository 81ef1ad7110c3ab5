package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"boardapp/app"
	"boardapp/middleware"
	"boardapp/models"
)

// Login timestamps are recorded in KST, matching the stored data.
var kst = time.FixedZone("KST", 9*60*60)

type UserController struct {
	app *app.App
}

func NewUserController(a *app.App) *UserController {
	return &UserController{app: a}
}

type signUpRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type updateRoleRequest struct {
	Role models.UserRole `json:"role" binding:"required"`
}

func (uc *UserController) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidation, "invalid request body")
		return
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     models.RoleMember,
	}
	if err := user.SetPassword(req.Password); err != nil {
		respondError(c, err, "internal error")
		return
	}

	if err := uc.app.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if isDuplicate(err) {
			respondError(c, models.ErrConflict, "username or email already in use")
			return
		}
		respondError(c, err, "internal error")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (uc *UserController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidation, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	var user models.User
	err := uc.app.DB.WithContext(ctx).
		Where("username = ? AND is_deleted = ?", req.Username, false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.VerifyPassword(req.Password)) {
		respondError(c, models.ErrUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		respondError(c, err, "internal error")
		return
	}

	now := time.Now().In(kst)
	if err := uc.app.DB.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}

	token, err := uc.app.Auth.IssueToken(user.Username)
	if err != nil {
		respondError(c, err, "internal error")
		return
	}

	c.JSON(http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer"})
}

// Logout is client-side token discard only.
func (uc *UserController) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, "ok")
}

// LogoutAll revokes the presented token until its natural expiry.
func (uc *UserController) LogoutAll(c *gin.Context) {
	token := middleware.CurrentToken(c)

	_, expires, err := uc.app.Auth.ParseToken(token)
	if err != nil {
		respondError(c, models.ErrUnauthorized, "invalid token")
		return
	}

	if err := uc.app.Blacklist.Revoke(c.Request.Context(), token, time.Until(expires)); err != nil {
		respondError(c, err, "internal error")
		return
	}
	c.JSON(http.StatusOK, "ok")
}

// ValidateToken checks the presented token without requiring a user row:
// 401 for a malformed header, 403 for revoked or invalid tokens.
func (uc *UserController) ValidateToken(c *gin.Context) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
		return
	}
	token := parts[1]

	revoked, err := uc.app.Blacklist.IsRevoked(c.Request.Context(), token)
	if err != nil {
		respondError(c, err, "internal error")
		return
	}
	if revoked {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token has been revoked"})
		return
	}

	if _, _, err := uc.app.Auth.ParseToken(token); err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token is expired or invalid"})
		return
	}

	c.JSON(http.StatusOK, "ok")
}

func (uc *UserController) List(c *gin.Context) {
	var users []models.User
	err := uc.app.DB.WithContext(c.Request.Context()).
		Where("is_deleted = ?", false).
		Find(&users).Error
	if err != nil {
		respondError(c, err, "internal error")
		return
	}
	c.JSON(http.StatusOK, users)
}

// Delete soft-deletes an account. Allowed for the account owner, or for an
// admin deleting someone else.
func (uc *UserController) Delete(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		respondError(c, models.ErrValidation, "invalid user id")
		return
	}

	caller := middleware.CurrentUser(c)
	if caller.ID != uint(userID) && caller.Role != models.RoleAdmin {
		respondError(c, models.ErrForbidden, "cannot delete another user")
		return
	}

	ctx := c.Request.Context()
	var user models.User
	err = uc.app.DB.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", userID, false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, models.ErrNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(c, err, "internal error")
		return
	}

	user.SoftDelete()
	if err := uc.app.DB.WithContext(ctx).Save(&user).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateRole changes a user's role. Admin only.
func (uc *UserController) UpdateRole(c *gin.Context) {
	caller := middleware.CurrentUser(c)
	if caller.Role != models.RoleAdmin {
		respondError(c, models.ErrForbidden, "admin only")
		return
	}

	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		respondError(c, models.ErrValidation, "invalid user id")
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidation, "invalid request body")
		return
	}
	switch req.Role {
	case models.RoleAdmin, models.RoleMember, models.RoleGuest:
	default:
		respondError(c, models.ErrValidation, "unknown role")
		return
	}

	ctx := c.Request.Context()
	var user models.User
	err = uc.app.DB.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", userID, false).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, models.ErrNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(c, err, "internal error")
		return
	}

	if err := uc.app.DB.WithContext(ctx).Model(&user).Update("role", req.Role).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}
	c.JSON(http.StatusOK, user)
}
