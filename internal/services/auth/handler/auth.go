package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ferneyS02/licor-solution/internal/apperr"
	"github.com/ferneyS02/licor-solution/internal/auth"
	"github.com/ferneyS02/licor-solution/internal/database/models"
	"github.com/ferneyS02/licor-solution/internal/middleware"
	"github.com/ferneyS02/licor-solution/internal/utils"
)

type AuthHandler struct {
	db       *gorm.DB
	tokenTTL time.Duration
}

func NewAuthHandler(db *gorm.DB, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{db: db, tokenTTL: tokenTTL}
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type meResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": "invalid name or password",
	})
}

// Login is name-case-insensitive, matching how operators type it at the
// till.
func (s *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Password) == "" {
		apperr.Respond(c, apperr.InvalidInput("INVALID_CREDENTIALS", "name and password are required"))
		return
	}

	var user models.User
	err := s.db.WithContext(c.Request.Context()).
		Where("LOWER(name) = LOWER(?)", strings.TrimSpace(req.Name)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		unauthorized(c)
		return
	}
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		unauthorized(c)
		return
	}

	token, exp, err := utils.GenerateToken(user.ID, user.Name, user.Role, s.tokenTTL)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		ID:        user.ID,
		Name:      user.Name,
		Role:      user.Role,
		Token:     token,
		ExpiresAt: exp,
	})
}

func (s *AuthHandler) Me(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, meResponse{ID: actor.ID, Name: actor.Name, Role: actor.Role})
}

func (s *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		unauthorized(c)
		return
	}
	if !auth.Allowed(auth.OpChangePassword, actor.Role) {
		apperr.Respond(c, apperr.Forbidden("FORBIDDEN", "role %s cannot change passwords", actor.Role))
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		strings.TrimSpace(req.CurrentPassword) == "" || strings.TrimSpace(req.NewPassword) == "" {
		apperr.Respond(c, apperr.InvalidInput("INVALID_BODY", "current and new password are required"))
		return
	}

	newPass := strings.TrimSpace(req.NewPassword)
	if len(newPass) < 6 {
		apperr.Respond(c, apperr.InvalidInput("PASSWORD_TOO_SHORT", "new password needs at least 6 characters"))
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, actor.ID).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		apperr.Respond(c, apperr.InvalidInput("WRONG_PASSWORD", "current password is not correct"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPass)) == nil {
		apperr.Respond(c, apperr.InvalidInput("PASSWORD_UNCHANGED", "new password must differ from the current one"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPass), bcrypt.DefaultCost)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	user.PasswordHash = string(hash)
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
