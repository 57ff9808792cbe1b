package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/crewhub/internal/actorctx"
	"github.com/geocoder89/crewhub/internal/auth"
	"github.com/geocoder89/crewhub/internal/config"
	"github.com/geocoder89/crewhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// bcrypt dominates these calls, so the budget is generous.
const authTimeout = 5 * time.Second

const forgotPasswordMessage = "If an account exists for that email, a password reset link has been sent."

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (auth.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ValidateResetToken(ctx context.Context, token string) (bool, error)
	Me(ctx context.Context, userID string) (user.PublicUser, error)
}

type AuthHandler struct {
	svc AuthService
	log *slog.Logger
}

func NewAuthHandler(svc AuthService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{svc: svc, log: log}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required,max=120"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), authTimeout)
	defer cancel()

	res, err := h.svc.Register(cctx, req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "register failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), authTimeout)
	defer cancel()

	res, err := h.svc.Login(cctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "login failed", "err", err)
		RespondInternal(ctx, "Could not log in")
		return
	}

	ctx.JSON(http.StatusOK, res)
}

// ForgotPassword answers the same way whatever happened, so the response
// never tells whether the email is registered.
func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), authTimeout)
	defer cancel()

	if err := h.svc.ForgotPassword(cctx, req.Email); err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "forgot password failed", "err", err)
	}

	ctx.JSON(http.StatusOK, gin.H{"message": forgotPasswordMessage})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), authTimeout)
	defer cancel()

	err := h.svc.ResetPassword(cctx, req.Token, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidOrExpiredToken) {
			RespondError(ctx, http.StatusBadRequest, "invalid_or_expired_token", "Reset token is invalid or has expired.", nil)
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "reset password failed", "err", err)
		RespondInternal(ctx, "Could not reset password")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password has been reset."})
}

func (h *AuthHandler) ValidateResetToken(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	valid, err := h.svc.ValidateResetToken(cctx, ctx.Param("token"))
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "validate reset token failed", "err", err)
		RespondInternal(ctx, "Could not validate token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "authentication_required", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.svc.Me(cctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "me failed", "user_id", userID, "err", err)
		RespondInternal(ctx, "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}
