package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/crewhub/internal/actorctx"
	"github.com/geocoder89/crewhub/internal/auth"
	"github.com/geocoder89/crewhub/internal/config"
	"github.com/geocoder89/crewhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

const maxPageSize = 100

type UserAdmin interface {
	ListUsers(ctx context.Context, limit, offset int) ([]user.PublicUser, error)
	ChangeRole(ctx context.Context, actorID, userID, role string) (user.PublicUser, error)
}

type UsersHandler struct {
	svc UserAdmin
	log *slog.Logger
}

func NewUsersHandler(svc UserAdmin, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{svc: svc, log: log}
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin"`
}

func queryInt(ctx *gin.Context, key string, def int) (int, bool) {
	raw := ctx.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (h *UsersHandler) List(ctx *gin.Context) {
	limit, ok := queryInt(ctx, "limit", 20)
	if !ok || limit == 0 || limit > maxPageSize {
		RespondBadRequest(ctx, "Invalid limit", gin.H{"limit": "must be between 1 and 100"})
		return
	}

	offset, ok := queryInt(ctx, "offset", 0)
	if !ok {
		RespondBadRequest(ctx, "Invalid offset", gin.H{"offset": "must be a non-negative integer"})
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	users, err := h.svc.ListUsers(cctx, limit, offset)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list users failed", "err", err)
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":  users,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *UsersHandler) UpdateRole(ctx *gin.Context) {
	actorID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "authentication_required", "Authentication required")
		return
	}

	var req UpdateRoleRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.svc.ChangeRole(cctx, actorID, ctx.Param("id"), req.Role)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, auth.ErrInvalidRole):
			RespondBadRequest(ctx, "Invalid role", gin.H{"role": "must be one of user, admin"})
		case errors.Is(err, auth.ErrSelfDemotion):
			RespondConflict(ctx, "self_demotion", "Admins cannot remove their own admin role.")
		default:
			h.log.ErrorContext(ctx.Request.Context(), "update role failed", "err", err)
			RespondInternal(ctx, "Could not update role")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u})
}
