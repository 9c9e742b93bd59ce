package handler

import (
	"alumni_network/internal/models"
	"alumni_network/internal/service"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type listUsersQuery struct {
	Role   string `form:"role"`
	Search string `form:"search"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

type usersResponse struct {
	Users []models.PublicUser `json:"users"`
}

// directoryQuery accepts the web client's user_type as well as role.
type directoryQuery struct {
	Search   string `form:"search"`
	UserType string `form:"user_type"`
	Role     string `form:"role"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type directoryResponse struct {
	Users      []models.DirectoryEntry `json:"users"`
	Pagination pagination              `json:"pagination"`
}

type setStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type setRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// GET /users
func (h *Handler) Directory(c *gin.Context) {
	const op = "handler.Directory"

	log := h.log.With(slog.String("op", op))

	var q directoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid query parameters")

		return
	}

	role := q.UserType
	if role == "" {
		role = q.Role
	}

	page, err := h.serviceLayer.Directory(c.Request.Context(), service.DirectoryQuery{
		Role:   models.Role(role),
		Search: q.Search,
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, directoryResponse{
		Users: page.Users,
		Pagination: pagination{
			Page:  page.Page,
			Limit: page.Limit,
			Total: page.Total,
			Pages: page.Pages,
		},
	})
}

// GET /users/:id
func (h *Handler) GetUser(c *gin.Context) {
	const op = "handler.GetUser"

	log := h.log.With(slog.String("op", op))

	id, err := parseID(c)
	if err != nil {
		writeError(c, log, err)

		return
	}

	user, err := h.serviceLayer.GetUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, userResponse{User: user})
}

// PUT /users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	const op = "handler.UpdateUser"

	log := h.log.With(slog.String("op", op))

	id, err := parseID(c)
	if err != nil {
		writeError(c, log, err)

		return
	}

	h.updateProfile(c, log, id)
}

// PUT /users/profile
func (h *Handler) UpdateOwnProfile(c *gin.Context) {
	const op = "handler.UpdateOwnProfile"

	principal, _ := PrincipalFrom(c)

	h.updateProfile(c, h.log.With(slog.String("op", op)), principal.ID)
}

func (h *Handler) updateProfile(c *gin.Context, log *slog.Logger, userID int64) {
	var upd models.ProfileUpdate
	if !bindJSON(c, log, &upd) {
		return
	}

	user, err := h.serviceLayer.UpdateProfile(c.Request.Context(), userID, upd)
	if err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, userResponse{Message: "Profile updated successfully", User: user})
}

// GET /admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	const op = "handler.ListUsers"

	log := h.log.With(slog.String("op", op))

	var q listUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid query parameters")

		return
	}

	users, err := h.serviceLayer.ListUsers(c.Request.Context(), models.UserFilter{
		Role:   models.Role(q.Role),
		Search: q.Search,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, usersResponse{Users: users})
}

// PATCH /admin/users/:id/status
func (h *Handler) SetUserStatus(c *gin.Context) {
	const op = "handler.SetUserStatus"

	log := h.log.With(slog.String("op", op))

	id, err := parseID(c)
	if err != nil {
		writeError(c, log, err)

		return
	}

	var req setStatusRequest
	if !bindJSON(c, log, &req) {
		return
	}

	principal, _ := PrincipalFrom(c)

	if err := h.serviceLayer.SetActive(c.Request.Context(), principal, id, *req.IsActive); err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "User status updated"})
}

// PATCH /admin/users/:id/role
func (h *Handler) SetUserRole(c *gin.Context) {
	const op = "handler.SetUserRole"

	log := h.log.With(slog.String("op", op))

	id, err := parseID(c)
	if err != nil {
		writeError(c, log, err)

		return
	}

	var req setRoleRequest
	if !bindJSON(c, log, &req) {
		return
	}

	principal, _ := PrincipalFrom(c)

	if err := h.serviceLayer.AssignRole(c.Request.Context(), principal, id, req.Role); err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "User role updated"})
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	const op = "handler.Health"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.serviceLayer.Ping(ctx); err != nil {
		h.log.Error("health check failed", slog.String("op", op), slog.Any("error", err))

		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})

		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
