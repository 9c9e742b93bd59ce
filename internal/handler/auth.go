package handler

import (
	"alumni_network/internal/models"
	"alumni_network/internal/service"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email      string      `json:"email" binding:"required,email"`
	Password   string      `json:"password" binding:"required"`
	Name       string      `json:"name" binding:"required,min=2"`
	Role       models.Role `json:"role" binding:"required,oneof=student graduate teacher company admin"`
	Phone      *string     `json:"phone"`
	SchoolName *string     `json:"school_name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// changePasswordRequest takes the web client's camelCase keys; the snake_case
// spelling is accepted too.
type changePasswordRequest struct {
	CurrentPassword      string `json:"currentPassword" binding:"required_without=CurrentPasswordSnake"`
	NewPassword          string `json:"newPassword" binding:"required_without=NewPasswordSnake"`
	CurrentPasswordSnake string `json:"current_password"`
	NewPasswordSnake     string `json:"new_password"`
}

func (r changePasswordRequest) passwords() (current, next string) {
	current, next = r.CurrentPassword, r.NewPassword
	if current == "" {
		current = r.CurrentPasswordSnake
	}
	if next == "" {
		next = r.NewPasswordSnake
	}
	return current, next
}

type registeredUser struct {
	ID    int64       `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  models.Role `json:"role"`
}

type loggedInUser struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         models.Role `json:"role"`
	ProfileImage *string     `json:"profile_image"`
}

type registerResponse struct {
	Message string         `json:"message"`
	User    registeredUser `json:"user"`
	Token   string         `json:"token"`
}

type loginResponse struct {
	Message string       `json:"message"`
	User    loggedInUser `json:"user"`
	Token   string       `json:"token"`
}

type userResponse struct {
	Message string            `json:"message,omitempty"`
	User    models.PublicUser `json:"user"`
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op))

	var req registerRequest
	if !bindJSON(c, log, &req) {
		return
	}

	res, err := h.serviceLayer.Register(c.Request.Context(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Role:       req.Role,
		Phone:      req.Phone,
		SchoolName: req.SchoolName,
	})
	if err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		User: registeredUser{
			ID:    res.User.ID,
			Email: res.User.Email,
			Name:  res.User.Name,
			Role:  res.User.Role,
		},
		Token: res.Token,
	})
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if !bindJSON(c, log, &req) {
		return
	}

	res, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Message: "Login successful",
		User: loggedInUser{
			ID:           res.User.ID,
			Email:        res.User.Email,
			Name:         res.User.Name,
			Role:         res.User.Role,
			ProfileImage: res.User.ProfileImage,
		},
		Token: res.Token,
	})
}

// GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	const op = "handler.Me"

	log := h.log.With(slog.String("op", op))

	principal, _ := PrincipalFrom(c)

	user, err := h.serviceLayer.GetCurrentUser(c.Request.Context(), principal)
	if err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, userResponse{User: user})
}

// POST /auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	const op = "handler.ChangePassword"

	log := h.log.With(slog.String("op", op))

	var req changePasswordRequest
	if !bindJSON(c, log, &req) {
		return
	}

	principal, _ := PrincipalFrom(c)

	current, next := req.passwords()

	if err := h.serviceLayer.ChangePassword(c.Request.Context(), principal, current, next); err != nil {
		writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "Password changed successfully"})
}
