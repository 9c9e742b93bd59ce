package handler

import (
	"alumni_network/internal/models"
	"alumni_network/internal/service"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	serviceLayer service.Service
	guard        *Guard
	log          *slog.Logger
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Error: errMessage})
}

// writeError maps service failures to responses. Unknown errors are logged
// and answered with a generic 500 so store internals never reach the client.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: validationMessage(verr), Fields: verr.Fields})
	case errors.Is(err, service.ErrDuplicateEmail):
		newErrorResponse(c, http.StatusBadRequest, "email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		newErrorResponse(c, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrUnauthenticated):
		newErrorResponse(c, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrForbidden):
		newErrorResponse(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrNotFound):
		newErrorResponse(c, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrTooManyAttempts):
		newErrorResponse(c, http.StatusTooManyRequests, "too many login attempts, try again later")
	default:
		log.Error("request failed", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "internal error")
	}
}

// bindJSON reports field-level binding failures as a ValidationError and
// anything else as a malformed body.
func bindJSON(c *gin.Context, log *slog.Logger, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		writeError(c, log, service.FromFieldErrors(fieldErrs))

		return false
	}

	log.Debug("failed to read request body", slog.Any("error", err))

	newErrorResponse(c, http.StatusBadRequest, "invalid request body")

	return false
}

var fieldNamesOnce sync.Once

// useJSONFieldNames makes binding errors name fields the way clients send them.
func useJSONFieldNames() {
	fieldNamesOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(service.FieldName)
		}
	})
}

func validationMessage(verr *service.ValidationError) string {
	if errors.Is(verr, service.ErrWeakPassword) {
		return "weak password"
	}
	return "validation failed"
}

func NewHandler(srvc service.Service, guard *Guard, lgr *slog.Logger) *Handler {
	useJSONFieldNames()

	return &Handler{
		serviceLayer: srvc,
		guard:        guard,
		log:          lgr,
	}
}

type route struct {
	method  string
	path    string
	policy  Policy
	handler gin.HandlerFunc
}

var (
	public    = Policy{Public: true}
	signedIn  = Policy{}
	adminOnly = Policy{Roles: []models.Role{models.RoleAdmin}}
)

func (h *Handler) routes() []route {
	return []route{
		{http.MethodGet, "/health", public, h.Health},

		{http.MethodPost, "/auth/register", public, h.Register},
		{http.MethodPost, "/auth/login", public, h.Login},
		{http.MethodGet, "/auth/me", signedIn, h.Me},
		{http.MethodPost, "/auth/change-password", signedIn, h.ChangePassword},

		{http.MethodGet, "/users", public, h.Directory},
		{http.MethodPut, "/users/profile", signedIn, h.UpdateOwnProfile},
		{http.MethodGet, "/users/:id", public, h.GetUser},
		{http.MethodPut, "/users/:id", Policy{Owner: userOwner}, h.UpdateUser},

		{http.MethodGet, "/admin/users", adminOnly, h.ListUsers},
		{http.MethodPatch, "/admin/users/:id/status", adminOnly, h.SetUserStatus},
		{http.MethodPatch, "/admin/users/:id/role", adminOnly, h.SetUserRole},
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(h.log))

	for _, r := range h.routes() {
		router.Handle(r.method, r.path, h.guard.Enforce(r.policy, r.handler)...)
	}

	router.NoRoute(func(c *gin.Context) {
		newErrorResponse(c, http.StatusNotFound, "route not found")
	})

	return router
}

// userOwner: a user record is owned by the user it describes.
func userOwner(c *gin.Context) (int64, error) {
	return parseID(c)
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &service.ValidationError{Fields: map[string]string{"id": "must be a positive integer"}}
	}
	return id, nil
}
