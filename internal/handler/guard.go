package handler

import (
	"alumni_network/internal/models"
	"alumni_network/internal/service"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

type TokenVerifier interface {
	Verify(token string) (models.Principal, error)
}

// OwnerResolver returns the id of the user owning the resource addressed by
// the request.
type OwnerResolver func(c *gin.Context) (int64, error)

// Policy is declared once per route. A zero Policy means "authenticated".
type Policy struct {
	Public bool
	Roles  []models.Role
	Owner  OwnerResolver
}

type Guard struct {
	tokens TokenVerifier
	log    *slog.Logger
}

func NewGuard(tokens TokenVerifier, lgr *slog.Logger) *Guard {
	return &Guard{
		tokens: tokens,
		log:    lgr,
	}
}

// Enforce builds the handler chain for one route: authentication, then the
// role gate, then the ownership gate, then the handler.
func (g *Guard) Enforce(p Policy, h gin.HandlerFunc) []gin.HandlerFunc {
	if p.Public {
		return []gin.HandlerFunc{h}
	}

	chain := []gin.HandlerFunc{g.RequireAuth()}
	if len(p.Roles) > 0 {
		chain = append(chain, RequireRole(p.Roles...))
	}
	if p.Owner != nil {
		chain = append(chain, g.RequireOwner(p.Owner))
	}

	return append(chain, h)
}

func (g *Guard) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.RequireAuth"

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, "authentication required")

			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			newErrorResponse(c, http.StatusUnauthorized, "invalid authorization header")

			return
		}

		principal, err := g.tokens.Verify(parts[1])
		if err != nil {
			g.log.Debug("token rejected", slog.String("op", op), slog.Any("error", err))

			newErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")

			return
		}

		c.Set(principalKey, principal)

		c.Next()
	}
}

func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, "authentication required")

			return
		}

		if _, ok := allowed[principal.Role]; !ok {
			newErrorResponse(c, http.StatusForbidden, "insufficient role")

			return
		}

		c.Next()
	}
}

// RequireOwner admits admins without resolving the owner.
func (g *Guard) RequireOwner(resolve OwnerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.RequireOwner"

		principal, ok := PrincipalFrom(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, "authentication required")

			return
		}

		if principal.IsAdmin() {
			c.Next()

			return
		}

		ownerID, err := resolve(c)
		if err != nil {
			writeError(c, g.log.With(slog.String("op", op)), err)

			return
		}

		if ownerID != principal.ID {
			writeError(c, g.log, service.ErrForbidden)

			return
		}

		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}

	principal, ok := v.(models.Principal)
	if !ok || principal.IsZero() {
		return models.Principal{}, false
	}

	return principal, true
}
