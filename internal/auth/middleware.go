package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leave-service/internal/domain"
	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	// TokenHeader is the bare-token header accepted alongside Authorization.
	TokenHeader = "auth-token"
)

// Principal represents the authenticated caller.
type Principal struct {
	EmployeeID string
	Role       domain.Role
	Employee   *domain.Employee
}

// Authenticator resolves a raw token to an active employee.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Employee, error)
}

// AuthMiddleware validates tokens and loads principals.
type AuthMiddleware struct {
	authenticator Authenticator
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := extractToken(c)
	if err != nil {
		return err
	}

	employee, err := m.authenticator.Authenticate(c.UserContext(), token)
	if err != nil {
		return err
	}

	c.Locals(principalKey, &Principal{
		EmployeeID: employee.ID,
		Role:       employee.Role,
		Employee:   employee,
	})
	return c.Next()
}

func extractToken(c *fiber.Ctx) (string, error) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if raw := strings.TrimSpace(c.Get(TokenHeader)); raw != "" {
		return raw, nil
	}
	return "", apperrors.NewUnauthorized("missing authorization header")
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
