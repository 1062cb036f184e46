package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leave-service/internal/api/dto"
	"github.com/spec-kit/leave-service/internal/service"
	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

// AuthHandler exposes login.
type AuthHandler struct {
	directory *service.DirectoryService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(directory *service.DirectoryService) *AuthHandler {
	return &AuthHandler{directory: directory}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	result, err := h.directory.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     result.AccessToken,
		ExpiresAt: result.Token.ExpiresAt,
		Role:      result.Token.Role,
	}})
}
