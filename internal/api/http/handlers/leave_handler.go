package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leave-service/internal/api/dto"
	"github.com/spec-kit/leave-service/internal/auth"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/service"
	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

// LeaveHandler exposes the leave workflow.
type LeaveHandler struct {
	leave *service.LeaveService
}

// NewLeaveHandler constructs handler.
func NewLeaveHandler(leave *service.LeaveService) *LeaveHandler {
	return &LeaveHandler{leave: leave}
}

// Submit handles POST /leave/requests.
func (h *LeaveHandler) Submit(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.SubmitLeaveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	created, err := h.leave.Submit(c.UserContext(), actor, req.ToInput())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.SubmitLeaveResponse{
		ID:        created.ID,
		Status:    created.Status,
		LeaveDays: created.LeaveDays(),
	}})
}

// Decide handles POST /leave/requests/:id/decision.
func (h *LeaveHandler) Decide(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	decided, err := h.leave.Decide(c.UserContext(), actor, c.Params("id"), domain.LeaveStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DecisionResponse{ID: decided.ID, Status: decided.Status}})
}

// Get handles GET /leave/requests/:id.
func (h *LeaveHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	request, err := h.leave.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLeaveRequestResponse(*request)})
}

// ListAll handles GET /leave/requests.
func (h *LeaveHandler) ListAll(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	requests, err := h.leave.ListAll(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLeaveRequestList(requests)})
}

// History handles GET /leave/history.
func (h *LeaveHandler) History(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	requests, err := h.leave.ListForEmployee(c.UserContext(), actor, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLeaveRequestList(requests)})
}

// OwnBalance handles GET /leave/balance.
func (h *LeaveHandler) OwnBalance(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return h.balance(c, actor, actor.ID)
}

// EmployeeBalance handles GET /leave/employees/:employeeId/balance.
func (h *LeaveHandler) EmployeeBalance(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return h.balance(c, actor, c.Params("employeeId"))
}

func (h *LeaveHandler) balance(c *fiber.Ctx, actor service.Actor, employeeID string) error {
	b, err := h.leave.Balance(c.UserContext(), actor, employeeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BalanceResponse{
		EmployeeID: b.EmployeeID,
		Remaining:  b.Remaining,
		Total:      b.Total,
	}})
}

func actorFrom(c *fiber.Ctx) (service.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return service.Actor{ID: principal.EmployeeID, Role: principal.Role}, nil
}
