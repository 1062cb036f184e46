package dto

import (
	"time"

	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/service"
)

// SubmitLeaveRequest payload.
type SubmitLeaveRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason" validate:"required"`
	LeaveType string `json:"leave_type" validate:"required,oneof=annual unplanned"`
}

// ToInput converts the payload for the service.
func (r SubmitLeaveRequest) ToInput() service.SubmitInput {
	return service.SubmitInput{
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Reason:    r.Reason,
		LeaveType: domain.LeaveType(r.LeaveType),
	}
}

// DecisionRequest payload. The value itself is checked by the service after
// the caller is authorized.
type DecisionRequest struct {
	Status string `json:"status" validate:"required"`
}

// SubmitLeaveResponse is returned after submission.
type SubmitLeaveResponse struct {
	ID        string             `json:"id"`
	Status    domain.LeaveStatus `json:"status"`
	LeaveDays int                `json:"leave_days"`
}

// DecisionResponse is returned after a decision.
type DecisionResponse struct {
	ID     string             `json:"id"`
	Status domain.LeaveStatus `json:"status"`
}

// LeaveRequestResponse describes one request.
type LeaveRequestResponse struct {
	ID         string             `json:"id"`
	EmployeeID string             `json:"employee_id"`
	StartDate  string             `json:"start_date"`
	EndDate    string             `json:"end_date"`
	LeaveType  domain.LeaveType   `json:"leave_type"`
	LeaveDays  int                `json:"leave_days"`
	Reason     string             `json:"reason"`
	Status     domain.LeaveStatus `json:"status"`
	DecidedBy  *string            `json:"decided_by,omitempty"`
	DecidedAt  *time.Time         `json:"decided_at,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// BalanceResponse describes annual leave.
type BalanceResponse struct {
	EmployeeID string `json:"employee_id"`
	Remaining  int    `json:"remaining"`
	Total      int    `json:"total"`
}

// NewLeaveRequestResponse maps a domain request.
func NewLeaveRequestResponse(r domain.LeaveRequest) LeaveRequestResponse {
	return LeaveRequestResponse{
		ID:         r.ID,
		EmployeeID: r.EmployeeID,
		StartDate:  r.StartDate.Format(domain.DateLayout),
		EndDate:    r.EndDate.Format(domain.DateLayout),
		LeaveType:  r.LeaveType,
		LeaveDays:  r.LeaveDays(),
		Reason:     r.Reason,
		Status:     r.Status,
		DecidedBy:  r.DecidedBy,
		DecidedAt:  r.DecidedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// NewLeaveRequestList maps a slice of domain requests.
func NewLeaveRequestList(requests []domain.LeaveRequest) []LeaveRequestResponse {
	out := make([]LeaveRequestResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, NewLeaveRequestResponse(r))
	}
	return out
}
