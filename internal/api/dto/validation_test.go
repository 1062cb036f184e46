package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

func TestValidateSubmitLeaveRequest(t *testing.T) {
	ok := SubmitLeaveRequest{StartDate: "2024-01-01", EndDate: "2024-01-05", Reason: "trip", LeaveType: "annual"}
	assert.NoError(t, Validate(ok))

	err := Validate(SubmitLeaveRequest{StartDate: "01/01/2024", LeaveType: "sick"})
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidationFailed, de.Code)
	assert.Equal(t, "must be YYYY-MM-DD", de.Details["start_date"])
	assert.Equal(t, "required", de.Details["end_date"])
	assert.Equal(t, "required", de.Details["reason"])
	assert.Equal(t, "must be one of: annual unplanned", de.Details["leave_type"])
}

func TestValidateDecisionRequest(t *testing.T) {
	assert.NoError(t, Validate(DecisionRequest{Status: "approved"}))
	assert.NoError(t, Validate(DecisionRequest{Status: "declined"}))
	assert.Error(t, Validate(DecisionRequest{}))
}

func TestValidateLoginRequest(t *testing.T) {
	err := Validate(LoginRequest{Email: "nope"})
	de := apperrors.ToDomainError(err)
	assert.Equal(t, "must be an e-mail address", de.Details["email"])
	assert.Equal(t, "required", de.Details["password"])
}
