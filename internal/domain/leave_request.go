package domain

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// LeaveType selects whether a request draws on the annual balance.
type LeaveType string

const (
	LeaveTypeAnnual    LeaveType = "annual"
	LeaveTypeUnplanned LeaveType = "unplanned"
)

// Valid reports whether the leave type is known.
func (t LeaveType) Valid() bool {
	return t == LeaveTypeAnnual || t == LeaveTypeUnplanned
}

// DrawsBalance reports whether approval debits the annual balance.
func (t LeaveType) DrawsBalance() bool {
	return t == LeaveTypeAnnual
}

// LeaveStatus enumerates lifecycle states for leave requests.
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusDeclined LeaveStatus = "declined"
)

// IsTerminal reports whether no further transition is permitted.
func (s LeaveStatus) IsTerminal() bool {
	return s == LeaveStatusApproved || s == LeaveStatusDeclined
}

// IsDecision reports whether s is a valid target of an admin decision.
func (s LeaveStatus) IsDecision() bool {
	return s.IsTerminal()
}

var allowedTransitions = map[LeaveStatus][]LeaveStatus{
	LeaveStatusPending:  {LeaveStatusApproved, LeaveStatusDeclined},
	LeaveStatusApproved: {},
	LeaveStatusDeclined: {},
}

// CanTransition reports whether a request may move from s to next.
func (s LeaveStatus) CanTransition(next LeaveStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// LeaveRequest is an append-only record of an employee's request for leave.
type LeaveRequest struct {
	ID         string
	EmployeeID string
	StartDate  time.Time
	EndDate    time.Time
	LeaveType  LeaveType
	Reason     string
	Status     LeaveStatus
	DecidedBy  *string
	DecidedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LeaveDays is the inclusive day count of the request's date range.
func (r LeaveRequest) LeaveDays() int {
	return LeaveDays(r.StartDate, r.EndDate)
}

// CalendarDate drops the time of day, keeping the calendar date t has in
// its own location, and returns it as midnight UTC.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// LeaveDays counts calendar days from start to end inclusive. Both ends are
// normalized with CalendarDate, so time-of-day never changes the result.
// It is the only day-count formula; submission and approval both call it.
func LeaveDays(start, end time.Time) int {
	s, e := CalendarDate(start), CalendarDate(end)
	return int((e.Unix()-s.Unix())/secondsPerDay) + 1
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(v string) (time.Time, error) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, err
	}
	return CalendarDate(t), nil
}
