package domain

import (
	"strings"
	"time"
)

// DefaultAnnualLeaveDays is the allowance granted to a new employee.
const DefaultAnnualLeaveDays = 10

// Role separates administrators from regular employees.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "non-admin"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// EmployeeStatus represents whether an employee may use the portal.
type EmployeeStatus string

const (
	EmployeeStatusActive   EmployeeStatus = "active"
	EmployeeStatusInactive EmployeeStatus = "inactive"
)

// Employee is the directory record referenced by leave requests.
// AnnualLeaveDays is the remaining balance and never goes negative.
type Employee struct {
	ID              string
	EmployeeCode    string
	FirstName       string
	LastName        string
	Email           string
	PasswordHash    string
	Role            Role
	Status          EmployeeStatus
	AnnualLeaveDays int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAdmin reports whether the employee holds the admin role.
func (e Employee) IsAdmin() bool {
	return e.Role == RoleAdmin
}

// IsActive reports whether the employee may sign in.
func (e Employee) IsActive() bool {
	return e.Status == EmployeeStatusActive
}

// FullName joins first and last name.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}
