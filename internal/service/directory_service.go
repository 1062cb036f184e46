package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/auth"
	"github.com/spec-kit/leave-service/internal/config"
	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/repository"
	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

const inactiveMessage = "Your portal is currently inactive. Please contact the admin."

// DirectoryService resolves employees and their credentials.
type DirectoryService struct {
	employees       repository.EmployeeRepository
	tokens          *auth.TokenManager
	bcryptCost      int
	annualAllowance int
	logger          *zap.Logger
}

// DirectoryDependencies bundles collaborators for the directory service.
type DirectoryDependencies struct {
	Employees       repository.EmployeeRepository
	Tokens          *auth.TokenManager
	BcryptCost      int
	AnnualAllowance int
	Logger          *zap.Logger
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string
	Token       domain.Token
	Employee    *domain.Employee
}

// NewEmployeeInput describes a directory record to create.
type NewEmployeeInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      domain.Role
}

// NewDirectoryService builds the service.
func NewDirectoryService(deps DirectoryDependencies) *DirectoryService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	allowance := deps.AnnualAllowance
	if allowance <= 0 {
		allowance = domain.DefaultAnnualLeaveDays
	}
	return &DirectoryService{
		employees:       deps.Employees,
		tokens:          deps.Tokens,
		bcryptCost:      deps.BcryptCost,
		annualAllowance: allowance,
		logger:          logger.Named("directory.service"),
	}
}

// Login verifies credentials and issues an access token.
func (s *DirectoryService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	employee, err := s.employees.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid email or password")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(employee.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid email or password")
	}
	if !employee.IsActive() {
		return nil, apperrors.NewForbidden(inactiveMessage)
	}

	raw, token, err := s.tokens.GenerateToken(employee.ID, employee.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("employee logged in", zap.String("employee_id", employee.ID), zap.String("role", string(employee.Role)))
	return &LoginResult{AccessToken: raw, Token: token, Employee: employee}, nil
}

// Authenticate implements auth.Authenticator. The role is taken from the
// directory record, not the token, so demotions apply immediately.
func (s *DirectoryService) Authenticate(ctx context.Context, token string) (*domain.Employee, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	employee, err := s.employees.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("employee not found")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !employee.IsActive() {
		return nil, apperrors.NewForbidden(inactiveMessage)
	}
	return employee, nil
}

// GetEmployee looks up a directory record.
func (s *DirectoryService) GetEmployee(ctx context.Context, id string) (*domain.Employee, error) {
	employee, err := s.employees.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("employee", map[string]any{"employee_id": id})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return employee, nil
}

// CreateEmployee adds an active employee with the full annual allowance and
// the next EL-prefixed code.
func (s *DirectoryService) CreateEmployee(ctx context.Context, input NewEmployeeInput) (*domain.Employee, error) {
	details := map[string]any{}
	if strings.TrimSpace(input.FirstName) == "" {
		details["first_name"] = "required"
	}
	if strings.TrimSpace(input.LastName) == "" {
		details["last_name"] = "required"
	}
	if !strings.Contains(input.Email, "@") {
		details["email"] = "must be an e-mail address"
	}
	if input.Password == "" {
		details["password"] = "required"
	}
	if !input.Role.Valid() {
		details["role"] = "must be admin or non-admin"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid employee", details)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	code, err := s.employees.NextEmployeeCode(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	employee := &domain.Employee{
		ID:              uuid.NewString(),
		EmployeeCode:    code,
		FirstName:       strings.TrimSpace(input.FirstName),
		LastName:        strings.TrimSpace(input.LastName),
		Email:           strings.TrimSpace(input.Email),
		PasswordHash:    hash,
		Role:            input.Role,
		Status:          domain.EmployeeStatusActive,
		AnnualLeaveDays: s.annualAllowance,
	}
	if err := s.employees.Create(ctx, employee); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("email must be unique", map[string]any{"email": employee.Email})
		}
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("employee created", zap.String("employee_id", employee.ID), zap.String("employee_code", code))
	return employee, nil
}

// EnsureBootstrapAdmin creates the configured admin unless an employee with
// that e-mail exists. An empty e-mail is a no-op.
func (s *DirectoryService) EnsureBootstrapAdmin(ctx context.Context, cfg config.BootstrapAdminConfig) (*domain.Employee, error) {
	if strings.TrimSpace(cfg.Email) == "" {
		return nil, nil
	}
	existing, err := s.employees.GetByEmail(ctx, cfg.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}
	return s.CreateEmployee(ctx, NewEmployeeInput{
		FirstName: cfg.FirstName,
		LastName:  cfg.LastName,
		Email:     cfg.Email,
		Password:  cfg.Password,
		Role:      domain.RoleAdmin,
	})
}
