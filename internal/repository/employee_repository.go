package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/leave-service/internal/domain"
)

const employeeCodePrefix = "EL"

type employeeRepository struct {
	db querier
}

// NewEmployeeRepository returns a Postgres-backed implementation.
func NewEmployeeRepository(pool *pgxpool.Pool) EmployeeRepository {
	return &employeeRepository{db: pool}
}

func (r *employeeRepository) Create(ctx context.Context, employee *domain.Employee) error {
	const query = `
        INSERT INTO employees (id, employee_code, first_name, last_name, email, password_hash, role, status, annual_leave_days)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		employee.ID,
		employee.EmployeeCode,
		employee.FirstName,
		employee.LastName,
		employee.Email,
		employee.PasswordHash,
		employee.Role,
		employee.Status,
		employee.AnnualLeaveDays,
	).Scan(&employee.CreatedAt, &employee.UpdatedAt)
	return translateErr(err)
}

func (r *employeeRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	const query = `
        SELECT id, employee_code, first_name, last_name, email, password_hash, role, status, annual_leave_days, created_at, updated_at
        FROM employees WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *employeeRepository) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	const query = `
        SELECT id, employee_code, first_name, last_name, email, password_hash, role, status, annual_leave_days, created_at, updated_at
        FROM employees WHERE LOWER(email)=LOWER($1)`
	return r.fetchSingle(ctx, query, email)
}

func (r *employeeRepository) NextEmployeeCode(ctx context.Context) (string, error) {
	const query = `
        SELECT COALESCE(MAX(CAST(SUBSTRING(employee_code FROM 3) AS INTEGER)), 0) + 1
        FROM employees WHERE employee_code ~ '^EL[0-9]+$'`
	var next int
	if err := r.db.QueryRow(ctx, query).Scan(&next); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", employeeCodePrefix, next), nil
}

func (r *employeeRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Employee, error) {
	var employee domain.Employee
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&employee.ID,
		&employee.EmployeeCode,
		&employee.FirstName,
		&employee.LastName,
		&employee.Email,
		&employee.PasswordHash,
		&employee.Role,
		&employee.Status,
		&employee.AnnualLeaveDays,
		&employee.CreatedAt,
		&employee.UpdatedAt,
	); err != nil {
		return nil, translateErr(err)
	}
	return &employee, nil
}

type balanceRepository struct {
	db querier
}

// NewBalanceRepository returns the Postgres storage for the leave ledger.
func NewBalanceRepository(pool *pgxpool.Pool) BalanceRepository {
	return &balanceRepository{db: pool}
}

func (r *balanceRepository) Balance(ctx context.Context, employeeID string) (int, error) {
	var days int
	if err := r.db.QueryRow(ctx, `SELECT annual_leave_days FROM employees WHERE id=$1`, employeeID).Scan(&days); err != nil {
		return 0, translateErr(err)
	}
	return days, nil
}

func (r *balanceRepository) DebitIfSufficient(ctx context.Context, employeeID string, days int) (bool, error) {
	const query = `
        UPDATE employees SET annual_leave_days = annual_leave_days - $2, updated_at=NOW()
        WHERE id=$1 AND annual_leave_days >= $2`
	cmd, err := r.db.Exec(ctx, query, employeeID, days)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}
