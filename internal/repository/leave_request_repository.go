package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/leave-service/internal/domain"
)

const leaveRequestColumns = `id, employee_id, start_date, end_date, leave_type, reason, status, decided_by, decided_at, created_at, updated_at`

type leaveRequestRepository struct {
	db querier
}

// NewLeaveRequestRepository instantiates repository.
func NewLeaveRequestRepository(pool *pgxpool.Pool) LeaveRequestRepository {
	return &leaveRequestRepository{db: pool}
}

func (r *leaveRequestRepository) Create(ctx context.Context, request *domain.LeaveRequest) error {
	const query = `
        INSERT INTO leave_requests (id, employee_id, start_date, end_date, leave_type, reason, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		request.ID,
		request.EmployeeID,
		request.StartDate,
		request.EndDate,
		request.LeaveType,
		request.Reason,
		request.Status,
	).Scan(&request.CreatedAt, &request.UpdatedAt)
}

func (r *leaveRequestRepository) GetByID(ctx context.Context, id string) (*domain.LeaveRequest, error) {
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests WHERE id=$1`
	var request domain.LeaveRequest
	if err := scanLeaveRequest(r.db.QueryRow(ctx, query, id), &request); err != nil {
		return nil, translateErr(err)
	}
	return &request, nil
}

func (r *leaveRequestRepository) ListByEmployee(ctx context.Context, employeeID string) ([]domain.LeaveRequest, error) {
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests WHERE employee_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeaveRequests(rows)
}

func (r *leaveRequestRepository) ListAll(ctx context.Context) ([]domain.LeaveRequest, error) {
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeaveRequests(rows)
}

func (r *leaveRequestRepository) Transition(ctx context.Context, id string, from, to domain.LeaveStatus, decidedBy string, decidedAt time.Time) error {
	const query = `
        UPDATE leave_requests SET status=$1, decided_by=$2, decided_at=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5`
	cmd, err := r.db.Exec(ctx, query, to, decidedBy, decidedAt, id, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func scanLeaveRequest(row pgx.Row, request *domain.LeaveRequest) error {
	return row.Scan(
		&request.ID,
		&request.EmployeeID,
		&request.StartDate,
		&request.EndDate,
		&request.LeaveType,
		&request.Reason,
		&request.Status,
		&request.DecidedBy,
		&request.DecidedAt,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
}

func scanLeaveRequests(rows pgx.Rows) ([]domain.LeaveRequest, error) {
	result := []domain.LeaveRequest{}
	for rows.Next() {
		var request domain.LeaveRequest
		if err := scanLeaveRequest(rows, &request); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}
