package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxPool is the part of *pgxpool.Pool the store uses.
type pgxPool interface {
	querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type pgStore struct {
	pool          pgxPool
	employees     EmployeeRepository
	balances      BalanceRepository
	leaveRequests LeaveRequestRepository
	outbox        OutboxRepository
}

// NewPostgresStore returns a Store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return newPgStore(pool)
}

func newPgStore(pool pgxPool) *pgStore {
	return &pgStore{
		pool:          pool,
		employees:     &employeeRepository{db: pool},
		balances:      &balanceRepository{db: pool},
		leaveRequests: &leaveRequestRepository{db: pool},
		outbox:        &outboxRepository{db: pool},
	}
}

func (s *pgStore) Employees() EmployeeRepository         { return s.employees }
func (s *pgStore) Balances() BalanceRepository           { return s.balances }
func (s *pgStore) LeaveRequests() LeaveRequestRepository { return s.leaveRequests }
func (s *pgStore) Outbox() OutboxRepository              { return s.outbox }

func (s *pgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithinEmployee opens a transaction and locks the employee row so that
// concurrent scopes on the same employee serialize on it.
func (s *pgStore) WithinEmployee(ctx context.Context, employeeID string, fn func(ctx context.Context, tx Tx) error) (err error) {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := pgTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	var locked string
	if err = pgTx.QueryRow(ctx, `SELECT id FROM employees WHERE id=$1 FOR UPDATE`, employeeID).Scan(&locked); err != nil {
		return translateErr(err)
	}

	if err = fn(ctx, &pgScope{db: pgTx}); err != nil {
		return err
	}

	if err = pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgScope struct {
	db querier
}

func (t *pgScope) Balances() BalanceRepository {
	return &balanceRepository{db: t.db}
}

func (t *pgScope) LeaveRequests() LeaveRequestRepository {
	return &leaveRequestRepository{db: t.db}
}

func (t *pgScope) Outbox() OutboxWriter {
	return &outboxRepository{db: t.db}
}
