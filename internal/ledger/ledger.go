// Package ledger owns the remaining annual leave balance of each employee.
// Balances only ever decrease here, and only through ReserveOrDebit.
package ledger

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/repository"
	"github.com/spec-kit/leave-service/pkg/util/errorutil"
)

// Ledger performs balance arithmetic over a BalanceRepository.
type Ledger struct {
	logger *zap.Logger
}

// New builds a Ledger.
func New(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{logger: logger.Named("leave.ledger")}
}

// GetBalance returns the remaining annual leave days.
func (l *Ledger) GetBalance(ctx context.Context, balances repository.BalanceRepository, employeeID string) (int, error) {
	days, err := balances.Balance(ctx, employeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, errorutil.NewNotFound("employee", map[string]any{"employee_id": employeeID})
		}
		return 0, errorutil.NewInternalError(err)
	}
	return days, nil
}

// ReserveOrDebit subtracts days if the balance covers them. The check and the
// write happen in one repository call, so callers running inside an employee
// scope get an exact result.
func (l *Ledger) ReserveOrDebit(ctx context.Context, balances repository.BalanceRepository, employeeID string, days int) error {
	if days < 0 {
		return errorutil.NewValidationError("leave days must not be negative", map[string]any{"days": days})
	}
	if days == 0 {
		return nil
	}

	ok, err := balances.DebitIfSufficient(ctx, employeeID, days)
	if err != nil {
		return errorutil.NewInternalError(err)
	}
	if ok {
		l.logger.Debug("balance debited", zap.String("employee_id", employeeID), zap.Int("days", days))
		return nil
	}

	available, err := l.GetBalance(ctx, balances, employeeID)
	if err != nil {
		return err
	}
	return errorutil.NewInsufficientBalance(days, available)
}
