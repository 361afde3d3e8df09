package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/database"
)

// ExpenseRepository manages expense records and their workflow steps.
// Expense + step creation is always done together in a single transaction.
type ExpenseRepository struct {
	db database.Querier
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db database.Querier) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ExpenseRepository) WithTx(tx pgx.Tx) *ExpenseRepository {
	return &ExpenseRepository{db: tx}
}

const expenseColumns = `
	id, employee_id, company_id, rule_id, amount_cents, currency,
	converted_amount_cents, conversion_pending,
	category, description, expense_date,
	status, current_approval_step, version,
	created_at, updated_at
`

// CreateWithSteps inserts an expense and its initial approval steps
// atomically. Step ids and timestamps are filled in from the database.
// Must be called inside a transaction (use WithTx).
func (r *ExpenseRepository) CreateWithSteps(ctx context.Context, expense *Expense, steps []*ApprovalStep) error {
	expQuery := `
		INSERT INTO expenses
		    (employee_id, company_id, rule_id, amount_cents, currency,
		     converted_amount_cents, conversion_pending,
		     category, description, expense_date,
		     status, current_approval_step)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, version, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, expQuery,
		expense.EmployeeID,
		expense.CompanyID,
		expense.RuleID,
		expense.AmountCents,
		expense.Currency,
		expense.ConvertedAmountCents,
		expense.ConversionPending,
		expense.Category,
		expense.Description,
		expense.ExpenseDate,
		expense.Status,
		expense.CurrentApprovalStep,
	).Scan(&expense.ID, &expense.Version, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create expense")
	}

	stepQuery := `
		INSERT INTO approval_steps
		    (expense_id, approver_id, step_order, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	for _, step := range steps {
		step.ExpenseID = expense.ID
		err := r.db.QueryRow(ctx, stepQuery,
			step.ExpenseID,
			step.ApproverID,
			step.StepOrder,
			step.Status,
		).Scan(&step.ID, &step.CreatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to create approval step")
		}
	}

	return nil
}

// GetByID retrieves an expense by primary key.
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`

	expense, err := scanExpense(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("expense", id)
	}
	return expense, err
}

// GetForUpdate loads an expense with a row lock, serializing concurrent
// act() calls on the same expense. Must be called inside a transaction.
func (r *ExpenseRepository) GetForUpdate(ctx context.Context, id string) (*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1 FOR UPDATE`

	expense, err := scanExpense(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("expense", id)
	}
	return expense, err
}

// ListByEmployee returns an employee's expenses, newest first.
func (r *ExpenseRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE employee_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, employeeID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list expenses")
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan expense")
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

// UpdateResolution persists the resolver's outcome for an expense. The
// version check detects a concurrent act() that already advanced the
// expense; the caller sees that as CodeConcurrentModification and must
// re-read. On success the expense's version is bumped in place.
func (r *ExpenseRepository) UpdateResolution(ctx context.Context, expense *Expense) error {
	query := `
		UPDATE expenses
		SET status                = $3,
		    current_approval_step = $4,
		    version               = version + 1,
		    updated_at            = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		expense.ID,
		expense.Version,
		expense.Status,
		expense.CurrentApprovalStep,
	).Scan(&expense.Version, &expense.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.New(apperrors.CodeConcurrentModification,
			"expense was modified concurrently; re-read and retry")
	}
	return err
}

// Delete removes an expense row. Step cleanup and the pending/unprogressed
// guard are handled by the service inside one transaction.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete expense")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("expense", id)
	}
	return nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

func scanExpense(row rowScanner) (*Expense, error) {
	e := &Expense{}
	err := row.Scan(
		&e.ID,
		&e.EmployeeID,
		&e.CompanyID,
		&e.RuleID,
		&e.AmountCents,
		&e.Currency,
		&e.ConvertedAmountCents,
		&e.ConversionPending,
		&e.Category,
		&e.Description,
		&e.ExpenseDate,
		&e.Status,
		&e.CurrentApprovalStep,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
