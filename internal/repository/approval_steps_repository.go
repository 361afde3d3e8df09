package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/database"
)

// ApprovalStepsRepository handles reads and updates on individual approval
// steps. Step creation happens together with the expense in
// ExpenseRepository.CreateWithSteps, so inserts live there.
type ApprovalStepsRepository struct {
	db database.Querier
}

// NewApprovalStepsRepository creates a new ApprovalStepsRepository.
func NewApprovalStepsRepository(db database.Querier) *ApprovalStepsRepository {
	return &ApprovalStepsRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ApprovalStepsRepository) WithTx(tx pgx.Tx) *ApprovalStepsRepository {
	return &ApprovalStepsRepository{db: tx}
}

const stepColumns = `
	id, expense_id, approver_id, step_order,
	status, comments, created_at, action_taken_at
`

// GetByID returns a single step.
func (r *ApprovalStepsRepository) GetByID(ctx context.Context, id string) (*ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps WHERE id = $1`

	step, err := scanStep(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("approval_step", id)
	}
	return step, err
}

// GetByExpenseID returns all steps for an expense ordered by step_order.
func (r *ApprovalStepsRepository) GetByExpenseID(ctx context.Context, expenseID string) ([]*ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps WHERE expense_id = $1 ORDER BY step_order ASC`

	rows, err := r.db.Query(ctx, query, expenseID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get approval steps")
	}
	defer rows.Close()

	return scanStepRows(rows)
}

// GetPendingForApprover returns all steps awaiting a decision from the
// given approver on expenses that are still in flight.
func (r *ApprovalStepsRepository) GetPendingForApprover(ctx context.Context, approverID string) ([]*ApprovalStep, error) {
	query := `
		SELECT s.id, s.expense_id, s.approver_id, s.step_order,
		       s.status, s.comments, s.created_at, s.action_taken_at
		FROM approval_steps s
		JOIN expenses e ON e.id = s.expense_id
		WHERE s.approver_id = $1
		  AND s.status = 'pending'
		  AND e.status = 'pending'
		ORDER BY s.created_at ASC
	`

	rows, err := r.db.Query(ctx, query, approverID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get pending approvals")
	}
	defer rows.Close()

	return scanStepRows(rows)
}

// RecordAction persists a terminal step decision (approved / rejected)
// along with the approver's comments.
func (r *ApprovalStepsRepository) RecordAction(ctx context.Context, id string, status StepStatus, comments *string) error {
	query := `
		UPDATE approval_steps
		SET status          = $2,
		    comments        = $3,
		    action_taken_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status, comments).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("approval_step", id)
	}
	return err
}

// Activate moves a waiting step to pending. Used by the resolver when a
// sequential workflow advances.
func (r *ApprovalStepsRepository) Activate(ctx context.Context, id string) error {
	query := `
		UPDATE approval_steps
		SET status = 'pending'
		WHERE id = $1
		  AND status = 'waiting'
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.New(apperrors.CodeConcurrentModification,
			"step is no longer waiting; workflow advanced concurrently")
	}
	return err
}

// DeleteByExpenseID removes all steps for an expense. Only called from the
// expense-deletion path, which guards on workflow progress first.
func (r *ApprovalStepsRepository) DeleteByExpenseID(ctx context.Context, expenseID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM approval_steps WHERE expense_id = $1`, expenseID)
	return err
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanStep(row rowScanner) (*ApprovalStep, error) {
	s := &ApprovalStep{}
	err := row.Scan(
		&s.ID,
		&s.ExpenseID,
		&s.ApproverID,
		&s.StepOrder,
		&s.Status,
		&s.Comments,
		&s.CreatedAt,
		&s.ActionTakenAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanStepRows(rows pgx.Rows) ([]*ApprovalStep, error) {
	var steps []*ApprovalStep
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan approval step")
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
