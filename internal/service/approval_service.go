package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/approval"
	"github.com/fintra-io/be-expenses/internal/repository"
)

// ApprovalService applies approver actions and resolves expenses. Each
// Act call is one transaction: the expense row is locked first, so the
// read-evaluate-write cycle is serialized per expense; a concurrent
// version change surfaces as CodeConcurrentModification instead of state
// corruption.
type ApprovalService struct {
	store    Store
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(store Store, notifier Notifier, log zerolog.Logger) *ApprovalService {
	return &ApprovalService{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// ActResult is the post-action state of the expense and its workflow.
type ActResult struct {
	Expense *repository.Expense        `json:"expense"`
	Steps   []*repository.ApprovalStep `json:"steps"`
}

// Act validates and applies one approver decision to one step, then
// resolves the expense: activate the next step, finish the workflow, or
// leave it pending. All touched records are persisted atomically.
func (s *ApprovalService) Act(ctx context.Context, stepID, actorID string, decision approval.Decision, comments string) (*ActResult, error) {
	var result *ActResult
	var terminalEvent string
	var activatedApprover string

	err := s.store.InTx(ctx, func(sess *repository.Session) error {
		located, err := sess.Steps.GetByID(ctx, stepID)
		if err != nil {
			return err
		}

		// Lock the expense before reading workflow state; this serializes
		// concurrent act() calls on the same expense.
		expense, err := sess.Expenses.GetForUpdate(ctx, located.ExpenseID)
		if err != nil {
			return err
		}
		if expense.Status.Terminal() {
			return apperrors.Conflict("expense is already " + string(expense.Status))
		}

		steps, err := sess.Steps.GetByExpenseID(ctx, expense.ID)
		if err != nil {
			return err
		}
		acted := stepByID(steps, stepID)
		if acted == nil {
			return apperrors.NotFound("approval_step", stepID)
		}

		var rule *repository.ApprovalRule
		if expense.RuleID != nil {
			rule, err = sess.Rules.GetByID(ctx, *expense.RuleID, expense.CompanyID)
			if err != nil {
				return err
			}
		}

		statusBefore := string(expense.Status)

		if err := approval.ApplyAction(acted, actorID, decision, comments, s.now()); err != nil {
			return err
		}
		if err := sess.Steps.RecordAction(ctx, acted.ID, acted.Status, acted.Comments); err != nil {
			return err
		}

		outcome := approval.Resolve(expense, rule, steps, acted)
		if outcome.Activated != nil {
			if err := sess.Steps.Activate(ctx, outcome.Activated.ID); err != nil {
				return err
			}
			activatedApprover = outcome.Activated.ApproverID
		}
		if err := sess.Expenses.UpdateResolution(ctx, expense); err != nil {
			return err
		}

		statusAfter := string(expense.Status)
		if err := sess.Audit.Append(ctx, &repository.AuditEntry{
			ExpenseID:           expense.ID,
			StepID:              &acted.ID,
			CompanyID:           expense.CompanyID,
			Action:              string(acted.Status),
			PerformedBy:         actorID,
			ExpenseStatusBefore: &statusBefore,
			ExpenseStatusAfter:  &statusAfter,
			Metadata: map[string]interface{}{
				"step_order": acted.StepOrder,
			},
		}); err != nil {
			return err
		}

		switch expense.Status {
		case repository.ExpenseApproved:
			terminalEvent = EventExpenseApproved
		case repository.ExpenseRejected:
			terminalEvent = EventExpenseRejected
		}

		result = &ActResult{Expense: expense, Steps: steps}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("expense_id", result.Expense.ID).
		Str("step_id", stepID).
		Str("actor_id", actorID).
		Str("decision", string(decision)).
		Str("expense_status", string(result.Expense.Status)).
		Msg("Approval action applied")

	if terminalEvent != "" {
		s.notifier.PublishExpenseEvent(terminalEvent, result.Expense.ID, result.Expense.CompanyID, actorID,
			[]string{result.Expense.EmployeeID}, map[string]interface{}{"decision": string(decision)})
	}
	if activatedApprover != "" {
		s.notifier.PublishExpenseEvent(EventApprovalRequired, result.Expense.ID, result.Expense.CompanyID, actorID,
			[]string{activatedApprover}, map[string]interface{}{"step_order": result.Expense.CurrentApprovalStep})
	}

	return result, nil
}

// PendingApprovals returns the steps currently awaiting a decision from
// the given approver.
func (s *ApprovalService) PendingApprovals(ctx context.Context, approverID string) ([]*repository.ApprovalStep, error) {
	return s.store.Steps().GetPendingForApprover(ctx, approverID)
}

func stepByID(steps []*repository.ApprovalStep, id string) *repository.ApprovalStep {
	for _, s := range steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}
