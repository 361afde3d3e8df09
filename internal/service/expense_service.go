package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/approval"
	"github.com/fintra-io/be-expenses/internal/repository"
)

// ExpenseService owns the submission flow: currency conversion, rule
// selection, workflow instantiation and the atomic persist of the expense
// with its steps.
type ExpenseService struct {
	store    Store
	currency CurrencyConverter
	notifier Notifier
	log      zerolog.Logger
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(store Store, currency CurrencyConverter, notifier Notifier, log zerolog.Logger) *ExpenseService {
	return &ExpenseService{
		store:    store,
		currency: currency,
		notifier: notifier,
		log:      log,
	}
}

// SubmitExpenseRequest is the input to SubmitExpense.
type SubmitExpenseRequest struct {
	EmployeeID  string    `json:"employee_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	ExpenseDate time.Time `json:"expense_date"`
}

// SubmitExpenseResult is the created expense together with its workflow.
type SubmitExpenseResult struct {
	Expense *repository.Expense        `json:"expense"`
	Steps   []*repository.ApprovalStep `json:"steps"`
	// ConversionUnavailable is set when the rate lookup failed and rule
	// thresholds were compared against the raw amount. Non-fatal.
	ConversionUnavailable bool `json:"conversion_unavailable,omitempty"`
}

// SubmitExpense creates an expense, binds the applicable rule and
// materializes its approval steps. The expense and steps are persisted as
// one atomic unit; the rule binding never changes afterward.
func (s *ExpenseService) SubmitExpense(ctx context.Context, req *SubmitExpenseRequest) (*SubmitExpenseResult, error) {
	if req.AmountCents <= 0 {
		return nil, apperrors.InvalidInput("amount_cents", "must be positive")
	}
	if req.Currency == "" {
		return nil, apperrors.InvalidInput("currency", "is required")
	}

	employee, err := s.store.Users().GetByID(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	company, err := s.store.Companies().GetByID(ctx, employee.CompanyID)
	if err != nil {
		return nil, err
	}

	// Convert once to company currency for threshold comparison. A failed
	// lookup degrades to the raw amount and flags the expense for review;
	// it never blocks the submission.
	var convertedCents *int64
	conversionPending := false
	comparableCents := req.AmountCents

	converted, err := s.currency.Convert(ctx, req.AmountCents, req.Currency, company.Currency)
	if err != nil {
		conversionPending = req.Currency != company.Currency
		s.log.Warn().Err(err).
			Str("from", req.Currency).
			Str("to", company.Currency).
			Msg("Currency conversion unavailable; comparing raw amount")
	} else {
		convertedCents = &converted
		comparableCents = converted
	}

	rules, err := s.store.Rules().ListActive(ctx, employee.CompanyID)
	if err != nil {
		return nil, err
	}

	rule := approval.SelectRule(comparableCents, req.Category, rules)
	if rule != nil {
		if err := approval.ValidateRuleShape(rule); err != nil {
			return nil, err
		}
	}

	steps, err := approval.InstantiateSteps(rule, employee)
	if err != nil {
		return nil, err
	}

	expense := &repository.Expense{
		EmployeeID:           employee.ID,
		CompanyID:            employee.CompanyID,
		AmountCents:          req.AmountCents,
		Currency:             req.Currency,
		ConvertedAmountCents: convertedCents,
		ConversionPending:    conversionPending,
		Category:             req.Category,
		Description:          req.Description,
		ExpenseDate:          req.ExpenseDate,
		Status:               repository.ExpensePending,
	}
	if rule != nil {
		expense.RuleID = &rule.ID
	}
	if len(steps) > 0 {
		expense.CurrentApprovalStep = 1
	}

	err = s.store.InTx(ctx, func(sess *repository.Session) error {
		if err := sess.Expenses.CreateWithSteps(ctx, expense, steps); err != nil {
			return err
		}
		statusAfter := string(expense.Status)
		return sess.Audit.Append(ctx, &repository.AuditEntry{
			ExpenseID:          expense.ID,
			CompanyID:          expense.CompanyID,
			Action:             "submitted",
			PerformedBy:        employee.ID,
			ExpenseStatusAfter: &statusAfter,
			Metadata: map[string]interface{}{
				"rule_id":                ruleIDOrEmpty(rule),
				"total_steps":            len(steps),
				"conversion_unavailable": conversionPending,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("expense_id", expense.ID).
		Str("employee_id", employee.ID).
		Int("total_steps", len(steps)).
		Str("rule_id", ruleIDOrEmpty(rule)).
		Msg("Expense submitted")

	s.notifier.PublishExpenseEvent(EventExpenseSubmitted, expense.ID, expense.CompanyID, employee.ID,
		[]string{employee.ID}, map[string]interface{}{"amount_cents": expense.AmountCents})
	for _, step := range steps {
		if step.Status == repository.StepPending {
			s.notifier.PublishExpenseEvent(EventApprovalRequired, expense.ID, expense.CompanyID, employee.ID,
				[]string{step.ApproverID}, map[string]interface{}{"step_order": step.StepOrder})
		}
	}

	return &SubmitExpenseResult{
		Expense:               expense,
		Steps:                 steps,
		ConversionUnavailable: conversionPending,
	}, nil
}

// GetExpense returns an expense with its steps.
func (s *ExpenseService) GetExpense(ctx context.Context, id string) (*repository.Expense, []*repository.ApprovalStep, error) {
	expense, err := s.store.Expenses().GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	steps, err := s.store.Steps().GetByExpenseID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return expense, steps, nil
}

// ListByEmployee returns an employee's expenses, newest first.
func (s *ExpenseService) ListByEmployee(ctx context.Context, employeeID string) ([]*repository.Expense, error) {
	return s.store.Expenses().ListByEmployee(ctx, employeeID)
}

// DeleteExpense removes a pending expense and its steps. Deletion is only
// permitted while the expense is pending and no step has progressed.
func (s *ExpenseService) DeleteExpense(ctx context.Context, expenseID, actorID string) error {
	return s.store.InTx(ctx, func(sess *repository.Session) error {
		expense, err := sess.Expenses.GetForUpdate(ctx, expenseID)
		if err != nil {
			return err
		}
		if expense.Status != repository.ExpensePending {
			return apperrors.Conflict("only pending expenses can be deleted")
		}
		if expense.EmployeeID != actorID {
			return apperrors.Unauthorized("only the submitter can delete an expense")
		}

		steps, err := sess.Steps.GetByExpenseID(ctx, expenseID)
		if err != nil {
			return err
		}
		for _, step := range steps {
			if step.Status.Terminal() {
				return apperrors.Conflict("workflow has progressed; expense can no longer be deleted")
			}
		}

		if err := sess.Steps.DeleteByExpenseID(ctx, expenseID); err != nil {
			return err
		}
		if err := sess.Expenses.Delete(ctx, expenseID); err != nil {
			return err
		}

		statusBefore := string(expense.Status)
		return sess.Audit.Append(ctx, &repository.AuditEntry{
			ExpenseID:           expenseID,
			CompanyID:           expense.CompanyID,
			Action:              "deleted",
			PerformedBy:         actorID,
			ExpenseStatusBefore: &statusBefore,
		})
	})
}

// ApprovalHistory returns the audit trail for an expense, oldest first.
func (s *ExpenseService) ApprovalHistory(ctx context.Context, expenseID string) ([]*repository.AuditEntry, error) {
	return s.store.Audit().GetByExpenseID(ctx, expenseID)
}

func ruleIDOrEmpty(rule *repository.ApprovalRule) string {
	if rule == nil {
		return ""
	}
	return rule.ID
}
