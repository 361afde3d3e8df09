package approval

import (
	"github.com/fintra-io/be-expenses/internal/repository"
)

// Outcome reports what Resolve changed beyond the expense itself.
type Outcome struct {
	// Activated is the waiting step promoted to pending by a sequential
	// advance, nil when the workflow did not advance.
	Activated *repository.ApprovalStep
}

// Resolve runs after every successfully applied step action and decides
// the fate of the expense: activate the next step, resolve to a terminal
// status, or leave everything pending. It mutates the expense (and at most
// one sibling step) in memory; the caller persists all touched records as
// one atomic unit.
//
// steps must be the complete step set for the expense, and acted must be a
// member of it with its action already applied.
func Resolve(expense *repository.Expense, rule *repository.ApprovalRule, steps []*repository.ApprovalStep, acted *repository.ApprovalStep) Outcome {
	// Any rejection is terminal for the whole expense. No other step is
	// touched and no further evaluation occurs.
	if acted.Status == repository.StepRejected {
		expense.Status = repository.ExpenseRejected
		expense.CurrentApprovalStep = 0
		return Outcome{}
	}

	if rule == nil {
		// Fallback manager-only workflow: approved once every existing
		// step is approved.
		if allApproved(steps) {
			approve(expense)
		}
		return Outcome{}
	}

	switch rule.RuleType {
	case repository.RuleSequential:
		return advanceSequential(expense, steps, acted)

	case repository.RuleConditional:
		if ConditionsSatisfied(rule.Conditions, steps) {
			// Remaining pending steps are moot; any later action on them
			// is rejected because the expense is terminal.
			approve(expense)
		}
		return Outcome{}

	case repository.RuleHybrid:
		// Sequential gate first: every step at or below the acted order
		// must be approved before the conditional clause is consulted.
		if !approvedThrough(steps, acted.StepOrder) {
			return Outcome{}
		}
		if ConditionsSatisfied(rule.Conditions, steps) {
			approve(expense)
			return Outcome{}
		}
		return advanceSequential(expense, steps, acted)
	}

	return Outcome{}
}

// advanceSequential activates the step after the acted one, or approves
// the expense when no later step exists.
func advanceSequential(expense *repository.Expense, steps []*repository.ApprovalStep, acted *repository.ApprovalStep) Outcome {
	next := stepAtOrder(steps, acted.StepOrder+1)
	if next == nil {
		approve(expense)
		return Outcome{}
	}
	next.Status = repository.StepPending
	expense.CurrentApprovalStep = next.StepOrder
	return Outcome{Activated: next}
}

func approve(expense *repository.Expense) {
	expense.Status = repository.ExpenseApproved
	expense.CurrentApprovalStep = 0
}

func stepAtOrder(steps []*repository.ApprovalStep, order int) *repository.ApprovalStep {
	for _, s := range steps {
		if s.StepOrder == order {
			return s
		}
	}
	return nil
}

func allApproved(steps []*repository.ApprovalStep) bool {
	for _, s := range steps {
		if s.Status != repository.StepApproved {
			return false
		}
	}
	return len(steps) > 0
}

// approvedThrough reports whether every step with order <= through is
// approved (no gaps or rejections below that point).
func approvedThrough(steps []*repository.ApprovalStep, through int) bool {
	for _, s := range steps {
		if s.StepOrder <= through && s.Status != repository.StepApproved {
			return false
		}
	}
	return true
}
