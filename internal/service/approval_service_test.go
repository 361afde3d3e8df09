package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/approval"
	"github.com/fintra-io/be-expenses/internal/repository"
)

func TestAct_SequentialFlowRunsToApproval(t *testing.T) {
	env := newTestEnv()
	env.addSequentialRule(t, "three-stage", []string{"mgr-1", "fin-1", "dir-1"}, nil, nil, 10)

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)
	steps := submitted.Steps

	result, err := env.approval.Act(context.Background(), steps[0].ID, "mgr-1", approval.DecisionApprove, "ok")
	require.NoError(t, err)
	assert.Equal(t, repository.ExpensePending, result.Expense.Status)
	assert.Equal(t, 2, result.Expense.CurrentApprovalStep)

	pending, err := env.approval.PendingApprovals(context.Background(), "fin-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, steps[1].ID, pending[0].ID)

	_, err = env.approval.Act(context.Background(), steps[1].ID, "fin-1", approval.DecisionApprove, "")
	require.NoError(t, err)

	result, err = env.approval.Act(context.Background(), steps[2].ID, "dir-1", approval.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, repository.ExpenseApproved, result.Expense.Status)

	// One approval_required per activation plus the terminal event.
	assert.Contains(t, env.notifier.events, "expense_approved")

	history, err := env.expenses.ApprovalHistory(context.Background(), result.Expense.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4) // submitted + three approvals
}

func TestAct_RejectionIsImmediatelyTerminal(t *testing.T) {
	env := newTestEnv()
	env.addSequentialRule(t, "three-stage", []string{"mgr-1", "fin-1", "dir-1"}, nil, nil, 10)

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)
	steps := submitted.Steps

	_, err = env.approval.Act(context.Background(), steps[0].ID, "mgr-1", approval.DecisionApprove, "")
	require.NoError(t, err)

	result, err := env.approval.Act(context.Background(), steps[1].ID, "fin-1", approval.DecisionReject, "missing receipt")
	require.NoError(t, err)
	assert.Equal(t, repository.ExpenseRejected, result.Expense.Status)
	assert.Equal(t, 0, result.Expense.CurrentApprovalStep)
	assert.Contains(t, env.notifier.events, "expense_rejected")

	// The remaining step never becomes actionable.
	pending, err := env.approval.PendingApprovals(context.Background(), "dir-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAct_SecondActionOnSameStepConflicts(t *testing.T) {
	env := newTestEnv()
	env.addSequentialRule(t, "two-stage", []string{"mgr-1", "fin-1"}, nil, nil, 10)

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)
	stepID := submitted.Steps[0].ID

	_, err = env.approval.Act(context.Background(), stepID, "mgr-1", approval.DecisionApprove, "")
	require.NoError(t, err)

	_, err = env.approval.Act(context.Background(), stepID, "mgr-1", approval.DecisionApprove, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestAct_TerminalExpenseConflicts(t *testing.T) {
	env := newTestEnv()
	env.addSequentialRule(t, "one-stage", []string{"mgr-1"}, nil, nil, 10)

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)
	stepID := submitted.Steps[0].ID

	_, err = env.approval.Act(context.Background(), stepID, "mgr-1", approval.DecisionApprove, "")
	require.NoError(t, err)

	_, err = env.approval.Act(context.Background(), stepID, "mgr-1", approval.DecisionReject, "changed my mind")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestAct_WaitingStepIsNotActionable(t *testing.T) {
	env := newTestEnv()
	env.addSequentialRule(t, "two-stage", []string{"mgr-1", "fin-1"}, nil, nil, 10)

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)

	_, err = env.approval.Act(context.Background(), submitted.Steps[1].ID, "fin-1", approval.DecisionApprove, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestAct_WrongActorIsUnauthorized(t *testing.T) {
	env := newTestEnv()
	env.addSequentialRule(t, "one-stage", []string{"mgr-1"}, nil, nil, 10)

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)

	_, err = env.approval.Act(context.Background(), submitted.Steps[0].ID, "fin-1", approval.DecisionApprove, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestAct_RejectWithoutCommentsIsInvalid(t *testing.T) {
	env := newTestEnv()
	env.addSequentialRule(t, "one-stage", []string{"mgr-1"}, nil, nil, 10)

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)

	_, err = env.approval.Act(context.Background(), submitted.Steps[0].ID, "mgr-1", approval.DecisionReject, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	// The step stays actionable after the failed attempt.
	pending, err := env.approval.PendingApprovals(context.Background(), "mgr-1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAct_ConditionalPercentageResolvesWithStepsOutstanding(t *testing.T) {
	env := newTestEnv()
	threshold := 60
	rule := &repository.ApprovalRule{
		CompanyID: "co-1",
		Name:      "committee",
		RuleType:  repository.RuleConditional,
		Conditions: &repository.ConditionSpec{
			PercentageThreshold: &threshold,
			SpecificApprovers:   []string{"mgr-1", "fin-1", "dir-1"},
		},
		Priority: 10,
		IsActive: true,
	}
	require.NoError(t, env.rules.CreateRule(context.Background(), rule))

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)
	steps := submitted.Steps
	require.Len(t, steps, 3)
	for _, step := range steps {
		assert.Equal(t, repository.StepPending, step.Status)
	}

	_, err = env.approval.Act(context.Background(), steps[0].ID, "mgr-1", approval.DecisionApprove, "")
	require.NoError(t, err)

	// 2 of 3 approved crosses 60%; the third step is left pending but the
	// expense is final.
	result, err := env.approval.Act(context.Background(), steps[1].ID, "fin-1", approval.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, repository.ExpenseApproved, result.Expense.Status)

	_, err = env.approval.Act(context.Background(), steps[2].ID, "dir-1", approval.DecisionApprove, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestAct_HybridConditionShortCircuitsRemainingSequence(t *testing.T) {
	env := newTestEnv()
	threshold := 50
	rule := &repository.ApprovalRule{
		CompanyID:        "co-1",
		Name:             "staged-committee",
		RuleType:         repository.RuleHybrid,
		ApprovalSequence: []string{"mgr-1", "fin-1", "dir-1", "ceo-1"},
		Conditions:       &repository.ConditionSpec{PercentageThreshold: &threshold},
		Priority:         10,
		IsActive:         true,
	}
	require.NoError(t, env.rules.CreateRule(context.Background(), rule))

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)
	steps := submitted.Steps
	require.Len(t, steps, 4)

	_, err = env.approval.Act(context.Background(), steps[0].ID, "mgr-1", approval.DecisionApprove, "")
	require.NoError(t, err)

	// 2 of 4 approved meets 50%; the workflow resolves without activating
	// the remaining steps.
	result, err := env.approval.Act(context.Background(), steps[1].ID, "fin-1", approval.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, repository.ExpenseApproved, result.Expense.Status)

	pending, err := env.approval.PendingApprovals(context.Background(), "dir-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAct_VersionMismatchSurfacesConcurrentModification(t *testing.T) {
	env := newTestEnv()
	env.addSequentialRule(t, "one-stage", []string{"mgr-1"}, nil, nil, 10)

	submitted, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)

	// Interleave a concurrent writer between the locked read and the
	// version-checked update.
	env.store.onGetForUpdate = func() {
		env.store.expenses[submitted.Expense.ID].Version++
	}

	_, err = env.approval.Act(context.Background(), submitted.Steps[0].ID, "mgr-1", approval.DecisionApprove, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification))
}
