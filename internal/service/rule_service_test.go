package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/repository"
)

func TestCreateRule_RejectsMalformedRules(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	err := env.rules.CreateRule(ctx, &repository.ApprovalRule{
		CompanyID: "co-1",
		Name:      "no-sequence",
		RuleType:  repository.RuleSequential,
		IsActive:  true,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	err = env.rules.CreateRule(ctx, &repository.ApprovalRule{
		CompanyID:  "co-1",
		Name:       "no-conditions",
		RuleType:   repository.RuleConditional,
		Conditions: &repository.ConditionSpec{},
		IsActive:   true,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestListRules_EvaluationOrder(t *testing.T) {
	env := newTestEnv()
	env.addSequentialRule(t, "b-second", []string{"mgr-1"}, nil, nil, 20)
	env.addSequentialRule(t, "a-first", []string{"mgr-1"}, nil, nil, 10)

	rules, err := env.rules.ListRules(context.Background(), "co-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "a-first", rules[0].Name)
	assert.Equal(t, "b-second", rules[1].Name)
}

func TestDeleteRule_RefusedWhileReferenced(t *testing.T) {
	env := newTestEnv()
	rule := env.addSequentialRule(t, "standard", []string{"mgr-1"}, nil, nil, 10)

	_, err := env.expenses.SubmitExpense(context.Background(), submitReq(12500, "USD"))
	require.NoError(t, err)

	err = env.rules.DeleteRule(context.Background(), rule.ID, "co-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestDeleteRule_UnreferencedRuleIsRemoved(t *testing.T) {
	env := newTestEnv()
	rule := env.addSequentialRule(t, "standard", []string{"mgr-1"}, nil, nil, 10)

	require.NoError(t, env.rules.DeleteRule(context.Background(), rule.ID, "co-1"))

	_, err := env.rules.GetRule(context.Background(), rule.ID, "co-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
