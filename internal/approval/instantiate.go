package approval

import (
	"github.com/fintra-io/be-expenses/internal/repository"
)

// InstantiateSteps materializes the approval steps for an expense from the
// selected rule, or from the submitter's manager link when no rule matched.
// The returned drafts have no ids yet; the repository assigns them when the
// expense and its steps are persisted atomically.
//
// Gating:
//   - sequential/hybrid: one step per sequence entry, first pending, the
//     rest waiting.
//   - conditional: one step per listed specific approver, all pending.
//   - no rule + approving manager: a single pending manager step.
//   - no rule + no approving manager: no steps. The expense keeps status
//     pending with no approval gate; the engine never auto-approves here.
func InstantiateSteps(rule *repository.ApprovalRule, submitter *repository.User) ([]*repository.ApprovalStep, error) {
	if rule == nil {
		if submitter.ManagerID != nil && submitter.IsManagerApprover {
			return []*repository.ApprovalStep{{
				ApproverID: *submitter.ManagerID,
				StepOrder:  1,
				Status:     repository.StepPending,
			}}, nil
		}
		return nil, nil
	}

	if err := ValidateRuleShape(rule); err != nil {
		return nil, err
	}

	switch rule.RuleType {
	case repository.RuleSequential, repository.RuleHybrid:
		steps := make([]*repository.ApprovalStep, 0, len(rule.ApprovalSequence))
		for i, approverID := range rule.ApprovalSequence {
			status := repository.StepWaiting
			if i == 0 {
				status = repository.StepPending
			}
			steps = append(steps, &repository.ApprovalStep{
				ApproverID: approverID,
				StepOrder:  i + 1,
				Status:     status,
			})
		}
		return steps, nil

	case repository.RuleConditional:
		// No gating: every listed approver may act in any order.
		steps := make([]*repository.ApprovalStep, 0, len(rule.Conditions.SpecificApprovers))
		for i, approverID := range rule.Conditions.SpecificApprovers {
			steps = append(steps, &repository.ApprovalStep{
				ApproverID: approverID,
				StepOrder:  i + 1,
				Status:     repository.StepPending,
			})
		}
		return steps, nil
	}

	// Unreachable after ValidateRuleShape.
	return nil, nil
}
