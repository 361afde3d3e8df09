package approval

import (
	"github.com/fintra-io/be-expenses/internal/repository"
)

// ConditionsSatisfied evaluates a conditional gate against the full set of
// steps created for an expense. The two clauses are independent
// satisfaction paths: either one passing resolves the gate. The Operator
// field scopes only the specific-approvers clause.
//
// A nil spec is never satisfied by this route; the caller falls back to
// "all steps approved".
func ConditionsSatisfied(spec *repository.ConditionSpec, steps []*repository.ApprovalStep) bool {
	if spec == nil {
		return false
	}

	if spec.PercentageThreshold != nil && percentageSatisfied(*spec.PercentageThreshold, steps) {
		return true
	}
	if len(spec.SpecificApprovers) > 0 && specificApproversSatisfied(spec, steps) {
		return true
	}
	return false
}

// percentageSatisfied checks approvedCount/totalSteps against the
// threshold, inclusive. The denominator is every step created for the
// expense, not just steps held by listed approvers.
func percentageSatisfied(threshold int, steps []*repository.ApprovalStep) bool {
	if len(steps) == 0 {
		return false
	}
	approved := 0
	for _, s := range steps {
		if s.Status == repository.StepApproved {
			approved++
		}
	}
	return approved*100 >= threshold*len(steps)
}

func specificApproversSatisfied(spec *repository.ConditionSpec, steps []*repository.ApprovalStep) bool {
	approvedBy := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s.Status == repository.StepApproved {
			approvedBy[s.ApproverID] = true
		}
	}

	if spec.Operator == repository.OperatorOr {
		for _, id := range spec.SpecificApprovers {
			if approvedBy[id] {
				return true
			}
		}
		return false
	}

	// AND (or operator absent): every listed approver must have approved.
	for _, id := range spec.SpecificApprovers {
		if !approvedBy[id] {
			return false
		}
	}
	return true
}
