// Package approval contains the pure decision logic of the expense
// approval workflow: rule selection, step instantiation, the per-action
// step state machine, condition evaluation and expense resolution.
// Nothing in this package touches storage; callers load and persist.
package approval

import (
	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/repository"
)

// SelectRule picks the applicable rule for an expense from a company's
// active rules. Rules must arrive in evaluation order (priority ascending);
// the first rule whose filters all pass wins. Returns nil when no rule
// matches.
//
// amountCents is the expense amount in the currency the rule thresholds
// are declared in (company currency when a conversion was available, the
// raw amount otherwise).
func SelectRule(amountCents int64, category string, rules []*repository.ApprovalRule) *repository.ApprovalRule {
	for _, rule := range rules {
		if ruleMatches(rule, amountCents, category) {
			return rule
		}
	}
	return nil
}

// ruleMatches returns true when all of the rule's filters pass. Bounds are
// inclusive on both ends.
func ruleMatches(rule *repository.ApprovalRule, amountCents int64, category string) bool {
	if rule.MinAmountCents != nil && amountCents < *rule.MinAmountCents {
		return false
	}
	if rule.MaxAmountCents != nil && amountCents > *rule.MaxAmountCents {
		return false
	}
	if rule.Category != nil && *rule.Category != category {
		return false
	}
	return true
}

// ValidateRuleShape rejects structurally malformed rules: sequential and
// hybrid rules need a non-empty approval sequence, conditional and hybrid
// rules need at least one usable condition clause. Run at rule-creation
// time and again when a rule is bound at submission.
func ValidateRuleShape(rule *repository.ApprovalRule) error {
	switch rule.RuleType {
	case repository.RuleSequential, repository.RuleConditional, repository.RuleHybrid:
	default:
		return apperrors.InvalidInput("rule_type", "must be sequential, conditional or hybrid")
	}

	needsSequence := rule.RuleType == repository.RuleSequential || rule.RuleType == repository.RuleHybrid
	if needsSequence && len(rule.ApprovalSequence) == 0 {
		return apperrors.InvalidInput("approval_sequence",
			"sequential and hybrid rules require at least one approver")
	}

	needsConditions := rule.RuleType == repository.RuleConditional || rule.RuleType == repository.RuleHybrid
	if needsConditions {
		if rule.Conditions == nil {
			return apperrors.InvalidInput("conditions",
				"conditional and hybrid rules require a conditions clause")
		}
		if rule.Conditions.PercentageThreshold == nil && len(rule.Conditions.SpecificApprovers) == 0 {
			return apperrors.InvalidInput("conditions",
				"conditions require a percentage threshold or specific approvers")
		}
		// Conditional steps are materialized from the specific-approver
		// list, so a purely percentage-based conditional rule would
		// instantiate an empty workflow that can never resolve.
		if rule.RuleType == repository.RuleConditional && len(rule.Conditions.SpecificApprovers) == 0 {
			return apperrors.InvalidInput("specific_approvers",
				"conditional rules require at least one listed approver")
		}
	}

	if rule.Conditions != nil {
		if t := rule.Conditions.PercentageThreshold; t != nil && (*t < 0 || *t > 100) {
			return apperrors.InvalidInput("percentage_threshold", "must be between 0 and 100")
		}
		switch rule.Conditions.Operator {
		case "", repository.OperatorAnd, repository.OperatorOr:
		default:
			return apperrors.InvalidInput("operator", "must be AND or OR")
		}
	}

	if rule.MinAmountCents != nil && rule.MaxAmountCents != nil && *rule.MinAmountCents > *rule.MaxAmountCents {
		return apperrors.InvalidInput("min_amount", "lower bound exceeds upper bound")
	}

	return nil
}
