package approval

import (
	"fmt"
	"strings"
	"time"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/repository"
)

// Decision is an approver's verdict on a single step.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a wire-level decision string.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), nil
	}
	return "", apperrors.InvalidInput("decision", "must be approve or reject")
}

// stepStatus maps a decision to the step's terminal status.
func (d Decision) stepStatus() repository.StepStatus {
	if d == DecisionReject {
		return repository.StepRejected
	}
	return repository.StepApproved
}

// ApplyAction validates and applies one approver action to one step,
// mutating it in memory. It enforces actor and status preconditions only;
// inspecting sibling steps and the rule is the resolver's job.
func ApplyAction(step *repository.ApprovalStep, actorID string, decision Decision, comments string, now time.Time) error {
	if actorID != step.ApproverID {
		return apperrors.Unauthorized(
			fmt.Sprintf("user %q is not the approver for step %d", actorID, step.StepOrder))
	}
	if step.Status != repository.StepPending {
		// Covers double submission, acting on a waiting step, and acting
		// after the step already reached a terminal status.
		return apperrors.Conflict(
			fmt.Sprintf("step %d is not pending (status: %s)", step.StepOrder, step.Status))
	}
	if decision == DecisionReject && strings.TrimSpace(comments) == "" {
		return apperrors.InvalidInput("comments", "rejection requires a justification")
	}

	step.Status = decision.stepStatus()
	step.ActionTakenAt = &now
	if comments != "" {
		step.Comments = &comments
	}
	return nil
}
