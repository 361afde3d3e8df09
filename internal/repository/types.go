package repository

import "time"

// ── Domain types for the expense approval workflow ───────────────────────────

// RuleType determines how an expense's approval steps are gated and resolved.
type RuleType string

const (
	RuleSequential  RuleType = "sequential"
	RuleConditional RuleType = "conditional"
	RuleHybrid      RuleType = "hybrid"
)

// ConditionOperator scopes the specific-approvers clause of a ConditionSpec.
type ConditionOperator string

const (
	OperatorAnd ConditionOperator = "AND"
	OperatorOr  ConditionOperator = "OR"
)

// ConditionSpec is a conditional gate: either clause being satisfied
// resolves the expense. The Operator applies only to SpecificApprovers.
type ConditionSpec struct {
	PercentageThreshold *int              `json:"percentage_threshold,omitempty"` // 0-100, inclusive
	SpecificApprovers   []string          `json:"specific_approvers,omitempty"`
	Operator            ConditionOperator `json:"operator,omitempty"` // defaults to AND
}

// ApprovalRule is a company-scoped policy selecting the approvers and gates
// for expenses matching its amount/category filters. Rules are read-only
// during evaluation; edits apply only to future expenses.
type ApprovalRule struct {
	ID               string         `json:"id"`
	CompanyID        string         `json:"company_id"`
	Name             string         `json:"name"`
	RuleType         RuleType       `json:"rule_type"`
	ApprovalSequence []string       `json:"approval_sequence,omitempty"` // ordered approver ids; required for sequential/hybrid
	Conditions       *ConditionSpec `json:"conditions,omitempty"`        // required for conditional/hybrid
	MinAmountCents   *int64         `json:"min_amount_cents,omitempty"`  // company currency; nil = no lower bound
	MaxAmountCents   *int64         `json:"max_amount_cents,omitempty"`  // company currency; nil = no upper bound (inclusive)
	Category         *string        `json:"category,omitempty"`          // optional exact match
	Priority         int            `json:"priority"`                    // lower = evaluated first
	IsActive         bool           `json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// StepStatus is the lifecycle state of one approval step.
type StepStatus string

const (
	StepWaiting  StepStatus = "waiting" // not yet eligible to act (sequential gating)
	StepPending  StepStatus = "pending" // awaiting this approver's decision
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
)

// Terminal reports whether the step can no longer change.
func (s StepStatus) Terminal() bool {
	return s == StepApproved || s == StepRejected
}

// ApprovalStep is one approver's slot within an expense's workflow instance.
type ApprovalStep struct {
	ID            string     `json:"id"`
	ExpenseID     string     `json:"expense_id"`
	ApproverID    string     `json:"approver_id"`
	StepOrder     int        `json:"step_order"` // 1-based, unique and contiguous per expense
	Status        StepStatus `json:"status"`
	Comments      *string    `json:"comments,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ActionTakenAt *time.Time `json:"action_taken_at,omitempty"`
}

// ExpenseStatus is the lifecycle state of an expense.
type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
)

// Terminal reports whether the expense has reached a final outcome.
func (s ExpenseStatus) Terminal() bool {
	return s == ExpenseApproved || s == ExpenseRejected
}

// Expense is a submitted expense moving through zero or more approval steps.
// Amounts are in minor units (cents).
type Expense struct {
	ID                   string        `json:"id"`
	EmployeeID           string        `json:"employee_id"`
	CompanyID            string        `json:"company_id"`
	RuleID               *string       `json:"rule_id,omitempty"` // rule bound at creation; nil = fallback manager workflow
	AmountCents          int64         `json:"amount_cents"`
	Currency             string        `json:"currency"`
	ConvertedAmountCents *int64        `json:"converted_amount_cents,omitempty"` // company-currency amount, computed once at submission
	ConversionPending    bool          `json:"conversion_pending,omitempty"`     // rate lookup failed; thresholds compared on raw amount
	Category             string        `json:"category"`
	Description          string        `json:"description"`
	ExpenseDate          time.Time     `json:"expense_date"`
	Status               ExpenseStatus `json:"status"`
	CurrentApprovalStep  int           `json:"current_approval_step"` // stepOrder currently active, 0 if none
	Version              int           `json:"version"`               // optimistic concurrency check
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// User is the authenticated-actor record supplied by the identity layer.
// The engine trusts this input and never mutates it.
type User struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	Role              string  `json:"role"`
	CompanyID         string  `json:"company_id"`
	ManagerID         *string `json:"manager_id,omitempty"`
	IsManagerApprover bool    `json:"is_manager_approver"`
}

// Company holds the reporting currency rule thresholds are declared in.
type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

// AuditEntry is one immutable record in the approval audit log.
type AuditEntry struct {
	ID                  string                 `json:"id"`
	ExpenseID           string                 `json:"expense_id"`
	StepID              *string                `json:"step_id,omitempty"`
	CompanyID           string                 `json:"company_id"`
	Action              string                 `json:"action"` // submitted | approved | rejected | deleted
	PerformedBy         string                 `json:"performed_by"`
	PerformedAt         time.Time              `json:"performed_at"`
	ExpenseStatusBefore *string                `json:"expense_status_before,omitempty"`
	ExpenseStatusAfter  *string                `json:"expense_status_after,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}
