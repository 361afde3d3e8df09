package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/database"
)

// ApprovalRulesRepository handles CRUD for approval_rules.
type ApprovalRulesRepository struct {
	db database.Querier
}

// NewApprovalRulesRepository creates a new ApprovalRulesRepository.
func NewApprovalRulesRepository(db database.Querier) *ApprovalRulesRepository {
	return &ApprovalRulesRepository{db: db}
}

const ruleColumns = `
	id, company_id, rule_name, rule_type, is_active,
	min_amount_cents, max_amount_cents, category,
	approval_sequence, conditions, priority,
	created_at, updated_at
`

// Create inserts a new approval rule.
func (r *ApprovalRulesRepository) Create(ctx context.Context, rule *ApprovalRule) error {
	seqJSON, condJSON, err := marshalRulePayload(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO approval_rules
		    (company_id, rule_name, rule_type, is_active,
		     min_amount_cents, max_amount_cents, category,
		     approval_sequence, conditions, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		rule.CompanyID,
		rule.Name,
		rule.RuleType,
		rule.IsActive,
		rule.MinAmountCents,
		rule.MaxAmountCents,
		rule.Category,
		seqJSON,
		condJSON,
		rule.Priority,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

// GetByID retrieves a rule by primary key, scoped by company.
func (r *ApprovalRulesRepository) GetByID(ctx context.Context, id, companyID string) (*ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approval_rules WHERE id = $1 AND company_id = $2`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("approval_rule", id)
	}
	return rule, err
}

// ListActive returns a company's active rules in evaluation order
// (priority ascending, name as tiebreak). The returned order is the
// order the rule selector evaluates.
func (r *ApprovalRulesRepository) ListActive(ctx context.Context, companyID string) ([]*ApprovalRule, error) {
	return r.list(ctx, companyID, true)
}

// List returns all rules for a company.
func (r *ApprovalRulesRepository) List(ctx context.Context, companyID string) ([]*ApprovalRule, error) {
	return r.list(ctx, companyID, false)
}

func (r *ApprovalRulesRepository) list(ctx context.Context, companyID string, activeOnly bool) ([]*ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approval_rules WHERE company_id = $1`
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY priority ASC, rule_name ASC"

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to list approval rules")
	}
	defer rows.Close()

	var rules []*ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan approval rule")
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Update persists changes to an existing rule. In-flight workflow
// instances are unaffected: their steps were materialized at submission.
func (r *ApprovalRulesRepository) Update(ctx context.Context, rule *ApprovalRule) error {
	seqJSON, condJSON, err := marshalRulePayload(rule)
	if err != nil {
		return err
	}

	query := `
		UPDATE approval_rules
		SET rule_name         = $3,
		    rule_type         = $4,
		    is_active         = $5,
		    min_amount_cents  = $6,
		    max_amount_cents  = $7,
		    category          = $8,
		    approval_sequence = $9,
		    conditions        = $10,
		    priority          = $11,
		    updated_at        = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING updated_at
	`

	err = r.db.QueryRow(ctx, query,
		rule.ID,
		rule.CompanyID,
		rule.Name,
		rule.RuleType,
		rule.IsActive,
		rule.MinAmountCents,
		rule.MaxAmountCents,
		rule.Category,
		seqJSON,
		condJSON,
		rule.Priority,
	).Scan(&rule.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("approval_rule", rule.ID)
	}
	return err
}

// Delete removes an approval rule. Rules bound to any expense are kept:
// in-flight and historical workflows resolve against the rule they bound
// at submission.
func (r *ApprovalRulesRepository) Delete(ctx context.Context, id, companyID string) error {
	query := `
		DELETE FROM approval_rules
		WHERE id = $1 AND company_id = $2
		  AND NOT EXISTS (SELECT 1 FROM expenses WHERE rule_id = $1)
	`

	tag, err := r.db.Exec(ctx, query, id, companyID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete approval rule")
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id, companyID); getErr == nil {
			return apperrors.Conflict("rule is referenced by existing expenses")
		}
		return apperrors.NotFound("approval_rule", id)
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

func marshalRulePayload(rule *ApprovalRule) (seqJSON, condJSON []byte, err error) {
	seqJSON, err = json.Marshal(rule.ApprovalSequence)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to marshal approval sequence")
	}
	if rule.Conditions != nil {
		condJSON, err = json.Marshal(rule.Conditions)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to marshal rule conditions")
		}
	}
	return seqJSON, condJSON, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*ApprovalRule, error) {
	rule := &ApprovalRule{}
	var seqJSON, condJSON []byte

	err := row.Scan(
		&rule.ID,
		&rule.CompanyID,
		&rule.Name,
		&rule.RuleType,
		&rule.IsActive,
		&rule.MinAmountCents,
		&rule.MaxAmountCents,
		&rule.Category,
		&seqJSON,
		&condJSON,
		&rule.Priority,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(seqJSON, &rule.ApprovalSequence); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to unmarshal approval sequence")
	}
	if condJSON != nil {
		rule.Conditions = &ConditionSpec{}
		if err := json.Unmarshal(condJSON, rule.Conditions); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to unmarshal rule conditions")
		}
	}
	return rule, nil
}
