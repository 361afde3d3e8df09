package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/fintra-io/be-expenses/internal/approval"
	"github.com/fintra-io/be-expenses/internal/repository"
)

// RuleService manages approval rules. Rule shape is validated at
// authoring time, so evaluation never encounters a malformed rule that
// was created through this service.
type RuleService struct {
	store Store
	log   zerolog.Logger
}

// NewRuleService creates a new RuleService.
func NewRuleService(store Store, log zerolog.Logger) *RuleService {
	return &RuleService{store: store, log: log}
}

// CreateRule validates and persists a new rule.
func (s *RuleService) CreateRule(ctx context.Context, rule *repository.ApprovalRule) error {
	if err := approval.ValidateRuleShape(rule); err != nil {
		return err
	}
	if err := s.store.Rules().Create(ctx, rule); err != nil {
		return err
	}

	s.log.Info().
		Str("rule_id", rule.ID).
		Str("company_id", rule.CompanyID).
		Str("rule_type", string(rule.RuleType)).
		Msg("Approval rule created")
	return nil
}

// GetRule returns one rule.
func (s *RuleService) GetRule(ctx context.Context, id, companyID string) (*repository.ApprovalRule, error) {
	return s.store.Rules().GetByID(ctx, id, companyID)
}

// ListRules returns all of a company's rules in evaluation order.
func (s *RuleService) ListRules(ctx context.Context, companyID string) ([]*repository.ApprovalRule, error) {
	return s.store.Rules().List(ctx, companyID)
}

// UpdateRule validates and persists changes to a rule. In-flight
// workflows keep the steps materialized at submission; the edit applies
// only to future expenses.
func (s *RuleService) UpdateRule(ctx context.Context, rule *repository.ApprovalRule) error {
	if err := approval.ValidateRuleShape(rule); err != nil {
		return err
	}
	return s.store.Rules().Update(ctx, rule)
}

// DeleteRule removes a rule. Expenses that already bound it keep their
// materialized steps and resolve normally.
func (s *RuleService) DeleteRule(ctx context.Context, id, companyID string) error {
	return s.store.Rules().Delete(ctx, id, companyID)
}
