package service_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/repository"
)

// memStore is an in-memory implementation of service.Store. It does not
// emulate row locking; the tests drive interleavings explicitly.
type memStore struct {
	expenses  map[string]*repository.Expense
	steps     map[string]*repository.ApprovalStep
	rules     map[string]*repository.ApprovalRule
	audit     []*repository.AuditEntry
	users     map[string]*repository.User
	companies map[string]*repository.Company

	// onGetForUpdate runs after the locked read, before the caller sees the
	// row. Tests use it to interleave a concurrent writer.
	onGetForUpdate func()
}

func newMemStore() *memStore {
	return &memStore{
		expenses:  make(map[string]*repository.Expense),
		steps:     make(map[string]*repository.ApprovalStep),
		rules:     make(map[string]*repository.ApprovalRule),
		users:     make(map[string]*repository.User),
		companies: make(map[string]*repository.Company),
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(sess *repository.Session) error) error {
	return fn(&repository.Session{
		Expenses: m.expenseStore(),
		Steps:    m.stepStore(),
		Rules:    m.ruleStore(),
		Audit:    m.auditStore(),
	})
}

func (m *memStore) Expenses() repository.ExpenseStore  { return m.expenseStore() }
func (m *memStore) Steps() repository.StepStore        { return m.stepStore() }
func (m *memStore) Rules() repository.RuleStore        { return m.ruleStore() }
func (m *memStore) Audit() repository.AuditStore       { return m.auditStore() }
func (m *memStore) Users() repository.UserStore        { return m.userStore() }
func (m *memStore) Companies() repository.CompanyStore { return m.companyStore() }

func (m *memStore) expenseStore() *memExpenses  { return &memExpenses{m} }
func (m *memStore) stepStore() *memSteps        { return &memSteps{m} }
func (m *memStore) ruleStore() *memRules        { return &memRules{m} }
func (m *memStore) auditStore() *memAudit       { return &memAudit{m} }
func (m *memStore) userStore() *memUsers        { return &memUsers{m} }
func (m *memStore) companyStore() *memCompanies { return &memCompanies{m} }

// ── expenses ──────────────────────────────────────────────────────────────────

type memExpenses struct{ m *memStore }

func (s *memExpenses) CreateWithSteps(ctx context.Context, expense *repository.Expense, steps []*repository.ApprovalStep) error {
	expense.ID = uuid.NewString()
	expense.Version = 1
	expense.CreatedAt = time.Now()
	copied := *expense
	s.m.expenses[expense.ID] = &copied

	for _, step := range steps {
		step.ID = uuid.NewString()
		step.ExpenseID = expense.ID
		step.CreatedAt = time.Now()
		copiedStep := *step
		s.m.steps[step.ID] = &copiedStep
	}
	return nil
}

func (s *memExpenses) GetByID(ctx context.Context, id string) (*repository.Expense, error) {
	e, ok := s.m.expenses[id]
	if !ok {
		return nil, apperrors.NotFound("expense", id)
	}
	copied := *e
	return &copied, nil
}

func (s *memExpenses) GetForUpdate(ctx context.Context, id string) (*repository.Expense, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.m.onGetForUpdate != nil {
		s.m.onGetForUpdate()
	}
	return e, nil
}

func (s *memExpenses) ListByEmployee(ctx context.Context, employeeID string) ([]*repository.Expense, error) {
	var out []*repository.Expense
	for _, e := range s.m.expenses {
		if e.EmployeeID == employeeID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memExpenses) UpdateResolution(ctx context.Context, expense *repository.Expense) error {
	stored, ok := s.m.expenses[expense.ID]
	if !ok || stored.Version != expense.Version {
		return apperrors.New(apperrors.CodeConcurrentModification,
			"expense was modified concurrently; re-read and retry")
	}
	stored.Status = expense.Status
	stored.CurrentApprovalStep = expense.CurrentApprovalStep
	stored.Version++
	expense.Version = stored.Version
	return nil
}

func (s *memExpenses) Delete(ctx context.Context, id string) error {
	if _, ok := s.m.expenses[id]; !ok {
		return apperrors.NotFound("expense", id)
	}
	delete(s.m.expenses, id)
	return nil
}

// ── steps ─────────────────────────────────────────────────────────────────────

type memSteps struct{ m *memStore }

func (s *memSteps) GetByID(ctx context.Context, id string) (*repository.ApprovalStep, error) {
	st, ok := s.m.steps[id]
	if !ok {
		return nil, apperrors.NotFound("approval_step", id)
	}
	copied := *st
	return &copied, nil
}

func (s *memSteps) GetByExpenseID(ctx context.Context, expenseID string) ([]*repository.ApprovalStep, error) {
	var out []*repository.ApprovalStep
	for _, st := range s.m.steps {
		if st.ExpenseID == expenseID {
			copied := *st
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

func (s *memSteps) GetPendingForApprover(ctx context.Context, approverID string) ([]*repository.ApprovalStep, error) {
	var out []*repository.ApprovalStep
	for _, st := range s.m.steps {
		expense, ok := s.m.expenses[st.ExpenseID]
		if !ok || expense.Status != repository.ExpensePending {
			continue
		}
		if st.ApproverID == approverID && st.Status == repository.StepPending {
			copied := *st
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memSteps) RecordAction(ctx context.Context, id string, status repository.StepStatus, comments *string) error {
	st, ok := s.m.steps[id]
	if !ok {
		return apperrors.NotFound("approval_step", id)
	}
	now := time.Now()
	st.Status = status
	st.Comments = comments
	st.ActionTakenAt = &now
	return nil
}

func (s *memSteps) Activate(ctx context.Context, id string) error {
	st, ok := s.m.steps[id]
	if !ok {
		return apperrors.NotFound("approval_step", id)
	}
	if st.Status != repository.StepWaiting {
		return apperrors.New(apperrors.CodeConcurrentModification,
			"step is no longer waiting; workflow advanced concurrently")
	}
	st.Status = repository.StepPending
	return nil
}

func (s *memSteps) DeleteByExpenseID(ctx context.Context, expenseID string) error {
	for id, st := range s.m.steps {
		if st.ExpenseID == expenseID {
			delete(s.m.steps, id)
		}
	}
	return nil
}

// ── rules ─────────────────────────────────────────────────────────────────────

type memRules struct{ m *memStore }

func (s *memRules) Create(ctx context.Context, rule *repository.ApprovalRule) error {
	rule.ID = uuid.NewString()
	rule.CreatedAt = time.Now()
	copied := *rule
	s.m.rules[rule.ID] = &copied
	return nil
}

func (s *memRules) GetByID(ctx context.Context, id, companyID string) (*repository.ApprovalRule, error) {
	r, ok := s.m.rules[id]
	if !ok || r.CompanyID != companyID {
		return nil, apperrors.NotFound("approval_rule", id)
	}
	copied := *r
	return &copied, nil
}

func (s *memRules) List(ctx context.Context, companyID string) ([]*repository.ApprovalRule, error) {
	var out []*repository.ApprovalRule
	for _, r := range s.m.rules {
		if r.CompanyID == companyID {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *memRules) ListActive(ctx context.Context, companyID string) ([]*repository.ApprovalRule, error) {
	all, _ := s.List(ctx, companyID)
	var out []*repository.ApprovalRule
	for _, r := range all {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRules) Update(ctx context.Context, rule *repository.ApprovalRule) error {
	if _, ok := s.m.rules[rule.ID]; !ok {
		return apperrors.NotFound("approval_rule", rule.ID)
	}
	copied := *rule
	s.m.rules[rule.ID] = &copied
	return nil
}

func (s *memRules) Delete(ctx context.Context, id, companyID string) error {
	for _, e := range s.m.expenses {
		if e.RuleID != nil && *e.RuleID == id {
			return apperrors.Conflict("rule is referenced by existing expenses")
		}
	}
	if _, ok := s.m.rules[id]; !ok {
		return apperrors.NotFound("approval_rule", id)
	}
	delete(s.m.rules, id)
	return nil
}

// ── audit / users / companies ─────────────────────────────────────────────────

type memAudit struct{ m *memStore }

func (s *memAudit) Append(ctx context.Context, entry *repository.AuditEntry) error {
	entry.ID = uuid.NewString()
	entry.PerformedAt = time.Now()
	copied := *entry
	s.m.audit = append(s.m.audit, &copied)
	return nil
}

func (s *memAudit) GetByExpenseID(ctx context.Context, expenseID string) ([]*repository.AuditEntry, error) {
	var out []*repository.AuditEntry
	for _, e := range s.m.audit {
		if e.ExpenseID == expenseID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memUsers struct{ m *memStore }

func (s *memUsers) GetByID(ctx context.Context, id string) (*repository.User, error) {
	u, ok := s.m.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	return u, nil
}

type memCompanies struct{ m *memStore }

func (s *memCompanies) GetByID(ctx context.Context, id string) (*repository.Company, error) {
	c, ok := s.m.companies[id]
	if !ok {
		return nil, apperrors.NotFound("company", id)
	}
	return c, nil
}

// ── collaborator fakes ────────────────────────────────────────────────────────

// fixedConverter converts using a fixed rate table keyed by "FROM/TO".
type fixedConverter struct {
	rates map[string]float64
	err   error
}

func (c *fixedConverter) Convert(ctx context.Context, amountCents int64, from, to string) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	if from == to {
		return amountCents, nil
	}
	rate, ok := c.rates[fmt.Sprintf("%s/%s", from, to)]
	if !ok {
		return 0, fmt.Errorf("no rate for %s/%s", from, to)
	}
	return int64(float64(amountCents) * rate), nil
}

// recordingNotifier captures published events.
type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) PublishExpenseEvent(eventType, expenseID, companyID, actorID string, recipients []string, payload map[string]interface{}) {
	n.events = append(n.events, eventType)
}
