package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fintra-io/be-expenses/internal/database"
)

// ── store interfaces ─────────────────────────────────────────────────────────
// The services consume these instead of the concrete repositories so they
// can be exercised against in-memory fakes.

// ExpenseStore is the persistence surface for expenses.
type ExpenseStore interface {
	CreateWithSteps(ctx context.Context, expense *Expense, steps []*ApprovalStep) error
	GetByID(ctx context.Context, id string) (*Expense, error)
	GetForUpdate(ctx context.Context, id string) (*Expense, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*Expense, error)
	UpdateResolution(ctx context.Context, expense *Expense) error
	Delete(ctx context.Context, id string) error
}

// StepStore is the persistence surface for approval steps.
type StepStore interface {
	GetByID(ctx context.Context, id string) (*ApprovalStep, error)
	GetByExpenseID(ctx context.Context, expenseID string) ([]*ApprovalStep, error)
	GetPendingForApprover(ctx context.Context, approverID string) ([]*ApprovalStep, error)
	RecordAction(ctx context.Context, id string, status StepStatus, comments *string) error
	Activate(ctx context.Context, id string) error
	DeleteByExpenseID(ctx context.Context, expenseID string) error
}

// RuleStore is the persistence surface for approval rules.
type RuleStore interface {
	Create(ctx context.Context, rule *ApprovalRule) error
	GetByID(ctx context.Context, id, companyID string) (*ApprovalRule, error)
	List(ctx context.Context, companyID string) ([]*ApprovalRule, error)
	ListActive(ctx context.Context, companyID string) ([]*ApprovalRule, error)
	Update(ctx context.Context, rule *ApprovalRule) error
	Delete(ctx context.Context, id, companyID string) error
}

// AuditStore is the persistence surface for the approval audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	GetByExpenseID(ctx context.Context, expenseID string) ([]*AuditEntry, error)
}

// UserStore resolves actor and manager records.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// CompanyStore resolves company records.
type CompanyStore interface {
	GetByID(ctx context.Context, id string) (*Company, error)
}

// ── store ────────────────────────────────────────────────────────────────────

// Session is the repository view inside one transaction. All reads and
// writes through a session form a single atomic unit; any error rolls the
// whole unit back.
type Session struct {
	Expenses ExpenseStore
	Steps    StepStore
	Rules    RuleStore
	Audit    AuditStore
}

// Store bundles the repositories behind one handle and provides the
// transactional sessions the engine's read-modify-write cycles run in.
// One act() or submit() call maps to exactly one transaction.
type Store struct {
	db *database.DB

	expenses  *ExpenseRepository
	steps     *ApprovalStepsRepository
	rules     *ApprovalRulesRepository
	audit     *ApprovalAuditRepository
	users     *UserRepository
	companies *CompanyRepository
}

// NewStore creates a Store over the shared database handle.
func NewStore(db *database.DB) *Store {
	return &Store{
		db:        db,
		expenses:  NewExpenseRepository(db),
		steps:     NewApprovalStepsRepository(db),
		rules:     NewApprovalRulesRepository(db),
		audit:     NewApprovalAuditRepository(db),
		users:     NewUserRepository(db),
		companies: NewCompanyRepository(db),
	}
}

func (s *Store) Expenses() ExpenseStore  { return s.expenses }
func (s *Store) Steps() StepStore        { return s.steps }
func (s *Store) Rules() RuleStore        { return s.rules }
func (s *Store) Audit() AuditStore       { return s.audit }
func (s *Store) Users() UserStore        { return s.users }
func (s *Store) Companies() CompanyStore { return s.companies }

// InTx runs fn inside a transaction, handing it a tx-bound session.
func (s *Store) InTx(ctx context.Context, fn func(sess *Session) error) error {
	return s.db.InTransaction(ctx, func(tx pgx.Tx) error {
		return fn(&Session{
			Expenses: s.expenses.WithTx(tx),
			Steps:    s.steps.WithTx(tx),
			Rules:    NewApprovalRulesRepository(tx),
			Audit:    s.audit.WithTx(tx),
		})
	})
}
