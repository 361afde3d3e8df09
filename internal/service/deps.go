package service

import (
	"context"

	"github.com/fintra-io/be-expenses/internal/repository"
)

// Store is the persistence handle the services run on. Implemented by
// repository.Store; tests substitute in-memory fakes.
type Store interface {
	// InTx runs fn inside one transaction. Everything read and written
	// through the session is a single atomic unit.
	InTx(ctx context.Context, fn func(sess *repository.Session) error) error

	Expenses() repository.ExpenseStore
	Steps() repository.StepStore
	Rules() repository.RuleStore
	Audit() repository.AuditStore
	Users() repository.UserStore
	Companies() repository.CompanyStore
}

// CurrencyConverter is the external rate-lookup collaborator. A failed
// lookup returns client.ErrConversionUnavailable and the engine degrades
// to the unconverted amount.
type CurrencyConverter interface {
	Convert(ctx context.Context, amountCents int64, from, to string) (int64, error)
}

// Notifier publishes workflow events. Implementations must be non-fatal:
// a failed publish never interrupts an approval operation.
type Notifier interface {
	PublishExpenseEvent(eventType, expenseID, companyID, actorID string, recipients []string, payload map[string]interface{})
}

// Notification event types.
const (
	EventExpenseSubmitted = "expense_submitted"
	EventApprovalRequired = "approval_required"
	EventExpenseApproved  = "expense_approved"
	EventExpenseRejected  = "expense_rejected"
)
