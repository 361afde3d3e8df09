package client

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes approval workflow events to NATS for
// consumption by the notifications service.
//
// Subject convention: notifications.expenses.<event_type>
// Event types: expense_submitted, approval_required, expense_approved,
//              expense_rejected
//
// All publish operations are non-fatal: errors are logged but never
// propagated, so notification failures never interrupt approval
// operations. A nil connection disables publishing entirely.
type NotificationPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType  string                 `json:"event_type"`
	CompanyID  string                 `json:"company_id"`
	ActorID    string                 `json:"actor_id"`
	Recipients []string               `json:"recipients"`
	ExpenseID  string                 `json:"expense_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. nc may be nil, in which case all publishes are no-ops.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nc: nc, log: log}
}

// PublishExpenseEvent publishes one approval event.
func (p *NotificationPublisher) PublishExpenseEvent(eventType, expenseID, companyID, actorID string, recipients []string, payload map[string]interface{}) {
	if p.nc == nil || len(recipients) == 0 {
		return
	}

	event := &NotificationEvent{
		EventType:  eventType,
		CompanyID:  companyID,
		ActorID:    actorID,
		Recipients: recipients,
		ExpenseID:  expenseID,
		Payload:    payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.expenses.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("expense_id", expenseID).
			Msg("notification: failed to publish event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("expense_id", expenseID).
		Int("recipients", len(recipients)).
		Msg("notification: event published")
}
