package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/database"
)

// ApprovalAuditRepository appends and reads immutable approval audit log
// entries. Append is the only mutation exposed.
type ApprovalAuditRepository struct {
	db database.Querier
}

// NewApprovalAuditRepository creates a new ApprovalAuditRepository.
func NewApprovalAuditRepository(db database.Querier) *ApprovalAuditRepository {
	return &ApprovalAuditRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ApprovalAuditRepository) WithTx(tx pgx.Tx) *ApprovalAuditRepository {
	return &ApprovalAuditRepository{db: tx}
}

// Append inserts one audit entry.
func (r *ApprovalAuditRepository) Append(ctx context.Context, entry *AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO approval_audit_log
		    (expense_id, step_id, company_id,
		     action, performed_by,
		     expense_status_before, expense_status_after,
		     metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, performed_at
	`

	return r.db.QueryRow(ctx, query,
		entry.ExpenseID,
		entry.StepID,
		entry.CompanyID,
		entry.Action,
		entry.PerformedBy,
		entry.ExpenseStatusBefore,
		entry.ExpenseStatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
}

// GetByExpenseID returns the full audit trail for an expense, oldest first.
func (r *ApprovalAuditRepository) GetByExpenseID(ctx context.Context, expenseID string) ([]*AuditEntry, error) {
	query := `
		SELECT id, expense_id, step_id, company_id,
		       action, performed_by, performed_at,
		       expense_status_before, expense_status_after,
		       metadata
		FROM approval_audit_log
		WHERE expense_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, expenseID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanAuditEntry(row rowScanner) (*AuditEntry, error) {
	entry := &AuditEntry{}
	var metadataJSON []byte

	err := row.Scan(
		&entry.ID,
		&entry.ExpenseID,
		&entry.StepID,
		&entry.CompanyID,
		&entry.Action,
		&entry.PerformedBy,
		&entry.PerformedAt,
		&entry.ExpenseStatusBefore,
		&entry.ExpenseStatusAfter,
		&metadataJSON,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to scan audit entry")
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to unmarshal audit metadata")
		}
	}
	return entry, nil
}
