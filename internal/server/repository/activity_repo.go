package repository

import (
	"database/sql"
	"fmt"

	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"go.uber.org/zap"
)

// ActivityRepository handles the append-only audit trail. Entries are
// only ever inserted and read.
type ActivityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB, logger *zap.Logger) *ActivityRepository {
	return &ActivityRepository{db: db, logger: logger}
}

// Append records one audit entry within tx
func (r *ActivityRepository) Append(tx *sql.Tx, activity *entity.Activity) error {
	query := `
		INSERT INTO activities (id, invoice_id, action, performed_by, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		activity.ID, activity.InvoiceID, activity.Action,
		activity.PerformedBy, activity.Metadata, activity.Timestamp)
	if err != nil {
		r.logger.Error("Failed to append activity", zap.Error(err))
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// ListByInvoice returns an invoice's audit trail, oldest first
func (r *ActivityRepository) ListByInvoice(invoiceID string) ([]entity.Activity, error) {
	rows, err := r.db.Query(`
		SELECT id, invoice_id, action, performed_by, metadata, timestamp
		FROM activities
		WHERE invoice_id = ?
		ORDER BY timestamp, id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []entity.Activity{}
	for rows.Next() {
		var a entity.Activity
		if err := rows.Scan(
			&a.ID, &a.InvoiceID, &a.Action, &a.PerformedBy, &a.Metadata, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
