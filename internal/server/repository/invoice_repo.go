package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"go.uber.org/zap"
)

// ListFilter narrows and orders an invoice list query. Zero values
// mean no constraint.
type ListFilter struct {
	Status    entity.Status
	OwnerID   string
	Search    string
	FromDate  string // YYYY-MM-DD, inclusive
	ToDate    string // YYYY-MM-DD, inclusive
	SortBy    string
	SortOrder string
}

// Columns callers may sort on; anything else falls back to created_at
var sortColumns = map[string]string{
	"createdAt": "i.created_at",
	"updatedAt": "i.updated_at",
	"amount":    "i.amount",
	"status":    "i.status",
}

// InvoiceRepository handles invoice database operations
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{db: db, logger: logger}
}

const invoiceSelect = `
	SELECT i.id, i.amount, i.description, i.vendor_id, v.name,
	       i.status, i.rejection_reason, i.owner_id, u.name,
	       i.created_at, i.updated_at
	FROM invoices i
	JOIN vendors v ON v.id = i.vendor_id
	JOIN users u ON u.id = i.owner_id
`

// Create inserts a new invoice within tx
func (r *InvoiceRepository) Create(tx *sql.Tx, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (id, amount, description, vendor_id, status, rejection_reason, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		invoice.ID, invoice.Amount, invoice.Description, invoice.VendorID,
		invoice.Status, invoice.RejectionReason, invoice.OwnerID,
		invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// GetByID returns one invoice with vendor and owner names resolved
func (r *InvoiceRepository) GetByID(id string) (*entity.Invoice, error) {
	return r.getByID(r.db, id)
}

// GetByIDTx reads through tx. Reads inside a transaction must not go
// back to the pool: with one connection they would wait on the
// connection the transaction itself holds.
func (r *InvoiceRepository) GetByIDTx(tx *sql.Tx, id string) (*entity.Invoice, error) {
	return r.getByID(tx, id)
}

func (r *InvoiceRepository) getByID(q rowQuerier, id string) (*entity.Invoice, error) {
	var inv entity.Invoice
	err := q.QueryRow(invoiceSelect+" WHERE i.id = ?", id).Scan(
		&inv.ID, &inv.Amount, &inv.Description, &inv.VendorID, &inv.VendorName,
		&inv.Status, &inv.RejectionReason, &inv.OwnerID, &inv.OwnerName,
		&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &inv, nil
}

// List returns invoices matching the filter
func (r *InvoiceRepository) List(f ListFilter) ([]entity.Invoice, error) {
	query := invoiceSelect + " WHERE 1=1"
	var args []any

	if f.Status != "" {
		query += " AND i.status = ?"
		args = append(args, f.Status)
	}
	if f.OwnerID != "" {
		query += " AND i.owner_id = ?"
		args = append(args, f.OwnerID)
	}
	if f.Search != "" {
		query += " AND (i.description LIKE ? OR v.name LIKE ?)"
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}
	if f.FromDate != "" {
		query += " AND date(i.created_at) >= date(?)"
		args = append(args, f.FromDate)
	}
	if f.ToDate != "" {
		query += " AND date(i.created_at) <= date(?)"
		args = append(args, f.ToDate)
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "i.created_at"
	}
	order := "DESC"
	if f.SortOrder == "asc" {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", column, order)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []entity.Invoice{}
	for rows.Next() {
		var inv entity.Invoice
		if err := rows.Scan(
			&inv.ID, &inv.Amount, &inv.Description, &inv.VendorID, &inv.VendorName,
			&inv.Status, &inv.RejectionReason, &inv.OwnerID, &inv.OwnerName,
			&inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// UpdateFields rewrites a Pending invoice's editable fields within tx
func (r *InvoiceRepository) UpdateFields(tx *sql.Tx, id string, amount float64, description, vendorID string, now time.Time) error {
	result, err := tx.Exec(`
		UPDATE invoices
		SET amount = ?, description = ?, vendor_id = ?, updated_at = ?
		WHERE id = ?
	`, amount, description, vendorID, now, id)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return checkAffected(result)
}

// UpdateStatus transitions an invoice within tx
func (r *InvoiceRepository) UpdateStatus(tx *sql.Tx, id string, status entity.Status, reason string, now time.Time) error {
	result, err := tx.Exec(`
		UPDATE invoices
		SET status = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ?
	`, status, reason, now, id)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return checkAffected(result)
}

// Delete removes an invoice within tx
func (r *InvoiceRepository) Delete(tx *sql.Tx, id string) error {
	result, err := tx.Exec("DELETE FROM invoices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return checkAffected(result)
}

// CountByVendor returns how many invoices reference a vendor
func (r *InvoiceRepository) CountByVendor(vendorID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM invoices WHERE vendor_id = ?", vendorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
