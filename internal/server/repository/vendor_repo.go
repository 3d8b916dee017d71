package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"go.uber.org/zap"
)

// VendorRepository handles vendor database operations
type VendorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *sql.DB, logger *zap.Logger) *VendorRepository {
	return &VendorRepository{db: db, logger: logger}
}

const vendorColumns = "id, name, category, status, contact_email, contact_phone, created_at, updated_at"

// Create inserts a new vendor
func (r *VendorRepository) Create(vendor *entity.Vendor) error {
	query := `
		INSERT INTO vendors (id, name, category, status, contact_email, contact_phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		vendor.ID, vendor.Name, vendor.Category, vendor.Status,
		vendor.ContactEmail, vendor.ContactPhone, vendor.CreatedAt, vendor.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: active vendor named %s", ErrDuplicate, vendor.Name)
		}
		r.logger.Error("Failed to create vendor", zap.Error(err))
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

// GetByID returns the vendor with the given id
func (r *VendorRepository) GetByID(id string) (*entity.Vendor, error) {
	return r.get("SELECT "+vendorColumns+" FROM vendors WHERE id = ?", id)
}

// GetActiveByName resolves a vendor reference given by name, matching
// only the active set.
func (r *VendorRepository) GetActiveByName(name string) (*entity.Vendor, error) {
	return r.get("SELECT "+vendorColumns+" FROM vendors WHERE name = ? AND status = ?", name, entity.VendorActive)
}

func (r *VendorRepository) get(query string, args ...any) (*entity.Vendor, error) {
	var v entity.Vendor
	err := r.db.QueryRow(query, args...).Scan(
		&v.ID, &v.Name, &v.Category, &v.Status,
		&v.ContactEmail, &v.ContactPhone, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return &v, nil
}

// List returns all vendors ordered by name
func (r *VendorRepository) List() ([]entity.Vendor, error) {
	rows, err := r.db.Query("SELECT " + vendorColumns + " FROM vendors ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	vendors := []entity.Vendor{}
	for rows.Next() {
		var v entity.Vendor
		if err := rows.Scan(
			&v.ID, &v.Name, &v.Category, &v.Status,
			&v.ContactEmail, &v.ContactPhone, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// Update rewrites a vendor's mutable fields
func (r *VendorRepository) Update(vendor *entity.Vendor) error {
	query := `
		UPDATE vendors
		SET name = ?, category = ?, status = ?, contact_email = ?, contact_phone = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		vendor.Name, vendor.Category, vendor.Status,
		vendor.ContactEmail, vendor.ContactPhone, vendor.UpdatedAt, vendor.ID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: active vendor named %s", ErrDuplicate, vendor.Name)
		}
		return fmt.Errorf("failed to update vendor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a vendor by id
func (r *VendorRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM vendors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete vendor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
