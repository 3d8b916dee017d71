package entity

import "time"

// VendorStatus represents whether a vendor accepts new invoices
type VendorStatus string

const (
	VendorActive   VendorStatus = "Active"
	VendorInactive VendorStatus = "Inactive"
)

// IsValid returns true if the status is a known vendor status
func (s VendorStatus) IsValid() bool {
	return s == VendorActive || s == VendorInactive
}

// Vendor represents a payee that invoices can be submitted against
type Vendor struct {
	ID           string       `json:"id" validate:"required"`
	Name         string       `json:"name" validate:"required"`
	Category     string       `json:"category"`
	Status       VendorStatus `json:"status" validate:"required,oneof=Active Inactive"`
	ContactEmail string       `json:"contact_email,omitempty"`
	ContactPhone string       `json:"contact_phone,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
