package entity

import "time"

// Invoice represents a submitted expense claim against a vendor
type Invoice struct {
	ID              string    `json:"id" validate:"required"`
	Amount          float64   `json:"amount" validate:"required,gt=0"`
	Description     string    `json:"description" validate:"required"`
	VendorID        string    `json:"vendor_id" validate:"required"`
	VendorName      string    `json:"vendor_name"`
	Status          Status    `json:"status" validate:"required,oneof=Pending Approved Rejected Withdrawn"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	OwnerID         string    `json:"owner_id" validate:"required"`
	OwnerName       string    `json:"owner_name"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Editable returns true if the invoice may still be edited or withdrawn
func (i *Invoice) Editable() bool {
	return i.Status == StatusPending
}
