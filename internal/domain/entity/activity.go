package entity

import "time"

// Action identifies what a recorded activity did to an invoice
type Action string

const (
	ActionCreated   Action = "Created"
	ActionUpdated   Action = "Updated"
	ActionApproved  Action = "Approved"
	ActionRejected  Action = "Rejected"
	ActionWithdrawn Action = "Withdrawn"
	ActionDeleted   Action = "Deleted"
)

// Activity is one append-only audit entry for an invoice.
// Entries are never updated or deleted once written.
type Activity struct {
	ID          string    `json:"id" validate:"required"`
	InvoiceID   string    `json:"invoice_id" validate:"required"`
	Action      Action    `json:"action" validate:"required,oneof=Created Updated Approved Rejected Withdrawn Deleted"`
	PerformedBy string    `json:"performed_by" validate:"required"`
	Metadata    string    `json:"metadata,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
