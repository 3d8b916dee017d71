package client

import "github.com/vendorpay/expenseflow/internal/domain/entity"

// ListInvoicesParams narrows an invoice list query. Zero values mean
// "no constraint" and are omitted from both the request and the cache
// key descriptor.
type ListInvoicesParams struct {
	Status    entity.Status
	SortBy    string
	SortOrder string
	Search    string
	FromDate  string
	ToDate    string
}

// Filter returns the canonical cache-key descriptor for these params
func (p ListInvoicesParams) Filter() map[string]string {
	return map[string]string{
		"status":    string(p.Status),
		"sortBy":    p.SortBy,
		"sortOrder": p.SortOrder,
		"search":    p.Search,
		"fromDate":  p.FromDate,
		"toDate":    p.ToDate,
	}
}

// ParamsFromFilter rebuilds list params from a cache-key descriptor
func ParamsFromFilter(filter map[string]string) ListInvoicesParams {
	return ListInvoicesParams{
		Status:    entity.Status(filter["status"]),
		SortBy:    filter["sortBy"],
		SortOrder: filter["sortOrder"],
		Search:    filter["search"],
		FromDate:  filter["fromDate"],
		ToDate:    filter["toDate"],
	}
}

// CreateInvoiceInput is the payload for submitting a new invoice.
// Exactly one of VendorID or VendorName must be set; a name is resolved
// server-side against active vendors.
type CreateInvoiceInput struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"required"`
	VendorID    string  `json:"vendor_id" validate:"required_without=VendorName"`
	VendorName  string  `json:"vendor_name" validate:"required_without=VendorID"`
}

// UpdateInvoiceInput is the payload for editing a Pending invoice
type UpdateInvoiceInput struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"required"`
	VendorID    string  `json:"vendor_id" validate:"required_without=VendorName"`
	VendorName  string  `json:"vendor_name" validate:"required_without=VendorID"`
}

// StatusUpdateInput transitions a Pending invoice through the review
// endpoint. Withdrawal goes through its own endpoint, never this one.
type StatusUpdateInput struct {
	Status          entity.Status `json:"status" validate:"required,oneof=Approved Rejected"`
	RejectionReason string        `json:"rejection_reason,omitempty" validate:"required_if=Status Rejected"`
}

// BulkStatusInput applies one status transition to a set of invoices
type BulkStatusInput struct {
	InvoiceIDs      []string      `json:"invoice_ids" validate:"required,min=1"`
	Status          entity.Status `json:"status" validate:"required,oneof=Approved Rejected"`
	RejectionReason string        `json:"rejection_reason,omitempty" validate:"required_if=Status Rejected"`
}

// BulkStatusResult reports the outcome of a bulk transition
type BulkStatusResult struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// VendorInput is the payload for creating or updating a vendor
type VendorInput struct {
	Name         string              `json:"name" validate:"required"`
	Category     string              `json:"category"`
	Status       entity.VendorStatus `json:"status" validate:"omitempty,oneof=Active Inactive"`
	ContactEmail string              `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone string              `json:"contact_phone,omitempty"`
}

// RegisterInput creates a new staff account
type RegisterInput struct {
	Email    string      `json:"email" validate:"required,email"`
	Name     string      `json:"name" validate:"required"`
	Password string      `json:"password" validate:"required,min=8"`
	Role     entity.Role `json:"role" validate:"omitempty,oneof=Employee Manager Admin"`
}

// Session bundles the bearer token and user returned by login/register
type Session struct {
	Token string      `json:"token" validate:"required"`
	User  entity.User `json:"user" validate:"required"`
}
