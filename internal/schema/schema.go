// Package schema validates that data returned by the remote API matches
// the expected entity shapes before it is allowed into the cache. A
// payload that fails validation is treated as a failed fetch; it is
// never coerced or partially written.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/vendorpay/expenseflow/internal/domain/entity"
)

// ErrSchemaMismatch marks a response whose shape failed validation
var ErrSchemaMismatch = errors.New("schema: response shape mismatch")

var validate = validator.New()

func decode(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

func decodeList[T any](data []byte, validateItem func(*T) error) ([]T, error) {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	for i := range items {
		if err := validateItem(&items[i]); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrSchemaMismatch, i, err)
		}
	}
	// List endpoints yield empty slices, never nil
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// DecodeInvoice parses and validates a single invoice payload
func DecodeInvoice(data []byte) (*entity.Invoice, error) {
	var inv entity.Invoice
	if err := decode(data, &inv); err != nil {
		return nil, err
	}
	if inv.Status == entity.StatusRejected && inv.RejectionReason == "" {
		return nil, fmt.Errorf("%w: rejected invoice missing rejection_reason", ErrSchemaMismatch)
	}
	return &inv, nil
}

// DecodeInvoiceList parses and validates an invoice collection payload
func DecodeInvoiceList(data []byte) ([]entity.Invoice, error) {
	return decodeList(data, func(inv *entity.Invoice) error {
		return validate.Struct(inv)
	})
}

// DecodeVendor parses and validates a single vendor payload
func DecodeVendor(data []byte) (*entity.Vendor, error) {
	var v entity.Vendor
	if err := decode(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DecodeVendorList parses and validates a vendor collection payload
func DecodeVendorList(data []byte) ([]entity.Vendor, error) {
	return decodeList(data, func(v *entity.Vendor) error {
		return validate.Struct(v)
	})
}

// DecodeActivityList parses and validates an audit trail payload
func DecodeActivityList(data []byte) ([]entity.Activity, error) {
	return decodeList(data, func(a *entity.Activity) error {
		return validate.Struct(a)
	})
}

// ValidateInput runs struct-tag validation on a request payload before
// it leaves the client, so malformed mutations never reach the network.
func ValidateInput(input any) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("schema: invalid input: %w", err)
	}
	return nil
}
