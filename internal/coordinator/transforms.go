package coordinator

import (
	"time"

	"github.com/vendorpay/expenseflow/internal/domain/entity"
)

// A listTransform is a pure function from a cached invoice collection
// to its optimistic successor. Transforms never mutate their input;
// callers rely on snapshots aliasing the old slices.
type listTransform func([]entity.Invoice) []entity.Invoice

// setStatus predicts a status transition for one invoice. An absent id
// yields the collection unchanged (copied), and the request still runs.
func setStatus(id string, status entity.Status, reason string) listTransform {
	return func(invoices []entity.Invoice) []entity.Invoice {
		out := make([]entity.Invoice, len(invoices))
		for i, inv := range invoices {
			if inv.ID == id {
				inv.Status = status
				inv.RejectionReason = reason
			}
			out[i] = inv
		}
		return out
	}
}

// setStatusMany predicts a bulk transition for a set of invoice ids
func setStatusMany(ids []string, status entity.Status, reason string) listTransform {
	target := make(map[string]bool, len(ids))
	for _, id := range ids {
		target[id] = true
	}
	return func(invoices []entity.Invoice) []entity.Invoice {
		out := make([]entity.Invoice, len(invoices))
		for i, inv := range invoices {
			if target[inv.ID] {
				inv.Status = status
				inv.RejectionReason = reason
			}
			out[i] = inv
		}
		return out
	}
}

// removeInvoice predicts a delete by dropping the invoice from the list
func removeInvoice(id string) listTransform {
	return func(invoices []entity.Invoice) []entity.Invoice {
		out := make([]entity.Invoice, 0, len(invoices))
		for _, inv := range invoices {
			if inv.ID != id {
				out = append(out, inv)
			}
		}
		return out
	}
}

// appendInvoice predicts a create by adding a placeholder entry; the
// post-settle refetch replaces it with the server-assigned record.
func appendInvoice(placeholder entity.Invoice) listTransform {
	return func(invoices []entity.Invoice) []entity.Invoice {
		out := make([]entity.Invoice, len(invoices), len(invoices)+1)
		copy(out, invoices)
		return append(out, placeholder)
	}
}

// editInvoice predicts an edit of a Pending invoice's mutable fields
func editInvoice(id string, amount float64, description, vendorID, vendorName string) listTransform {
	return func(invoices []entity.Invoice) []entity.Invoice {
		out := make([]entity.Invoice, len(invoices))
		for i, inv := range invoices {
			if inv.ID == id {
				inv.Amount = amount
				inv.Description = description
				if vendorID != "" {
					inv.VendorID = vendorID
				}
				if vendorName != "" {
					inv.VendorName = vendorName
				}
				inv.UpdatedAt = time.Now()
			}
			out[i] = inv
		}
		return out
	}
}

// vendorTransform is the vendor-collection counterpart of listTransform
type vendorTransform func([]entity.Vendor) []entity.Vendor

func appendVendor(placeholder entity.Vendor) vendorTransform {
	return func(vendors []entity.Vendor) []entity.Vendor {
		out := make([]entity.Vendor, len(vendors), len(vendors)+1)
		copy(out, vendors)
		return append(out, placeholder)
	}
}

func editVendor(id string, apply func(entity.Vendor) entity.Vendor) vendorTransform {
	return func(vendors []entity.Vendor) []entity.Vendor {
		out := make([]entity.Vendor, len(vendors))
		for i, v := range vendors {
			if v.ID == id {
				v = apply(v)
			}
			out[i] = v
		}
		return out
	}
}

func removeVendor(id string) vendorTransform {
	return func(vendors []entity.Vendor) []entity.Vendor {
		out := make([]entity.Vendor, 0, len(vendors))
		for _, v := range vendors {
			if v.ID != id {
				out = append(out, v)
			}
		}
		return out
	}
}
