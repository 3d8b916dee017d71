package coordinator

import (
	"context"
	"fmt"

	"github.com/vendorpay/expenseflow/internal/cache"
	"github.com/vendorpay/expenseflow/internal/client"
	"github.com/vendorpay/expenseflow/internal/domain/entity"
)

// InvoiceListKey returns the cache key addressing one list variant
func InvoiceListKey(params client.ListInvoicesParams) cache.Key {
	return cache.NewKey(cache.KindInvoiceList, cache.CanonicalFilter(params.Filter()))
}

// Invoices returns the cached list for params, fetching on a miss.
// Cached values are served even when stale; the background refetch
// scheduled by invalidation brings them up to date.
func (c *Coordinator) Invoices(ctx context.Context, params client.ListInvoicesParams) ([]entity.Invoice, error) {
	key := InvoiceListKey(params)
	if value, ok := c.store.Read(key); ok {
		if invoices, ok := value.([]entity.Invoice); ok {
			return invoices, nil
		}
	}
	invoices, err := c.api.ListInvoices(ctx, params)
	if err != nil {
		return nil, err
	}
	c.store.Write(key, invoices)
	return invoices, nil
}

// Invoice returns one cached invoice, fetching on a miss
func (c *Coordinator) Invoice(ctx context.Context, id string) (*entity.Invoice, error) {
	key := cache.NewKey(cache.KindInvoiceDetail, id)
	if value, ok := c.store.Read(key); ok {
		if inv, ok := value.(entity.Invoice); ok {
			return &inv, nil
		}
	}
	inv, err := c.api.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store.Write(key, *inv)
	return inv, nil
}

// Activity returns an invoice's cached audit trail, fetching on a miss
func (c *Coordinator) Activity(ctx context.Context, invoiceID string) ([]entity.Activity, error) {
	key := cache.NewKey(cache.KindActivity, invoiceID)
	if value, ok := c.store.Read(key); ok {
		if entries, ok := value.([]entity.Activity); ok {
			return entries, nil
		}
	}
	entries, err := c.api.ListActivity(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	c.store.Write(key, entries)
	return entries, nil
}

// Vendors returns the cached vendor list, fetching on a miss
func (c *Coordinator) Vendors(ctx context.Context) ([]entity.Vendor, error) {
	key := cache.NewKey(cache.KindVendorList, "")
	if value, ok := c.store.Read(key); ok {
		if vendors, ok := value.([]entity.Vendor); ok {
			return vendors, nil
		}
	}
	vendors, err := c.api.ListVendors(ctx)
	if err != nil {
		return nil, err
	}
	c.store.Write(key, vendors)
	return vendors, nil
}

// registerRefetchers wires invalidation to authoritative refetches.
// Results are written back even when no view is watching anymore.
func (c *Coordinator) registerRefetchers() {
	c.store.RegisterRefetcher(cache.KindInvoiceList, func(ctx context.Context, key cache.Key) (any, error) {
		filter, err := cache.ParseFilter(key.Filter)
		if err != nil {
			return nil, fmt.Errorf("coordinator: bad list key %q: %w", key.Filter, err)
		}
		return c.api.ListInvoices(ctx, client.ParamsFromFilter(filter))
	})
	c.store.RegisterRefetcher(cache.KindInvoiceDetail, func(ctx context.Context, key cache.Key) (any, error) {
		inv, err := c.api.GetInvoice(ctx, key.Filter)
		if err != nil {
			return nil, err
		}
		return *inv, nil
	})
	c.store.RegisterRefetcher(cache.KindActivity, func(ctx context.Context, key cache.Key) (any, error) {
		return c.api.ListActivity(ctx, key.Filter)
	})
	c.store.RegisterRefetcher(cache.KindVendorList, func(ctx context.Context, key cache.Key) (any, error) {
		return c.api.ListVendors(ctx)
	})
	c.store.RegisterRefetcher(cache.KindVendorDetail, func(ctx context.Context, key cache.Key) (any, error) {
		v, err := c.api.GetVendor(ctx, key.Filter)
		if err != nil {
			return nil, err
		}
		return *v, nil
	})
}
