// Package coordinator wraps each logical write against the backend with
// optimistic cache semantics: snapshot, optimistic transform, network
// call, then reconcile (invalidate on success, exact restore on
// failure). The cache is never left half-applied.
package coordinator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vendorpay/expenseflow/internal/cache"
	"github.com/vendorpay/expenseflow/internal/client"
	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"github.com/vendorpay/expenseflow/internal/schema"
	"go.uber.org/zap"
)

// ErrReasonRequired is returned, before any network call, when a
// rejection is attempted without a reason.
var ErrReasonRequired = errors.New("coordinator: rejection requires a non-empty reason")

// API is the remote surface the coordinator drives. *client.Client
// satisfies it; tests substitute func-field mocks.
type API interface {
	ListInvoices(ctx context.Context, params client.ListInvoicesParams) ([]entity.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*entity.Invoice, error)
	ListActivity(ctx context.Context, invoiceID string) ([]entity.Activity, error)
	CreateInvoice(ctx context.Context, input client.CreateInvoiceInput) (*entity.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, input client.UpdateInvoiceInput) (*entity.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id string, input client.StatusUpdateInput) (*entity.Invoice, error)
	WithdrawInvoice(ctx context.Context, id string) (*entity.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
	BulkUpdateStatus(ctx context.Context, input client.BulkStatusInput) (*client.BulkStatusResult, error)
	ListVendors(ctx context.Context) ([]entity.Vendor, error)
	GetVendor(ctx context.Context, id string) (*entity.Vendor, error)
	CreateVendor(ctx context.Context, input client.VendorInput) (*entity.Vendor, error)
	UpdateVendor(ctx context.Context, id string, input client.VendorInput) (*entity.Vendor, error)
	DeleteVendor(ctx context.Context, id string) error
}

// Notification is the transient user-visible message surfaced when a
// mutation settles with a failure.
type Notification struct {
	Operation string
	Message   string
	Err       error
}

// NotifyFunc receives failure notifications, exactly once per settled
// failure. The default drops them.
type NotifyFunc func(Notification)

// Coordinator synchronizes the query cache with in-flight mutations
type Coordinator struct {
	api    API
	store  *cache.Store
	notify NotifyFunc
	logger *zap.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithNotify installs the failure notification sink
func WithNotify(fn NotifyFunc) Option {
	return func(c *Coordinator) { c.notify = fn }
}

var invoiceKinds = []cache.Kind{cache.KindInvoiceList, cache.KindInvoiceDetail}
var vendorKinds = []cache.Kind{cache.KindVendorList, cache.KindVendorDetail}

// New creates a coordinator and wires the store's background
// refetchers to the API so invalidation can reconcile with the server.
func New(api API, store *cache.Store, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:    api,
		store:  store,
		notify: func(Notification) {},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registerRefetchers()
	return c
}

// CreateInvoice submits a new invoice. The optimistic entry carries a
// placeholder id; the post-settle refetch swaps in the server record.
func (c *Coordinator) CreateInvoice(ctx context.Context, input client.CreateInvoiceInput) (*entity.Invoice, error) {
	m := newMutation("create-invoice")
	if err := schema.ValidateInput(input); err != nil {
		_ = m.fire(PhaseSettledFailure)
		return nil, err
	}

	now := time.Now()
	placeholder := entity.Invoice{
		ID:          uuid.NewString(),
		Amount:      input.Amount,
		Description: input.Description,
		VendorID:    input.VendorID,
		VendorName:  input.VendorName,
		Status:      entity.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.token = c.store.Snapshot(invoiceKinds...)
	c.applyToLists(appendInvoice(placeholder))
	if err := m.fire(PhaseApplied); err != nil {
		return nil, err
	}

	created, err := c.api.CreateInvoice(ctx, input)
	if err != nil {
		return nil, c.settleFailure(m, "Create Failed", err)
	}
	c.settleSuccess(m, invoiceKinds...)
	return created, nil
}

// UpdateInvoice edits a Pending invoice's amount/description/vendor
func (c *Coordinator) UpdateInvoice(ctx context.Context, id string, input client.UpdateInvoiceInput) (*entity.Invoice, error) {
	m := newMutation("update-invoice")
	if err := schema.ValidateInput(input); err != nil {
		_ = m.fire(PhaseSettledFailure)
		return nil, err
	}

	m.token = c.store.Snapshot(invoiceKinds...)
	transform := editInvoice(id, input.Amount, input.Description, input.VendorID, input.VendorName)
	c.applyToLists(transform)
	c.applyToDetail(id, transform)
	if err := m.fire(PhaseApplied); err != nil {
		return nil, err
	}

	updated, err := c.api.UpdateInvoice(ctx, id, input)
	if err != nil {
		return nil, c.settleFailure(m, "Update Failed", err)
	}
	c.settleSuccess(m, append(invoiceKinds, cache.KindActivity)...)
	return updated, nil
}

// UpdateStatus transitions one invoice. Rejection without a reason is
// refused synchronously; no request is issued.
func (c *Coordinator) UpdateStatus(ctx context.Context, id string, status entity.Status, reason string) (*entity.Invoice, error) {
	m := newMutation("update-status")
	if status == entity.StatusRejected && strings.TrimSpace(reason) == "" {
		_ = m.fire(PhaseSettledFailure)
		return nil, ErrReasonRequired
	}
	input := client.StatusUpdateInput{Status: status, RejectionReason: reason}
	if err := schema.ValidateInput(input); err != nil {
		_ = m.fire(PhaseSettledFailure)
		return nil, err
	}

	m.token = c.store.Snapshot(invoiceKinds...)
	transform := setStatus(id, status, reason)
	c.applyToLists(transform)
	c.applyToDetail(id, transform)
	if err := m.fire(PhaseApplied); err != nil {
		return nil, err
	}

	updated, err := c.api.UpdateInvoiceStatus(ctx, id, input)
	if err != nil {
		return nil, c.settleFailure(m, "Update Failed", err)
	}
	c.settleSuccess(m, append(invoiceKinds, cache.KindActivity)...)
	return updated, nil
}

// Withdraw pulls back the caller's own Pending invoice
func (c *Coordinator) Withdraw(ctx context.Context, id string) (*entity.Invoice, error) {
	m := newMutation("withdraw-invoice")

	m.token = c.store.Snapshot(invoiceKinds...)
	transform := setStatus(id, entity.StatusWithdrawn, "")
	c.applyToLists(transform)
	c.applyToDetail(id, transform)
	if err := m.fire(PhaseApplied); err != nil {
		return nil, err
	}

	withdrawn, err := c.api.WithdrawInvoice(ctx, id)
	if err != nil {
		return nil, c.settleFailure(m, "Withdraw Failed", err)
	}
	c.settleSuccess(m, append(invoiceKinds, cache.KindActivity)...)
	return withdrawn, nil
}

// Delete removes an invoice and purges its local cache entries
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	m := newMutation("delete-invoice")

	m.token = c.store.Snapshot(cache.KindInvoiceList, cache.KindInvoiceDetail, cache.KindActivity)
	c.applyToLists(removeInvoice(id))
	c.store.Delete(cache.NewKey(cache.KindInvoiceDetail, id))
	c.store.Delete(cache.NewKey(cache.KindActivity, id))
	if err := m.fire(PhaseApplied); err != nil {
		return err
	}

	if err := c.api.DeleteInvoice(ctx, id); err != nil {
		return c.settleFailure(m, "Delete Failed", err)
	}
	c.settleSuccess(m, cache.KindInvoiceList)
	return nil
}

// BulkStatus applies one transition to every invoice in ids
func (c *Coordinator) BulkStatus(ctx context.Context, ids []string, status entity.Status, reason string) (*client.BulkStatusResult, error) {
	m := newMutation("bulk-status")
	if status == entity.StatusRejected && strings.TrimSpace(reason) == "" {
		_ = m.fire(PhaseSettledFailure)
		return nil, ErrReasonRequired
	}
	input := client.BulkStatusInput{
		InvoiceIDs:      ids,
		Status:          status,
		RejectionReason: reason,
	}
	if err := schema.ValidateInput(input); err != nil {
		_ = m.fire(PhaseSettledFailure)
		return nil, err
	}

	m.token = c.store.Snapshot(invoiceKinds...)
	transform := setStatusMany(ids, status, reason)
	c.applyToLists(transform)
	for _, id := range ids {
		c.applyToDetail(id, transform)
	}
	if err := m.fire(PhaseApplied); err != nil {
		return nil, err
	}

	result, err := c.api.BulkUpdateStatus(ctx, input)
	if err != nil {
		return nil, c.settleFailure(m, "Bulk Update Failed", err)
	}
	c.settleSuccess(m, append(invoiceKinds, cache.KindActivity)...)
	return result, nil
}

// CreateVendor registers a new vendor
func (c *Coordinator) CreateVendor(ctx context.Context, input client.VendorInput) (*entity.Vendor, error) {
	m := newMutation("create-vendor")
	if err := schema.ValidateInput(input); err != nil {
		_ = m.fire(PhaseSettledFailure)
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = entity.VendorActive
	}
	placeholder := entity.Vendor{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Category:     input.Category,
		Status:       status,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
		CreatedAt:    time.Now(),
	}

	m.token = c.store.Snapshot(vendorKinds...)
	c.applyToVendorLists(appendVendor(placeholder))
	if err := m.fire(PhaseApplied); err != nil {
		return nil, err
	}

	created, err := c.api.CreateVendor(ctx, input)
	if err != nil {
		return nil, c.settleFailure(m, "Create Failed", err)
	}
	c.settleSuccess(m, vendorKinds...)
	return created, nil
}

// UpdateVendor edits a vendor
func (c *Coordinator) UpdateVendor(ctx context.Context, id string, input client.VendorInput) (*entity.Vendor, error) {
	m := newMutation("update-vendor")
	if err := schema.ValidateInput(input); err != nil {
		_ = m.fire(PhaseSettledFailure)
		return nil, err
	}

	m.token = c.store.Snapshot(vendorKinds...)
	c.applyToVendorLists(editVendor(id, func(v entity.Vendor) entity.Vendor {
		v.Name = input.Name
		v.Category = input.Category
		if input.Status != "" {
			v.Status = input.Status
		}
		v.ContactEmail = input.ContactEmail
		v.ContactPhone = input.ContactPhone
		return v
	}))
	if err := m.fire(PhaseApplied); err != nil {
		return nil, err
	}

	updated, err := c.api.UpdateVendor(ctx, id, input)
	if err != nil {
		return nil, c.settleFailure(m, "Update Failed", err)
	}
	c.settleSuccess(m, vendorKinds...)
	return updated, nil
}

// DeleteVendor removes a vendor and purges its detail entry
func (c *Coordinator) DeleteVendor(ctx context.Context, id string) error {
	m := newMutation("delete-vendor")

	m.token = c.store.Snapshot(vendorKinds...)
	c.applyToVendorLists(removeVendor(id))
	c.store.Delete(cache.NewKey(cache.KindVendorDetail, id))
	if err := m.fire(PhaseApplied); err != nil {
		return err
	}

	if err := c.api.DeleteVendor(ctx, id); err != nil {
		return c.settleFailure(m, "Delete Failed", err)
	}
	c.settleSuccess(m, cache.KindVendorList)
	return nil
}

// applyToLists rewrites every cached invoice list through transform
func (c *Coordinator) applyToLists(transform listTransform) {
	for _, key := range c.store.Keys(cache.KindInvoiceList) {
		if value, ok := c.store.Read(key); ok {
			if invoices, ok := value.([]entity.Invoice); ok {
				c.store.Write(key, transform(invoices))
			}
		}
	}
}

// applyToDetail rewrites a cached invoice detail record, if present
func (c *Coordinator) applyToDetail(id string, transform listTransform) {
	key := cache.NewKey(cache.KindInvoiceDetail, id)
	value, ok := c.store.Read(key)
	if !ok {
		return
	}
	inv, ok := value.(entity.Invoice)
	if !ok {
		return
	}
	out := transform([]entity.Invoice{inv})
	if len(out) == 1 {
		c.store.Write(key, out[0])
	} else {
		c.store.Delete(key)
	}
}

func (c *Coordinator) applyToVendorLists(transform vendorTransform) {
	for _, key := range c.store.Keys(cache.KindVendorList) {
		if value, ok := c.store.Read(key); ok {
			if vendors, ok := value.([]entity.Vendor); ok {
				c.store.Write(key, transform(vendors))
			}
		}
	}
}

// settleSuccess keeps the optimistic state as baseline and invalidates
// the affected kinds so authoritative data reconciles any field the
// transform could not predict.
func (c *Coordinator) settleSuccess(m *mutation, kinds ...cache.Kind) {
	if err := m.fire(PhaseSettledSuccess); err != nil {
		c.logger.Error("Mutation lifecycle violation", zap.String("op", m.op), zap.Error(err))
	}
	c.store.Invalidate(kinds...)
}

// settleFailure restores the snapshot captured at this mutation's own
// start and surfaces exactly one user-visible notification.
func (c *Coordinator) settleFailure(m *mutation, fallback string, err error) error {
	c.store.Restore(m.token)
	if fireErr := m.fire(PhaseSettledFailure); fireErr != nil {
		c.logger.Error("Mutation lifecycle violation", zap.String("op", m.op), zap.Error(fireErr))
	}

	message := fallback
	if serverMsg, ok := client.ServerMessage(err); ok {
		message = serverMsg
	}
	c.logger.Warn("Mutation failed, cache restored",
		zap.String("op", m.op),
		zap.String("message", message),
		zap.Error(err))
	c.notify(Notification{Operation: m.op, Message: message, Err: err})
	return err
}
