// Package client issues HTTP requests to the VendorPay backend,
// attaching the bearer token and normalizing error shapes so callers
// only ever see APIError, ErrUnauthorized, or a transport failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"github.com/vendorpay/expenseflow/internal/schema"
	"go.uber.org/zap"
)

// Config holds API client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the VendorPay REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger

	mu             sync.Mutex
	token          string
	onUnauthorized func()
}

// New creates a new API client
func New(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
	}
}

// SetToken installs the bearer token attached to subsequent requests
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// OnUnauthorized registers the session teardown hook fired when any
// endpoint answers 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// do sends one request and returns the raw response body. Non-2xx
// responses are normalized: 401 fires the teardown hook, 404 maps to
// ErrNotFound, everything else becomes an APIError carrying the
// server's message when the body held one.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.mu.Lock()
		hook := c.onUnauthorized
		c.token = ""
		c.mu.Unlock()
		if hook != nil {
			hook()
		}
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode >= 400:
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &errBody)
		msg := errBody.Error
		if msg == "" {
			msg = errBody.Message
		}
		c.logger.Debug("Request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	return data, nil
}

// Login authenticates and stores the returned bearer token
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	data, err := c.do(ctx, http.MethodPost, "/auth/login", nil, body)
	if err != nil {
		return nil, err
	}
	return c.session(data)
}

// Register creates an account and stores the returned bearer token
func (c *Client) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	if err := schema.ValidateInput(input); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodPost, "/auth/register", nil, input)
	if err != nil {
		return nil, err
	}
	return c.session(data)
}

func (c *Client) session(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrSchemaMismatch, err)
	}
	if err := schema.ValidateInput(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrSchemaMismatch, err)
	}
	c.SetToken(s.Token)
	return &s, nil
}

// ListInvoices fetches invoices matching params
func (c *Client) ListInvoices(ctx context.Context, params ListInvoicesParams) ([]entity.Invoice, error) {
	query := url.Values{}
	for name, value := range params.Filter() {
		if value != "" {
			query.Set(name, value)
		}
	}
	data, err := c.do(ctx, http.MethodGet, "/invoice", query, nil)
	if err != nil {
		return nil, err
	}
	return schema.DecodeInvoiceList(data)
}

// GetInvoice fetches one invoice by id
func (c *Client) GetInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	data, err := c.do(ctx, http.MethodGet, "/invoice/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return schema.DecodeInvoice(data)
}

// ListActivity fetches the audit trail for an invoice
func (c *Client) ListActivity(ctx context.Context, invoiceID string) ([]entity.Activity, error) {
	data, err := c.do(ctx, http.MethodGet, "/invoice/"+invoiceID+"/activity", nil, nil)
	if err != nil {
		return nil, err
	}
	return schema.DecodeActivityList(data)
}

// CreateInvoice submits a new invoice
func (c *Client) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*entity.Invoice, error) {
	data, err := c.do(ctx, http.MethodPost, "/invoice", nil, input)
	if err != nil {
		return nil, err
	}
	return schema.DecodeInvoice(data)
}

// UpdateInvoice edits a Pending invoice
func (c *Client) UpdateInvoice(ctx context.Context, id string, input UpdateInvoiceInput) (*entity.Invoice, error) {
	data, err := c.do(ctx, http.MethodPut, "/invoice/"+id, nil, input)
	if err != nil {
		return nil, err
	}
	return schema.DecodeInvoice(data)
}

// UpdateInvoiceStatus transitions an invoice to a terminal status
func (c *Client) UpdateInvoiceStatus(ctx context.Context, id string, input StatusUpdateInput) (*entity.Invoice, error) {
	data, err := c.do(ctx, http.MethodPatch, "/invoice/"+id+"/status", nil, input)
	if err != nil {
		return nil, err
	}
	return schema.DecodeInvoice(data)
}

// WithdrawInvoice withdraws a Pending invoice owned by the caller
func (c *Client) WithdrawInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	data, err := c.do(ctx, http.MethodPost, "/invoice/"+id+"/withdraw", nil, nil)
	if err != nil {
		return nil, err
	}
	return schema.DecodeInvoice(data)
}

// DeleteInvoice removes an invoice; the server refuses for Approved ones
func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/invoice/"+id, nil, nil)
	return err
}

// BulkUpdateStatus applies one transition to a set of invoices
func (c *Client) BulkUpdateStatus(ctx context.Context, input BulkStatusInput) (*BulkStatusResult, error) {
	data, err := c.do(ctx, http.MethodPost, "/invoice/bulk-status", nil, input)
	if err != nil {
		return nil, err
	}
	var result BulkStatusResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrSchemaMismatch, err)
	}
	return &result, nil
}

// ListVendors fetches all vendors
func (c *Client) ListVendors(ctx context.Context) ([]entity.Vendor, error) {
	data, err := c.do(ctx, http.MethodGet, "/vendor", nil, nil)
	if err != nil {
		return nil, err
	}
	return schema.DecodeVendorList(data)
}

// GetVendor fetches one vendor by id
func (c *Client) GetVendor(ctx context.Context, id string) (*entity.Vendor, error) {
	data, err := c.do(ctx, http.MethodGet, "/vendor/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return schema.DecodeVendor(data)
}

// CreateVendor registers a new vendor
func (c *Client) CreateVendor(ctx context.Context, input VendorInput) (*entity.Vendor, error) {
	data, err := c.do(ctx, http.MethodPost, "/vendor", nil, input)
	if err != nil {
		return nil, err
	}
	return schema.DecodeVendor(data)
}

// UpdateVendor edits a vendor
func (c *Client) UpdateVendor(ctx context.Context, id string, input VendorInput) (*entity.Vendor, error) {
	data, err := c.do(ctx, http.MethodPut, "/vendor/"+id, nil, input)
	if err != nil {
		return nil, err
	}
	return schema.DecodeVendor(data)
}

// DeleteVendor removes a vendor with no invoices referencing it
func (c *Client) DeleteVendor(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/vendor/"+id, nil, nil)
	return err
}
