package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"github.com/vendorpay/expenseflow/migrations"
	"github.com/vendorpay/expenseflow/pkg/database"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run(migrations.FS, "."))

	tokens := NewTokenService("test-secret", time.Hour)
	return &testEnv{router: New(db, tokens, logger).Router()}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// register creates an account with the given role and returns its token
func (e *testEnv) register(t *testing.T, email string, role entity.Role) (string, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":    email,
		"name":     "Test " + email,
		"password": "password123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, w.Code, "register failed: %s", w.Body.String())
	session := decodeBody[sessionResponse](t, w)
	return session.Token, session.User.ID
}

func (e *testEnv) createVendor(t *testing.T, token, name string) entity.Vendor {
	t.Helper()
	w := e.do(t, http.MethodPost, "/vendor", token, gin.H{"name": name, "category": "Services"})
	require.Equal(t, http.StatusCreated, w.Code, "create vendor failed: %s", w.Body.String())
	return decodeBody[entity.Vendor](t, w)
}

func (e *testEnv) createInvoice(t *testing.T, token string, amount float64, vendorName string) entity.Invoice {
	t.Helper()
	w := e.do(t, http.MethodPost, "/invoice", token, gin.H{
		"amount":      amount,
		"description": "expense",
		"vendor_name": vendorName,
	})
	require.Equal(t, http.StatusCreated, w.Code, "create invoice failed: %s", w.Body.String())
	return decodeBody[entity.Invoice](t, w)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	token, _ := env.register(t, "alice@example.com", "")
	assert.NotEmpty(t, token)

	// Duplicate email
	w := env.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":    "alice@example.com",
		"name":     "Alice Again",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Correct credentials
	w = env.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	session := decodeBody[sessionResponse](t, w)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, entity.RoleEmployee, session.User.Role, "default role is Employee")

	// Wrong password
	w = env.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown email
	w = env.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "nobody@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_ProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/invoice", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/invoice", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvoice_LifecycleApprove(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	employee, employeeID := env.register(t, "employee@example.com", "")

	env.createVendor(t, manager, "Acme")
	invoice := env.createInvoice(t, employee, 120.50, "Acme")
	assert.Equal(t, entity.StatusPending, invoice.Status)
	assert.Equal(t, employeeID, invoice.OwnerID)
	assert.Equal(t, "Acme", invoice.VendorName)

	// Manager approves
	w := env.do(t, http.MethodPatch, "/invoice/"+invoice.ID+"/status", manager, gin.H{
		"status": "Approved",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody[entity.Invoice](t, w)
	assert.Equal(t, entity.StatusApproved, updated.Status)

	// Terminal invoices cannot transition again
	w = env.do(t, http.MethodPatch, "/invoice/"+invoice.ID+"/status", manager, gin.H{
		"status": "Rejected", "rejection_reason": "too late",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Audit trail records both actions in order
	w = env.do(t, http.MethodGet, "/invoice/"+invoice.ID+"/activity", manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	trail := decodeBody[[]entity.Activity](t, w)
	require.Len(t, trail, 2)
	assert.Equal(t, entity.ActionCreated, trail[0].Action)
	assert.Equal(t, entity.ActionApproved, trail[1].Action)
}

func TestInvoice_RejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	env.createVendor(t, manager, "Acme")
	invoice := env.createInvoice(t, manager, 10, "Acme")

	w := env.do(t, http.MethodPatch, "/invoice/"+invoice.ID+"/status", manager, gin.H{
		"status": "Rejected",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/invoice/"+invoice.ID+"/status", manager, gin.H{
		"status": "Rejected", "rejection_reason": "missing receipt",
	})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeBody[entity.Invoice](t, w)
	assert.Equal(t, entity.StatusRejected, updated.Status)
	assert.Equal(t, "missing receipt", updated.RejectionReason)

	// Rejection reason lands in the audit trail metadata
	w = env.do(t, http.MethodGet, "/invoice/"+invoice.ID+"/activity", manager, nil)
	trail := decodeBody[[]entity.Activity](t, w)
	require.Len(t, trail, 2)
	assert.Equal(t, entity.ActionRejected, trail[1].Action)
	assert.Equal(t, "missing receipt", trail[1].Metadata)
}

func TestInvoice_EmployeeCannotReview(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	employee, _ := env.register(t, "employee@example.com", "")
	env.createVendor(t, manager, "Acme")
	invoice := env.createInvoice(t, employee, 10, "Acme")

	w := env.do(t, http.MethodPatch, "/invoice/"+invoice.ID+"/status", employee, gin.H{
		"status": "Approved",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/invoice/bulk-status", employee, gin.H{
		"invoice_ids": []string{invoice.ID}, "status": "Approved",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestInvoice_VisibilityScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	alice, _ := env.register(t, "alice@example.com", "")
	bob, _ := env.register(t, "bob@example.com", "")
	env.createVendor(t, manager, "Acme")

	aliceInvoice := env.createInvoice(t, alice, 10, "Acme")
	env.createInvoice(t, bob, 20, "Acme")

	// Employees list only their own invoices
	w := env.do(t, http.MethodGet, "/invoice", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	invoices := decodeBody[[]entity.Invoice](t, w)
	require.Len(t, invoices, 1)
	assert.Equal(t, aliceInvoice.ID, invoices[0].ID)

	// Reviewers see everything
	w = env.do(t, http.MethodGet, "/invoice", manager, nil)
	invoices = decodeBody[[]entity.Invoice](t, w)
	assert.Len(t, invoices, 2)

	// Another owner's invoice reads as absent, not forbidden
	w = env.do(t, http.MethodGet, "/invoice/"+aliceInvoice.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/invoice/"+aliceInvoice.ID+"/activity", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoice_ListFilterAndSort(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	env.createVendor(t, manager, "Acme")
	a := env.createInvoice(t, manager, 10, "Acme")
	env.createInvoice(t, manager, 30, "Acme")

	w := env.do(t, http.MethodPatch, "/invoice/"+a.ID+"/status", manager, gin.H{"status": "Approved"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/invoice?status=Pending", manager, nil)
	invoices := decodeBody[[]entity.Invoice](t, w)
	require.Len(t, invoices, 1)
	assert.Equal(t, entity.StatusPending, invoices[0].Status)

	w = env.do(t, http.MethodGet, "/invoice?sortBy=amount&sortOrder=desc", manager, nil)
	invoices = decodeBody[[]entity.Invoice](t, w)
	require.Len(t, invoices, 2)
	assert.Equal(t, float64(30), invoices[0].Amount)
}

func TestInvoice_Withdraw(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	employee, _ := env.register(t, "employee@example.com", "")
	env.createVendor(t, manager, "Acme")
	invoice := env.createInvoice(t, employee, 10, "Acme")

	// Only the owner may withdraw, even for reviewers
	w := env.do(t, http.MethodPost, "/invoice/"+invoice.ID+"/withdraw", manager, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/invoice/"+invoice.ID+"/withdraw", employee, nil)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeBody[entity.Invoice](t, w)
	assert.Equal(t, entity.StatusWithdrawn, updated.Status)

	// Withdrawn is terminal
	w = env.do(t, http.MethodPost, "/invoice/"+invoice.ID+"/withdraw", employee, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInvoice_Update(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	employee, _ := env.register(t, "employee@example.com", "")
	env.createVendor(t, manager, "Acme")
	invoice := env.createInvoice(t, employee, 10, "Acme")

	w := env.do(t, http.MethodPut, "/invoice/"+invoice.ID, employee, gin.H{
		"amount": 42.0, "description": "corrected", "vendor_name": "Acme",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody[entity.Invoice](t, w)
	assert.Equal(t, 42.0, updated.Amount)
	assert.Equal(t, "corrected", updated.Description)

	// Non-owner (even a reviewer) may not edit
	w = env.do(t, http.MethodPut, "/invoice/"+invoice.ID, manager, gin.H{
		"amount": 1.0, "description": "tampered", "vendor_name": "Acme",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Terminal invoices may not be edited
	w = env.do(t, http.MethodPatch, "/invoice/"+invoice.ID+"/status", manager, gin.H{"status": "Approved"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPut, "/invoice/"+invoice.ID, employee, gin.H{
		"amount": 99.0, "description": "late edit", "vendor_name": "Acme",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInvoice_Delete(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	employee, _ := env.register(t, "employee@example.com", "")
	env.createVendor(t, manager, "Acme")

	approved := env.createInvoice(t, employee, 10, "Acme")
	w := env.do(t, http.MethodPatch, "/invoice/"+approved.ID+"/status", manager, gin.H{"status": "Approved"})
	require.Equal(t, http.StatusOK, w.Code)

	// Approved invoices are immutable records
	w = env.do(t, http.MethodDelete, "/invoice/"+approved.ID, manager, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	pending := env.createInvoice(t, employee, 20, "Acme")
	w = env.do(t, http.MethodDelete, "/invoice/"+pending.ID, employee, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/invoice/"+pending.ID, employee, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/invoice/does-not-exist", employee, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoice_BulkStatusSkipsIneligible(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	env.createVendor(t, manager, "Acme")

	a := env.createInvoice(t, manager, 10, "Acme")
	b := env.createInvoice(t, manager, 20, "Acme")
	c := env.createInvoice(t, manager, 30, "Acme")

	// c is already terminal
	w := env.do(t, http.MethodPatch, "/invoice/"+c.ID+"/status", manager, gin.H{"status": "Approved"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/invoice/bulk-status", manager, gin.H{
		"invoice_ids": []string{a.ID, b.ID, c.ID, "absent-id"},
		"status":      "Approved",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decodeBody[map[string]any](t, w)
	assert.Equal(t, float64(2), result["count"], "only eligible invoices count")

	for _, id := range []string{a.ID, b.ID} {
		w = env.do(t, http.MethodGet, "/invoice/"+id, manager, nil)
		inv := decodeBody[entity.Invoice](t, w)
		assert.Equal(t, entity.StatusApproved, inv.Status)
	}
}

// The test database pool holds a single connection, so the bulk
// handler's per-id reads must run inside its own transaction; a read
// through the pool would wait on the connection the transaction holds.
func TestInvoice_BulkStatusCompletesOnSingleConnection(t *testing.T) {
	env := newTestEnv(t)
	manager, _ := env.register(t, "manager@example.com", entity.RoleManager)
	env.createVendor(t, manager, "Acme")
	a := env.createInvoice(t, manager, 10, "Acme")
	b := env.createInvoice(t, manager, 20, "Acme")

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- env.do(t, http.MethodPost, "/invoice/bulk-status", manager, gin.H{
			"invoice_ids": []string{a.ID, b.ID},
			"status":      "Approved",
		})
	}()

	select {
	case w := <-done:
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		result := decodeBody[map[string]any](t, w)
		assert.Equal(t, float64(2), result["count"])
	case <-time.After(5 * time.Second):
		t.Fatal("bulk status update did not complete; transaction is starving its own reads")
	}
}

func TestVendor_CRUDAndGuards(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.register(t, "admin@example.com", entity.RoleAdmin)
	employee, _ := env.register(t, "employee@example.com", "")

	// Vendor writes are reviewer-only
	w := env.do(t, http.MethodPost, "/vendor", employee, gin.H{"name": "Acme"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	vendor := env.createVendor(t, admin, "Acme")
	assert.Equal(t, entity.VendorActive, vendor.Status)

	// A second active vendor with the same name is refused
	w = env.do(t, http.MethodPost, "/vendor", admin, gin.H{"name": "Acme"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Everyone can read
	w = env.do(t, http.MethodGet, "/vendor", employee, nil)
	require.Equal(t, http.StatusOK, w.Code)
	vendors := decodeBody[[]entity.Vendor](t, w)
	require.Len(t, vendors, 1)

	// Deactivate, then the name becomes available again
	w = env.do(t, http.MethodPut, "/vendor/"+vendor.ID, admin, gin.H{
		"name": "Acme", "status": "Inactive",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/vendor", admin, gin.H{"name": "Acme"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestVendor_InactiveRefusesInvoices(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.register(t, "admin@example.com", entity.RoleAdmin)
	vendor := env.createVendor(t, admin, "Acme")

	w := env.do(t, http.MethodPut, "/vendor/"+vendor.ID, admin, gin.H{
		"name": "Acme", "status": "Inactive",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/invoice", admin, gin.H{
		"amount": 10.0, "description": "expense", "vendor_id": vendor.ID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Name resolution only searches active vendors
	w = env.do(t, http.MethodPost, "/invoice", admin, gin.H{
		"amount": 10.0, "description": "expense", "vendor_name": "Acme",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVendor_DeleteGuardedByInvoices(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.register(t, "admin@example.com", entity.RoleAdmin)
	vendor := env.createVendor(t, admin, "Acme")
	env.createInvoice(t, admin, 10, "Acme")

	w := env.do(t, http.MethodDelete, "/vendor/"+vendor.ID, admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	unused := env.createVendor(t, admin, "Globex")
	w = env.do(t, http.MethodDelete, "/vendor/"+unused.ID, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenService(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)
	user := &entity.User{ID: "u-1", Role: entity.RoleManager}

	signed, err := tokens.Generate(user)
	require.NoError(t, err)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, entity.RoleManager, claims.Role)

	_, err = tokens.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenService("different-secret", time.Hour)
	_, err = other.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenService("secret", -time.Minute)
	signed, err = expired.Generate(user)
	require.NoError(t, err)
	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
