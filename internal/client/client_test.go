package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"github.com/vendorpay/expenseflow/internal/schema"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL}, zap.NewNop())
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})
	c.SetToken("tok-123")

	_, err := c.ListInvoices(context.Background(), ListInvoicesParams{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestClient_NoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})

	_, err := c.ListVendors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_ListInvoicesSendsFilterParams(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	})

	_, err := c.ListInvoices(context.Background(), ListInvoicesParams{
		Status: entity.StatusPending,
		SortBy: "createdAt",
	})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "status=Pending")
	assert.Contains(t, gotQuery, "sortBy=createdAt")
	assert.NotContains(t, gotQuery, "search", "empty params must be omitted")
}

func TestClient_UnauthorizedTearsDownSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"token expired"}`))
	})
	c.SetToken("stale")

	fired := 0
	c.OnUnauthorized(func() { fired++ })

	_, err := c.GetInvoice(context.Background(), "1")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, fired, "teardown hook must fire exactly once")
	assert.Empty(t, c.currentToken(), "stored token must be cleared")
}

func TestClient_NotFoundMapsToErrNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetInvoice(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ServerErrorMessageSurfaced(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error field", http.StatusConflict, `{"error":"invoice is not Pending"}`, "invoice is not Pending"},
		{"message field", http.StatusForbidden, `{"message":"reviewer role required"}`, "reviewer role required"},
		{"unparseable body", http.StatusBadGateway, `<html>bad gateway</html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.GetInvoice(context.Background(), "1")
			require.Error(t, err)

			msg, ok := ServerMessage(err)
			if tt.message == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.message, msg)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestClient_MalformedListIsSchemaMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"1","amount":"not-a-number"}]`))
	})

	_, err := c.ListInvoices(context.Background(), ListInvoicesParams{})
	require.ErrorIs(t, err, schema.ErrSchemaMismatch)
}

func TestClient_EmptyListIsNonNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	invoices, err := c.ListInvoices(context.Background(), ListInvoicesParams{})
	require.NoError(t, err)
	assert.NotNil(t, invoices)
	assert.Empty(t, invoices)
}

func TestClient_LoginStoresToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@b.c", creds["email"])

		json.NewEncoder(w).Encode(map[string]any{
			"token": "tok-456",
			"user": map[string]any{
				"id":    "u-1",
				"name":  "Alice",
				"email": "a@b.c",
				"role":  "Employee",
			},
		})
	})

	session, err := c.Login(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-456", session.Token)
	assert.Equal(t, "tok-456", c.currentToken(), "token must be installed for subsequent calls")
	assert.Equal(t, entity.RoleEmployee, session.User.Role)
}

func TestClient_LoginRejectsTokenlessResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"id":"u-1","name":"Alice","email":"a@b.c","role":"Employee"}}`))
	})

	_, err := c.Login(context.Background(), "a@b.c", "secret")
	require.ErrorIs(t, err, schema.ErrSchemaMismatch)
}

func TestClient_UpdateStatusUsesPatch(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":"7","amount":10,"description":"d","vendor_id":"v-1","status":"Approved","owner_id":"u-1"}`))
	})

	inv, err := c.UpdateInvoiceStatus(context.Background(), "7", StatusUpdateInput{Status: entity.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/invoice/7/status", gotPath)
	assert.Equal(t, entity.StatusApproved, inv.Status)
}

func TestClient_WithdrawAndBulkPaths(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/invoice/7/withdraw":
			w.Write([]byte(`{"id":"7","amount":10,"description":"d","vendor_id":"v-1","status":"Withdrawn","owner_id":"u-1"}`))
		case "/invoice/bulk-status":
			w.Write([]byte(`{"message":"status updated","count":2}`))
		}
	})

	_, err := c.WithdrawInvoice(context.Background(), "7")
	require.NoError(t, err)

	result, err := c.BulkUpdateStatus(context.Background(), BulkStatusInput{
		InvoiceIDs: []string{"1", "2"},
		Status:     entity.StatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	assert.Equal(t, []string{
		"POST /invoice/7/withdraw",
		"POST /invoice/bulk-status",
	}, paths)
}

func TestClient_DeleteInvoice(t *testing.T) {
	var gotMethod string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteInvoice(context.Background(), "3"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestParamsFromFilter_RoundTrip(t *testing.T) {
	params := ListInvoicesParams{
		Status:    entity.StatusPending,
		SortBy:    "amount",
		SortOrder: "desc",
		Search:    "taxi",
	}
	got := ParamsFromFilter(params.Filter())
	assert.Equal(t, params, got)
}
