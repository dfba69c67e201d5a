package intuit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarix/connector/pkg/connector"
)

// staticAuth satisfies AuthorizationProvider without touching Redis.
type staticAuth struct{}

func (staticAuth) AuthorizationHeaders(_ context.Context) (map[string]string, error) {
	return map[string]string{"Authorization": "Bearer test-token"}, nil
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:      srv.URL,
		CompanyID:    "12345",
		MinorVersion: 47,
		Auth:         staticAuth{},
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)
	return client, srv
}

func queryResponse(t *testing.T, entity string, rows ...map[string]any) []byte {
	t.Helper()
	items := make([]any, 0, len(rows))
	for _, r := range rows {
		items = append(items, r)
	}
	raw, err := json.Marshal(map[string]any{
		"QueryResponse": map[string]any{entity: items},
	})
	require.NoError(t, err)
	return raw
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{BaseURL: "https://example.com", CompanyID: "1"})
	assert.Error(t, err, "authorization provider is required")

	c, err := NewClient(ClientConfig{BaseURL: "https://example.com", CompanyID: "1", Auth: staticAuth{}})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClientCreate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "47", r.URL.Query().Get("minorversion"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"Customer": map[string]any{"Id": "58", "SyncToken": "0", "DisplayName": gotBody["DisplayName"]},
		})
	}))

	created, err := client.Create(context.Background(), Customer, Entity{"DisplayName": "Jane Doe [cus_ABC123]"})
	require.NoError(t, err)

	assert.Equal(t, "/v3/company/12345/customer", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "58", created["Id"])
	assert.Equal(t, "Jane Doe [cus_ABC123]", created["DisplayName"])
}

func TestClientReadNativeID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/12345/customer/58", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Customer": map[string]any{"Id": "58"},
		})
	}))

	got, err := client.Read(context.Background(), Customer, "58")
	require.NoError(t, err)
	assert.Equal(t, "58", got["Id"])
}

// Foreign billing ids are resolved through the natural-key query, with the
// id truncated to the column's length limit before matching.
func TestClientReadForeignID(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/12345/query", r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		_, _ = w.Write(queryResponse(t, "Invoice", map[string]any{"Id": "203", "DocNumber": "in_1MtHbELkdIwHu7ixl"}))
	}))

	got, err := client.Read(context.Background(), Invoice, "in_1MtHbELkdIwHu7ixl4OzzPMv")
	require.NoError(t, err)
	assert.Equal(t, "203", got["Id"])
	assert.Equal(t, "SELECT * FROM Invoice WHERE DocNumber LIKE '%in_1MtHbELkdIwHu7ixl%'", gotQuery)
}

func TestClientFindNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Zero matches comes back as an empty QueryResponse.
		_ = json.NewEncoder(w).Encode(map[string]any{"QueryResponse": map[string]any{}})
	}))

	_, err := client.Find(context.Background(), Customer, "cus_MISSING")
	require.Error(t, err)
	assert.ErrorIs(t, err, connector.ErrNotFound)
}

// Substring matching means a short id embedded in a longer one resolves to
// the first row the ledger returns. The ordering is the ledger's, not ours.
func TestFindPrefixCollision(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(queryResponse(t, "Item",
			map[string]any{"Id": "11", "Sku": "prod_AB.plan_XY1"},
			map[string]any{"Id": "12", "Sku": "prod_AB.plan_XY12"},
		))
	}))

	got, err := client.Find(context.Background(), Item, "plan_XY1")
	require.NoError(t, err)
	assert.Equal(t, "11", got["Id"])
}

func TestClientFindEscapesQuotes(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		_, _ = w.Write(queryResponse(t, "Customer", map[string]any{"Id": "7"}))
	}))

	_, err := client.Find(context.Background(), Customer, "O'Brien")
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM Customer WHERE DisplayName LIKE '%O\'Brien%'`, gotQuery)
}

// Update reads first, merges with incoming fields winning, and posts the
// result as a sparse update.
func TestClientUpdate(t *testing.T) {
	var posted map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"Customer": map[string]any{
					"Id": "58", "SyncToken": "3",
					"DisplayName": "Old Name [cus_ABC123]",
					"CompanyName": "Acme",
				},
			})
		default:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"Customer": map[string]any{"Id": "58", "SyncToken": "4"},
			})
		}
	}))

	_, err := client.Update(context.Background(), Customer, "58", Entity{"DisplayName": "New Name [cus_ABC123]"})
	require.NoError(t, err)

	assert.Equal(t, "New Name [cus_ABC123]", posted["DisplayName"])
	assert.Equal(t, "Acme", posted["CompanyName"])
	assert.Equal(t, "3", posted["SyncToken"])
	assert.Equal(t, true, posted["sparse"])
}

func TestClientUpdateMissingRecord(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"QueryResponse": map[string]any{}})
	}))

	_, err := client.Update(context.Background(), Customer, "cus_MISSING", Entity{"Active": false})
	assert.ErrorIs(t, err, connector.ErrNotFound)
}

func TestClientDelete(t *testing.T) {
	var posted map[string]any
	var deleteQuery url.Values
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_, _ = w.Write(queryResponse(t, "Invoice", map[string]any{"Id": "203", "SyncToken": "1"}))
		default:
			deleteQuery = r.URL.Query()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"Invoice": map[string]any{"Id": "203", "status": "Deleted"},
			})
		}
	}))

	_, err := client.Delete(context.Background(), Invoice, "in_1MtHbE")
	require.NoError(t, err)

	assert.Equal(t, "delete", deleteQuery.Get("operation"))
	assert.Equal(t, "203", posted["Id"])
	assert.Equal(t, "1", posted["SyncToken"])
}

func TestClientDeleteUnsupportedType(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(queryResponse(t, "Customer", map[string]any{"Id": "58", "SyncToken": "0"}))
	}))

	_, err := client.Delete(context.Background(), Customer, "cus_ABC123")
	assert.ErrorIs(t, err, connector.ErrDeleteUnsupported)
}

func TestClientDeleteMissingRecord(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"QueryResponse": map[string]any{}})
	}))

	_, err := client.Delete(context.Background(), Invoice, "in_MISSING")
	assert.ErrorIs(t, err, connector.ErrNotFound)
}

func TestClientAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Fault":{"Error":[{"Message":"Invalid account"}]}}`))
	}))

	_, err := client.Create(context.Background(), Customer, Entity{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Invalid account")
}

func TestMerge(t *testing.T) {
	existing := Entity{"A": 1, "B": 2}
	incoming := Entity{"B": 3, "C": 4}

	merged := Merge(existing, incoming)

	assert.Equal(t, Entity{"A": 1, "B": 3, "C": 4}, merged)
	// Inputs are never mutated.
	assert.Equal(t, Entity{"A": 1, "B": 2}, existing)
	assert.Equal(t, Entity{"B": 3, "C": 4}, incoming)
}
