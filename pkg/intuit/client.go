package intuit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/solarix/connector/pkg/connector"
	"github.com/solarix/connector/pkg/stripeid"
)

const defaultClientHTTPTimeout = 30 * time.Second

// Entity is a loosely typed QuickBooks record, kept as raw JSON structure
// because the relay has no schema control over the remote system.
type Entity = map[string]any

// AuthorizationProvider supplies bearer headers for outbound ledger calls.
type AuthorizationProvider interface {
	AuthorizationHeaders(ctx context.Context) (map[string]string, error)
}

// ClientConfig configures the ledger gateway.
type ClientConfig struct {
	// BaseURL is the API host, e.g. https://sandbox-quickbooks.api.intuit.com.
	BaseURL string
	// CompanyID is the QuickBooks realm the relay writes into.
	CompanyID string
	// MinorVersion is appended to every request.
	MinorVersion int

	Auth       AuthorizationProvider
	HTTPClient *http.Client
	Logger     connector.Logger
	Metrics    connector.Metrics
}

// Client is the generalized CRUD gateway over the QuickBooks v3 API.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	auth    AuthorizationProvider
	log     connector.Logger
	metrics connector.Metrics
}

// NewClient creates a ledger gateway.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.CompanyID == "" {
		return nil, fmt.Errorf("ledger base URL and company id are required")
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("authorization provider is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &connector.NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &connector.NoopMetrics{}
	}
	return &Client{cfg: cfg, http: httpClient, auth: cfg.Auth, log: logger, metrics: metrics}, nil
}

// buildURL assembles an API URL for the given path suffix.
func (c *Client) buildURL(extra string) string {
	sep := "?"
	if strings.Contains(extra, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s/v3/company/%s/%s%sminorversion=%d",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.CompanyID, extra, sep, c.cfg.MinorVersion)
}

// Create POSTs a new record of the given type and returns the created
// representation, including the server-assigned Id and SyncToken.
func (c *Client) Create(ctx context.Context, t EntityType, data Entity) (Entity, error) {
	body, err := c.do(ctx, http.MethodPost, c.buildURL(t.Endpoint), data, t.Name, "create")
	if err != nil {
		return nil, err
	}
	return entityFromResponse(body, t)
}

// Read fetches a record by id. A native numeric id is a direct GET; a
// foreign billing id is normalized and resolved through Find against the
// type's natural-key column.
func (c *Client) Read(ctx context.Context, t EntityType, id string) (Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%s read: empty id", t.Name)
	}
	if stripeid.IsForeign(id) {
		return c.Find(ctx, t, stripeid.Normalize(id, t.RefLength))
	}
	body, err := c.do(ctx, http.MethodGet, c.buildURL(t.Endpoint+"/"+id), nil, t.Name, "read")
	if err != nil {
		return nil, err
	}
	return entityFromResponse(body, t)
}

// Find runs a substring search for value against the type's natural-key
// column (or an explicit override) and returns the first match. Zero
// matches is connector.ErrNotFound, never an empty success.
//
// Substring matching is deliberate: the foreign id is embedded inside
// display/reference fields, not stored in a dedicated column, so an exact
// equality query would never hit.
func (c *Client) Find(ctx context.Context, t EntityType, value string, column ...string) (Entity, error) {
	col := t.QueryColumn
	if len(column) > 0 && column[0] != "" {
		col = column[0]
	}
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s LIKE '%%%s%%'", t.Name, col, escapeQueryValue(value))

	body, err := c.Query(ctx, stmt, t.Name)
	if err != nil {
		return nil, err
	}

	matches := queryMatches(body, t)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s with %s matching %q: %w", t.Name, col, value, connector.ErrNotFound)
	}
	return matches[0], nil
}

// Query executes a raw SELECT statement and returns the response body.
func (c *Client) Query(ctx context.Context, stmt, entity string) (Entity, error) {
	u := c.buildURL("query") + "&query=" + url.QueryEscape(stmt)
	return c.do(ctx, http.MethodGet, u, nil, entity, "query")
}

// Update performs a read-modify-write: it fetches the existing record
// (resolving foreign ids through Find), shallow-merges data over it with
// incoming fields winning, and POSTs the result as a sparse update so
// unspecified fields survive server-side.
//
// There is no distributed lock around the read and the write; two
// concurrent updates to the same record can lose one side's fields. The
// queue's retry policy re-drives failures, but the race itself is an
// accepted limitation.
func (c *Client) Update(ctx context.Context, t EntityType, id string, data Entity) (Entity, error) {
	existing, err := c.Read(ctx, t, id)
	if err != nil {
		return nil, err
	}

	merged := Merge(existing, data)
	merged["sparse"] = true

	body, err := c.do(ctx, http.MethodPost, c.buildURL(t.Endpoint), merged, t.Name, "update")
	if err != nil {
		return nil, err
	}
	return entityFromResponse(body, t)
}

// Delete removes a record for types that support deletion. The record is
// read first so a missing target fails with connector.ErrNotFound instead
// of silently no-opping. Types without true deletion return
// connector.ErrDeleteUnsupported; deactivating those is the dispatcher's
// policy, not the gateway's.
func (c *Client) Delete(ctx context.Context, t EntityType, id string) (Entity, error) {
	existing, err := c.Read(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if !t.SupportsDelete {
		return nil, fmt.Errorf("%s: %w", t.Name, connector.ErrDeleteUnsupported)
	}

	payload := Entity{
		"Id":        existing["Id"],
		"SyncToken": existing["SyncToken"],
	}
	body, err := c.do(ctx, http.MethodPost, c.buildURL(t.Endpoint+"?operation=delete"), payload, t.Name, "delete")
	if err != nil {
		return nil, err
	}
	return body, nil
}

// CompanyInfoRead fetches the company record; the healthcheck uses it as a
// cheap read-only probe of API reachability and authorization.
func (c *Client) CompanyInfoRead(ctx context.Context) (Entity, error) {
	u := c.buildURL(CompanyInfo.Endpoint + "/" + c.cfg.CompanyID)
	body, err := c.do(ctx, http.MethodGet, u, nil, CompanyInfo.Name, "read")
	if err != nil {
		return nil, err
	}
	return entityFromResponse(body, CompanyInfo)
}

// Merge shallow-merges incoming over existing: incoming wins on key
// collision, all other existing fields are preserved.
func Merge(existing, incoming Entity) Entity {
	merged := make(Entity, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

// do performs one authenticated ledger call. Errors take one of three
// shapes: the request could not be built, the request was sent but no
// response arrived, or the server answered outside 2xx. All three carry
// full context and propagate to the caller's retry policy identically.
func (c *Client) do(ctx context.Context, method, u string, payload any, entity, operation string) (Entity, error) {
	start := time.Now()

	headers, err := c.auth.AuthorizationHeaders(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			c.metrics.RecordLedgerCall(entity, operation, "request_error")
			c.log.Error("ledger request could not be built",
				connector.Field{Key: "entity", Value: entity},
				connector.Field{Key: "operation", Value: operation},
				connector.Field{Key: "error", Value: err.Error()},
			)
			return nil, &RequestError{Entity: entity, Operation: operation, Err: err}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		c.metrics.RecordLedgerCall(entity, operation, "request_error")
		c.log.Error("ledger request could not be built",
			connector.Field{Key: "entity", Value: entity},
			connector.Field{Key: "operation", Value: operation},
			connector.Field{Key: "error", Value: err.Error()},
		)
		return nil, &RequestError{Entity: entity, Operation: operation, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordLedgerCall(entity, operation, "network_error")
		c.log.Error("ledger request sent but no response received",
			connector.Field{Key: "entity", Value: entity},
			connector.Field{Key: "operation", Value: operation},
			connector.Field{Key: "url", Value: u},
			connector.Field{Key: "error", Value: err.Error()},
		)
		return nil, &TransportError{Entity: entity, Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordLedgerCall(entity, operation, "network_error")
		return nil, &TransportError{Entity: entity, Operation: operation, Err: err}
	}

	c.metrics.RecordLedgerCall(entity, operation, strconv.Itoa(resp.StatusCode))
	c.metrics.RecordLedgerCallDuration(entity, operation, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("ledger responded with error status",
			connector.Field{Key: "entity", Value: entity},
			connector.Field{Key: "operation", Value: operation},
			connector.Field{Key: "status", Value: resp.StatusCode},
			connector.Field{Key: "body", Value: string(raw)},
		)
		return nil, &APIError{Entity: entity, Operation: operation, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var body Entity
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%s %s: decoding ledger response: %w", entity, operation, err)
	}
	return body, nil
}

// entityFromResponse unwraps the entity object the API nests under its
// type name ({"Customer": {...}, "time": ...}).
func entityFromResponse(body Entity, t EntityType) (Entity, error) {
	inner, ok := body[t.Name].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("malformed ledger response: missing %s object", t.Name)
	}
	return inner, nil
}

// queryMatches extracts the result array from a query response.
func queryMatches(body Entity, t EntityType) []Entity {
	qr, ok := body["QueryResponse"].(map[string]any)
	if !ok {
		return nil
	}
	rows, ok := qr[t.Name].([]any)
	if !ok {
		return nil
	}
	matches := make([]Entity, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(map[string]any); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

// escapeQueryValue escapes single quotes for the ledger query language.
func escapeQueryValue(v string) string {
	return strings.ReplaceAll(v, "'", `\'`)
}
