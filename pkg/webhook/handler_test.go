package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"

	"github.com/solarix/connector/pkg/connector"
)

const testSecret = "whsec_test_secret"

type fakeEnqueuer struct {
	events []connector.BillingEvent
	err    error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, ev connector.BillingEvent) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.events = append(f.events, ev)
	return "job-123", nil
}

// signPayload produces a Stripe-Signature header for the payload.
func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return raw
}

func newTestHandler(t *testing.T, q Enqueuer) *Handler {
	t.Helper()
	h, err := NewHandler(Config{SigningSecret: testSecret, Queue: q})
	require.NoError(t, err)
	return h
}

func post(h *Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/stripe/webhook", strings.NewReader(string(payload)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(Config{Queue: &fakeEnqueuer{}})
	assert.Error(t, err)

	_, err = NewHandler(Config{SigningSecret: testSecret})
	assert.Error(t, err)
}

func TestHandlerQueuesRecognizedEvent(t *testing.T) {
	q := &fakeEnqueuer{}
	h := newTestHandler(t, q)

	payload := eventPayload(t, "evt_1", "customer.created", map[string]any{"id": "cus_ABC123"})
	rec := post(h, payload, signPayload(payload, testSecret, time.Now()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Job (job-123) queued."}`, rec.Body.String())

	require.Len(t, q.events, 1)
	assert.Equal(t, "evt_1", q.events[0].ID)
	assert.Equal(t, connector.CustomerCreated, q.events[0].Kind)
	assert.Equal(t, "cus_ABC123", q.events[0].Payload["id"])
}

// Unrecognized event types are acknowledged so the provider stops
// retrying, but nothing reaches the queue.
func TestHandlerIgnoresUnrecognizedEvent(t *testing.T) {
	q := &fakeEnqueuer{}
	h := newTestHandler(t, q)

	payload := eventPayload(t, "evt_2", "charge.refunded", map[string]any{"id": "ch_1"})
	rec := post(h, payload, signPayload(payload, testSecret, time.Now()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Event ignored."}`, rec.Body.String())
	assert.Empty(t, q.events)
}

func TestHandlerRejectsBadSignature(t *testing.T) {
	q := &fakeEnqueuer{}
	h := newTestHandler(t, q)

	payload := eventPayload(t, "evt_3", "customer.created", map[string]any{"id": "cus_X"})

	rec := post(h, payload, signPayload(payload, "whsec_wrong_secret", time.Now()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, q.events)

	rec = post(h, payload, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerRejectsStaleTimestamp(t *testing.T) {
	q := &fakeEnqueuer{}
	h := newTestHandler(t, q)

	payload := eventPayload(t, "evt_4", "customer.created", map[string]any{"id": "cus_X"})
	rec := post(h, payload, signPayload(payload, testSecret, time.Now().Add(-time.Hour)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, q.events)
}

func TestHandlerDuplicateEvent(t *testing.T) {
	q := &fakeEnqueuer{err: fmt.Errorf("event evt_5: %w", connector.ErrDuplicateJob)}
	h := newTestHandler(t, q)

	payload := eventPayload(t, "evt_5", "customer.created", map[string]any{"id": "cus_X"})
	rec := post(h, payload, signPayload(payload, testSecret, time.Now()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Event already queued."}`, rec.Body.String())
}

func TestHandlerEnqueueFailure(t *testing.T) {
	q := &fakeEnqueuer{err: fmt.Errorf("redis connection refused")}
	h := newTestHandler(t, q)

	payload := eventPayload(t, "evt_6", "customer.created", map[string]any{"id": "cus_X"})
	rec := post(h, payload, signPayload(payload, testSecret, time.Now()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &fakeEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/v1/stripe/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlerEmptyBody(t *testing.T) {
	h := newTestHandler(t, &fakeEnqueuer{})

	rec := post(h, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
