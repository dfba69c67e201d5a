package intuit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRefreshes(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()
	now := time.Now()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":               "refreshed-access",
			"expires_in":                 3600,
			"refresh_token":              "refreshed-refresh",
			"x_refresh_token_expires_in": 8726400,
		})
	}))
	defer srv.Close()

	store, err := NewTokenStore(client, "")
	require.NoError(t, err)
	auth := newTestAuthorizer(t, store, srv.URL, nil, now)

	seedTokens(t, store, Tokens{
		AccessToken:            "stale",
		AccessTokenExpiration:  now.Add(-time.Minute).UnixMilli(),
		RefreshToken:           "rt",
		RefreshTokenExpiration: now.Add(24 * time.Hour).UnixMilli(),
	})

	// Healthcheck disabled; only the refresh chore runs.
	sched := NewScheduler(auth, nil, 20*time.Millisecond, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	persisted, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", persisted.AccessToken)
	assert.Equal(t, "refreshed-refresh", persisted.RefreshToken)
}

// An unrefreshable pair on the schedule never alerts; only on-demand
// refreshes escalate.
func TestSchedulerSuppressesAlerts(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()
	now := time.Now()
	alerts := &fakeAlerts{}

	store, err := NewTokenStore(client, "")
	require.NoError(t, err)
	auth := newTestAuthorizer(t, store, "http://unused", alerts, now)

	sched := NewScheduler(auth, nil, 20*time.Millisecond, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	assert.Empty(t, alerts.subjects)
}
