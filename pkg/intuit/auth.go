package intuit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/solarix/connector/pkg/connector"
)

const defaultAuthHTTPTimeout = 10 * time.Second

// AlertSender delivers operator alerts when authorization decays beyond
// automatic repair.
type AlertSender interface {
	SendAdminAlert(ctx context.Context, subject, body string) error
}

// AuthorizerConfig configures the token manager.
type AuthorizerConfig struct {
	ClientID     string
	ClientSecret string

	// TokenURL is the OAuth token exchange endpoint.
	TokenURL string
	// RedirectURL is the registered OAuth redirect, required for the
	// authorization-code exchange.
	RedirectURL string
	// ReauthorizeURL is the manual authorization route included in
	// operator alerts.
	ReauthorizeURL string

	Store      *TokenStore
	HTTPClient *http.Client
	Alerts     AlertSender
	Logger     connector.Logger
	Metrics    connector.Metrics

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Authorizer maintains the OAuth2 credential pair for the ledger API. It
// never trusts in-memory state alone: every read goes back to the shared
// cache, since other worker processes refresh the same pair.
type Authorizer struct {
	cfg     AuthorizerConfig
	store   *TokenStore
	http    *http.Client
	alerts  AlertSender
	log     connector.Logger
	metrics connector.Metrics
	now     func() time.Time
}

// RefreshOptions controls a single refresh attempt.
type RefreshOptions struct {
	// SendAlerts escalates a terminally invalid pair to the operator.
	// Scheduled refreshes suppress it; on-demand refreshes leave it on.
	SendAlerts bool
}

// NewAuthorizer creates a token manager.
func NewAuthorizer(cfg AuthorizerConfig) (*Authorizer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("oauth client credentials are required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultAuthHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &connector.NoopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &connector.NoopMetrics{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Authorizer{
		cfg:     cfg,
		store:   cfg.Store,
		http:    httpClient,
		alerts:  cfg.Alerts,
		log:     logger,
		metrics: metrics,
		now:     now,
	}, nil
}

// AuthorizationHeaders returns a bearer header for the ledger API.
// It re-reads the shared cache on every call and fails with
// connector.ErrAuthorizationInvalid when no unexpired access token exists.
// This path deliberately never refreshes; repair belongs to Refresh so a
// read can never race a refresh it triggered itself.
func (a *Authorizer) AuthorizationHeaders(ctx context.Context) (map[string]string, error) {
	tokens, err := a.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !tokens.AccessValid(a.now()) {
		a.log.Error("cannot obtain valid intuit authorization; manual authorization required")
		return nil, connector.ErrAuthorizationInvalid
	}
	return map[string]string{"Authorization": "Bearer " + tokens.AccessToken}, nil
}

// oauthTokenResponse is the Intuit token endpoint payload.
type oauthTokenResponse struct {
	AccessToken            string `json:"access_token"`
	ExpiresIn              int64  `json:"expires_in"`
	RefreshToken           string `json:"refresh_token"`
	XRefreshTokenExpiresIn int64  `json:"x_refresh_token_expires_in"`
	TokenType              string `json:"token_type"`
}

// Refresh exchanges the persisted refresh token for a new pair and stores
// it via field-level merge. An unrefreshable pair escalates to the
// operator unless opts suppresses alerts.
func (a *Authorizer) Refresh(ctx context.Context, opts RefreshOptions) (*Tokens, error) {
	tokens, err := a.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !tokens.Refreshable(a.now()) {
		a.metrics.RecordTokenRefresh("invalid")
		a.handleInvalidAuthorization(ctx, opts)
		return nil, connector.ErrRefreshTokenExpired
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", tokens.RefreshToken)

	refreshed, err := a.exchange(ctx, form)
	if err != nil {
		a.metrics.RecordTokenRefresh("error")
		a.log.Error("intuit token refresh failed", connector.Field{Key: "error", Value: err.Error()})
		return nil, err
	}

	a.metrics.RecordTokenRefresh("success")
	return refreshed, nil
}

// ExchangeCode trades an authorization code from the OAuth callback for a
// token pair and persists it. This is the manual consent path that seeds
// the pair in the first place.
func (a *Authorizer) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.cfg.RedirectURL)

	return a.exchange(ctx, form)
}

func (a *Authorizer) exchange(ctx context.Context, form url.Values) (*Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(a.cfg.ClientID, a.cfg.ClientSecret)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body oauthTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return a.store.Merge(ctx, tokensFromOAuth(
		body.AccessToken, body.RefreshToken, body.ExpiresIn, body.XRefreshTokenExpiresIn, a.now(),
	))
}

// handleInvalidAuthorization logs the terminal state and emails the
// operator a manual reauthorization link.
func (a *Authorizer) handleInvalidAuthorization(ctx context.Context, opts RefreshOptions) {
	a.log.Error("cannot obtain valid intuit authorization; manual authorization required")
	if !opts.SendAlerts || a.alerts == nil {
		return
	}
	body := fmt.Sprintf(
		"<h2>ALERT</h2><p>The connector requires a manual refresh of the Intuit API authorization.</p>"+
			"<p><a href=%q>Click here to manually authorize.</a></p>",
		a.cfg.ReauthorizeURL,
	)
	if err := a.alerts.SendAdminAlert(ctx, "Connector Intuit API Authorization", body); err != nil {
		a.log.Error("admin alert delivery failed", connector.Field{Key: "error", Value: err.Error()})
	}
}
