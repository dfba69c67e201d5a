// Package config loads the process configuration from the environment.
// The result is an explicit struct constructed once at startup and passed
// to each component constructor; nothing reads the environment after Load.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Redis holds connection settings for the shared cache and queue backend.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Queue holds durable queue defaults.
type Queue struct {
	Name        string
	Attempts    int
	Backoff     string // "exponential" or "fixed"
	Delay       time.Duration
	Concurrency int
}

// Stripe holds billing provider credentials.
type Stripe struct {
	Key           string
	Secret        string
	WebhookSecret string
}

// IntuitAccount identifies the income account assigned to service Items
// the relay creates.
type IntuitAccount struct {
	ID   string
	Name string
}

// Intuit holds ledger API and OAuth settings.
type Intuit struct {
	APIBaseURL   string // https://sandbox-quickbooks.api.intuit.com
	MinorVersion int
	CompanyID    string
	ClientID     string
	ClientSecret string
	Environment  string

	// AuthorizeURL and TokenURL default to the Intuit production OAuth
	// endpoints; tests point them at local servers.
	AuthorizeURL string
	TokenURL     string
	RedirectURL  string

	RefreshInterval     time.Duration
	HealthcheckInterval time.Duration

	Account IntuitAccount
}

// Mail holds SMTP settings for operator alerts.
type Mail struct {
	Host         string
	Port         int
	Username     string
	Password     string
	FromAddress  string
	FromName     string
	AdminAddress string
}

// Routes holds the externally visible route shapes.
type Routes struct {
	Root          string
	Prefix        string
	StripeWebhook string
}

// Config is the root configuration object.
type Config struct {
	Env    string
	Port   int
	Redis  Redis
	Queue  Queue
	Stripe Stripe
	Intuit Intuit
	Mail   Mail
	Routes Routes
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getenv("NODE_ENV", "development"),
		Port: getint("PORT", 4321),
		Redis: Redis{
			Addr:     getenv("DB_REDIS_HOST", "127.0.0.1") + ":" + getenv("DB_REDIS_PORT", "6379"),
			Password: getenv("DB_REDIS_PASSWORD", ""),
			DB:       getint("DB_REDIS_DB", 0),
		},
		Queue: Queue{
			Name:        getenv("QUEUE_NAME", "stripe-webhook"),
			Attempts:    getint("QUEUE_ATTEMPTS", 10),
			Backoff:     getenv("QUEUE_BACKOFF", "exponential"),
			Delay:       getdur("QUEUE_DELAY", 15*time.Second),
			Concurrency: getint("QUEUE_CONCURRENCY", 4),
		},
		Stripe: Stripe{
			Key:           getenv("STRIPE_KEY", ""),
			Secret:        getenv("STRIPE_SECRET", ""),
			WebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Intuit: Intuit{
			APIBaseURL:          getenv("INTUIT_API_BASE_URL", "https://sandbox-quickbooks.api.intuit.com"),
			MinorVersion:        getint("INTUIT_API_MINOR_VERSION", 47),
			CompanyID:           getenv("INTUIT_COMPANY_ID", ""),
			ClientID:            getenv("INTUIT_AUTH_CLIENT_ID", ""),
			ClientSecret:        getenv("INTUIT_AUTH_CLIENT_SECRET", ""),
			Environment:         getenv("INTUIT_ENVIRONMENT", "sandbox"),
			AuthorizeURL:        getenv("INTUIT_AUTHORIZE_URL", "https://appcenter.intuit.com/connect/oauth2"),
			TokenURL:            getenv("INTUIT_TOKEN_URL", "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"),
			RefreshInterval:     getdur("INTUIT_AUTH_AUTO_REFRESH_INTERVAL", 5*time.Minute),
			HealthcheckInterval: getdur("INTUIT_AUTH_AUTO_HEALTHCHECK_INTERVAL", 5*time.Minute),
			Account: IntuitAccount{
				ID:   getenv("INTUIT_SERVICE_ITEM_INCOME_ACCOUNT_ID", "1"),
				Name: getenv("INTUIT_SERVICE_ITEM_INCOME_ACCOUNT_NAME", "Services"),
			},
		},
		Mail: Mail{
			Host:         getenv("MAIL_HOST", "smtp.sendgrid.net"),
			Port:         getint("MAIL_PORT", 587),
			Username:     getenv("MAIL_USERNAME", "apikey"),
			Password:     getenv("MAIL_PASSWORD", ""),
			FromAddress:  getenv("MAIL_FROM_ADDRESS", "connector@example.com"),
			FromName:     getenv("MAIL_FROM_NAME", "Ledger Connector"),
			AdminAddress: getenv("MAIL_ADMIN_ALERT_ADDRESS", ""),
		},
		Routes: Routes{
			Root:          getenv("ROUTE_ROOT", "http://localhost:4321"),
			Prefix:        getenv("ROUTE_PREFIX", "/v1"),
			StripeWebhook: getenv("ROUTE_STRIPE_WEBHOOK", "/stripe/webhook"),
		},
	}

	cfg.Intuit.RedirectURL = getenv("INTUIT_REDIRECT_URL", cfg.Routes.Root+cfg.Routes.Prefix+"/intuit/callback")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Queue.Attempts < 1 {
		return fmt.Errorf("config: QUEUE_ATTEMPTS must be at least 1, got %d", c.Queue.Attempts)
	}
	if c.Queue.Backoff != "exponential" && c.Queue.Backoff != "fixed" {
		return fmt.Errorf("config: QUEUE_BACKOFF must be %q or %q, got %q", "exponential", "fixed", c.Queue.Backoff)
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("config: QUEUE_CONCURRENCY must be at least 1, got %d", c.Queue.Concurrency)
	}
	return nil
}

// AuthorizeConsentURL builds the full Intuit user consent URL.
func (c *Config) AuthorizeConsentURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.Intuit.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", "com.intuit.quickbooks.accounting com.intuit.quickbooks.payment")
	q.Set("redirect_uri", c.Intuit.RedirectURL)
	q.Set("state", state)
	return c.Intuit.AuthorizeURL + "?" + q.Encode()
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getdur(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
