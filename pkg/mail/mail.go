// Package mail sends operator alerts over SMTP. The connector only ever
// mails its own administrators, so the surface is a single alert call.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/solarix/connector/pkg/connector"
)

// Config configures the SMTP mailer.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// FromAddress and FromName form the From header.
	FromAddress string
	FromName    string

	// AdminAddress receives every alert.
	AdminAddress string

	Logger connector.Logger

	// send replaces smtp.SendMail in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Mailer delivers admin alerts over SMTP.
type Mailer struct {
	cfg Config
}

// NewMailer creates a mailer. Host and AdminAddress are required.
func NewMailer(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail: SMTP host is required")
	}
	if cfg.AdminAddress == "" {
		return nil, fmt.Errorf("mail: admin address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.FromAddress == "" {
		cfg.FromAddress = cfg.Username
	}
	if cfg.Logger == nil {
		cfg.Logger = &connector.NoopLogger{}
	}
	if cfg.send == nil {
		cfg.send = smtp.SendMail
	}
	return &Mailer{cfg: cfg}, nil
}

// SendAdminAlert mails an HTML alert to the configured admin address.
func (m *Mailer) SendAdminAlert(ctx context.Context, subject, htmlBody string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	from := m.cfg.FromAddress
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromAddress)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", m.cfg.AdminAddress)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.cfg.send(addr, auth, m.cfg.FromAddress, []string{m.cfg.AdminAddress}, []byte(msg.String())); err != nil {
		m.cfg.Logger.Error("admin alert delivery failed",
			connector.Field{Key: "subject", Value: subject},
			connector.Field{Key: "error", Value: err.Error()})
		return fmt.Errorf("send admin alert: %w", err)
	}

	m.cfg.Logger.Info("admin alert sent",
		connector.Field{Key: "subject", Value: subject},
		connector.Field{Key: "to", Value: m.cfg.AdminAddress})
	return nil
}
