// Package smtpmail delivers messages over SMTP, mirroring the submission
// flow most providers expect: STARTTLS on the submission port, or implicit
// TLS when disabled.
package smtpmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

type Config struct {
	Host   string
	Port   int
	Sender string

	// Username/Password enable AUTH PLAIN when both are set.
	Username string
	Password string

	// UseStartTLS upgrades a plain connection via STARTTLS. When false the
	// connection is opened with implicit TLS instead.
	UseStartTLS bool
}

type Transport struct {
	cfg Config
}

func New(cfg Config) (*Transport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("SMTP_HOST is required")
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, fmt.Errorf("SMTP_SENDER_EMAIL is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &Transport{cfg: cfg}, nil
}

func (t *Transport) Deliver(ctx context.Context, recipient, subject, body string) error {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp connect to %s failed: %w", addr, err)
	}

	if !t.cfg.UseStartTLS {
		conn = tls.Client(conn, &tls.Config{ServerName: t.cfg.Host})
	}

	c, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake with %s failed: %w", addr, err)
	}
	defer func() {
		_ = c.Close()
	}()

	if t.cfg.UseStartTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("smtp server %s does not support STARTTLS", addr)
		}
		if err := c.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
			return fmt.Errorf("smtp STARTTLS with %s failed: %w", addr, err)
		}
	}

	if t.cfg.Username != "" && t.cfg.Password != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed for user %s: %w", t.cfg.Username, err)
		}
	}

	if err := c.Mail(t.cfg.Sender); err != nil {
		return fmt.Errorf("smtp sender %s rejected: %w", t.cfg.Sender, err)
	}
	if err := c.Rcpt(recipient); err != nil {
		return fmt.Errorf("smtp recipient %s rejected: %w", recipient, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data command failed: %w", err)
	}
	if _, err := w.Write(buildMessage(t.cfg.Sender, recipient, subject, body)); err != nil {
		return fmt.Errorf("smtp write message failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp finish message failed: %w", err)
	}
	return c.Quit()
}

// buildMessage assembles an HTML message with CRLF line endings as required
// by RFC 5322.
func buildMessage(sender, recipient, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + sender + "\r\n")
	b.WriteString("To: " + recipient + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// sanitizeHeader strips CR/LF so row data can never inject extra headers.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return v
}
