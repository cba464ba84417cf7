// Package resendmail delivers messages through the Resend API.
package resendmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
)

type Config struct {
	APIKey string
	From   string

	// BaseURL overrides the Resend API base URL. Useful for the mock mail
	// API server and tests.
	BaseURL string
}

type Transport struct {
	client *resend.Client
	from   string
}

func New(cfg Config) (*Transport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("MAIL_FROM is required")
	}

	client := resend.NewClient(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid RESEND_BASE_URL: %w", err)
		}
		client.BaseURL = u
	}

	return &Transport{
		client: client,
		from:   strings.TrimSpace(cfg.From),
	}, nil
}

func (t *Transport) Deliver(ctx context.Context, recipient, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    t.from,
		To:      []string{recipient},
		Subject: subject,
		Html:    body,
	}

	sent, err := t.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}

	slog.Debug("resend_sent", "message_id", sent.Id, "to", recipient, "subject", subject)
	return nil
}
