package resendmail_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/outboundkit/mailmerge/internal/dispatch/resendmail"
	"github.com/outboundkit/mailmerge/internal/mockmail"
)

func newTransport(t *testing.T, srv *mockmail.Server) *resendmail.Transport {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tr, err := resendmail.New(resendmail.Config{
		APIKey:  "re_test_key",
		From:    "Outreach <outreach@example.com>",
		BaseURL: ts.URL,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestDeliverSendsThroughAPI(t *testing.T) {
	srv := mockmail.New()
	srv.RequireBearerToken("re_test_key")
	tr := newTransport(t, srv)

	err := tr.Deliver(context.Background(), "jane@acme.com", "Regarding Your Business, Acme", "<p>Hello</p>")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	sent := srv.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	msg := sent[0]
	if len(msg.To) != 1 || msg.To[0] != "jane@acme.com" {
		t.Errorf("to = %v", msg.To)
	}
	if msg.Subject != "Regarding Your Business, Acme" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if msg.HTML != "<p>Hello</p>" {
		t.Errorf("html = %q", msg.HTML)
	}
	if msg.From != "Outreach <outreach@example.com>" {
		t.Errorf("from = %q", msg.From)
	}
}

func TestDeliverRejectedRecipient(t *testing.T) {
	srv := mockmail.New()
	srv.RejectRecipient("blocked@acme.com", "recipient address is suppressed")
	tr := newTransport(t, srv)

	err := tr.Deliver(context.Background(), "blocked@acme.com", "s", "b")
	if err == nil {
		t.Fatal("expected an error for a rejected recipient")
	}
	if !strings.Contains(err.Error(), "resend send failed") {
		t.Errorf("error %q does not identify the provider call", err)
	}
	if len(srv.Sent()) != 0 {
		t.Errorf("rejected message was recorded as sent")
	}
}

func TestDeliverBadCredentials(t *testing.T) {
	srv := mockmail.New()
	srv.RequireBearerToken("some-other-key")
	tr := newTransport(t, srv)

	err := tr.Deliver(context.Background(), "jane@acme.com", "s", "b")
	if err == nil {
		t.Fatal("expected an error with bad credentials")
	}
	if len(srv.Sent()) != 0 {
		t.Errorf("unauthorized message was recorded as sent")
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := resendmail.New(resendmail.Config{From: "a@b.com"}); err == nil {
		t.Fatal("expected an error without an API key")
	}
	if _, err := resendmail.New(resendmail.Config{APIKey: "k"}); err == nil {
		t.Fatal("expected an error without a sender address")
	}
}
