package prompt_test

import (
	"errors"
	"testing"

	"github.com/outboundkit/mailmerge/internal/contacts"
	"github.com/outboundkit/mailmerge/internal/prompt"
)

func record(cols contacts.RawRow) contacts.Record {
	return contacts.NewNormalizer(nil).Normalize(cols)
}

func TestRenderSubstitutes(t *testing.T) {
	rec := record(contacts.RawRow{"Email": "a@b.com", "Company Name": "Acme"})
	got, err := prompt.Render("Hi {Company Name}", rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hi Acme" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderMultiplePlaceholders(t *testing.T) {
	rec := record(contacts.RawRow{"Email": "a@b.com", "Company": "Acme", "Industry": "Tech"})
	got, err := prompt.Render("To {companyName} ({Industry}): reach us at {email}.", rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "To Acme (Tech): reach us at a@b.com." {
		t.Fatalf("got %q", got)
	}
}

func TestRenderUnknownPlaceholder(t *testing.T) {
	rec := record(contacts.RawRow{"Email": "a@b.com"})
	_, err := prompt.Render("Hi {Unknown}", rec)
	var pe *prompt.PlaceholderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PlaceholderError, got %v", err)
	}
	if pe.Field != "Unknown" {
		t.Fatalf("expected field Unknown, got %q", pe.Field)
	}
}

func TestRenderUnterminatedBrace(t *testing.T) {
	rec := record(contacts.RawRow{"Email": "a@b.com"})
	if _, err := prompt.Render("Hi {Email", rec); err == nil {
		t.Fatalf("expected error for unterminated placeholder")
	}
}

func TestRenderStrayClosingBrace(t *testing.T) {
	rec := record(contacts.RawRow{"Email": "a@b.com"})
	for _, tmpl := range []string{"Hi } there", "Hi {Email} } bye", "}"} {
		if got, err := prompt.Render(tmpl, rec); err == nil {
			t.Fatalf("Render(%q) = %q, expected error for unmatched brace", tmpl, got)
		}
	}
}

func TestRenderIsNotRecursive(t *testing.T) {
	rec := record(contacts.RawRow{
		"Email":   "a@b.com",
		"Company": "{Email}",
	})
	got, err := prompt.Render("Hi {Company}", rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The substituted value is emitted literally, not re-scanned.
	if got != "Hi {Email}" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	rec := record(contacts.RawRow{"Email": "a@b.com", "Company": "Acme"})
	first, err := prompt.Render("Hi {Company}, from {email}", rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := prompt.Render("Hi {Company}, from {email}", rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("rendering mutated state: %q vs %q", first, second)
	}
}
