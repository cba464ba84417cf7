// Package generate wraps the opaque text-generation service behind typed
// results so the batch loop only inspects outcomes, never control flow.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/outboundkit/mailmerge/internal/contacts"
	"github.com/outboundkit/mailmerge/internal/prompt"
)

// Generator generates a message body from a fully rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// UnavailableError marks a generation-service failure (transport, quota,
// blocked response). Callers substitute fallback content instead of
// aborting the row.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	if e == nil || e.Err == nil {
		return "generation unavailable"
	}
	return "generation unavailable: " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Disabled is a Generator used when no generation backend is configured.
// Every call fails, so every row gets deterministic fallback content.
type Disabled struct {
	Reason string
}

func (d Disabled) Generate(context.Context, string) (string, error) {
	reason := d.Reason
	if reason == "" {
		reason = "generation backend not configured"
	}
	return "", &UnavailableError{Err: errors.New(reason)}
}

// Result is the composed message body for one contact.
type Result struct {
	Body string

	// Fallback is true when Body is substitute content rather than
	// service output.
	Fallback bool

	// Reason explains the fallback. Empty for generated content.
	Reason string
}

// Compose renders template against rec and invokes gen once with the
// rendered prompt. A placeholder mismatch skips the service call entirely;
// a failed call or empty response yields deterministic fallback content.
// The pipeline never stalls or aborts on a generation problem.
func Compose(ctx context.Context, gen Generator, rec contacts.Record, template string) Result {
	rendered, err := prompt.Render(template, rec)
	if err != nil {
		return Result{
			Body:     fallbackBody(rec),
			Fallback: true,
			Reason:   err.Error(),
		}
	}

	body, err := gen.Generate(ctx, rendered)
	if err != nil {
		return Result{
			Body:     fallbackBody(rec),
			Fallback: true,
			Reason:   err.Error(),
		}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Result{
			Body:     fallbackBody(rec),
			Fallback: true,
			Reason:   "generation returned empty content",
		}
	}
	return Result{Body: body}
}

func fallbackBody(rec contacts.Record) string {
	company := rec.Company
	if company == "" {
		company = contacts.CompanyUnknown
	}
	return fmt.Sprintf(
		"Hello %s,\n\nWe wanted to reach out about how we can support your business. Reply to this email and we will follow up with the details.\n",
		company,
	)
}
