// Package dispatch wraps the outbound mail transport and classifies each
// delivery attempt into a typed outcome.
package dispatch

import (
	"context"
	"errors"
	"strings"
)

// Transport delivers one message to one recipient. Implementations are
// opaque services; any error reason is carried verbatim into the outcome.
type Transport interface {
	Deliver(ctx context.Context, recipient, subject, body string) error
}

// ReasonMissingRecipient is the outcome reason for rows rejected before the
// transport is ever called.
const ReasonMissingRecipient = "missing recipient"

// Outcome classifies a single delivery attempt.
type Outcome struct {
	Sent   bool
	Reason string
}

// Disabled is a Transport used when no mail backend is configured.
type Disabled struct {
	Reason string
}

func (d Disabled) Deliver(context.Context, string, string, string) error {
	reason := d.Reason
	if reason == "" {
		reason = "mail transport not configured"
	}
	return errors.New(reason)
}

// Dispatch sends one message. An empty or syntactically invalid recipient
// fails fast without touching the transport; a transport error maps to a
// failed outcome with the transport's message. Exactly one transport call
// per invocation, no retry.
func Dispatch(ctx context.Context, t Transport, recipient, subject, body string) Outcome {
	if !ValidRecipient(recipient) {
		return Outcome{Reason: ReasonMissingRecipient}
	}
	if err := t.Deliver(ctx, recipient, subject, body); err != nil {
		return Outcome{Reason: err.Error()}
	}
	return Outcome{Sent: true}
}

// ValidRecipient reports whether addr passes the minimal syntactic check:
// exactly one "@" with non-empty parts on both sides.
func ValidRecipient(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	at := strings.IndexByte(addr, '@')
	if at <= 0 || at != strings.LastIndexByte(addr, '@') {
		return false
	}
	return at < len(addr)-1
}
