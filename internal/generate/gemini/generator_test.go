package gemini

import (
	"errors"
	"strings"
	"testing"

	"github.com/outboundkit/mailmerge/internal/generate"
	"google.golang.org/genai"
)

type tempNetErr struct{}

func (tempNetErr) Error() string   { return "temp net err" }
func (tempNetErr) Timeout() bool   { return false }
func (tempNetErr) Temporary() bool { return true }

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name            string
		in              error
		wantUnavailable bool
	}{
		{name: "api_429", in: genai.APIError{Code: 429}, wantUnavailable: true},
		{name: "api_500", in: genai.APIError{Code: 500}, wantUnavailable: true},
		{name: "api_401", in: genai.APIError{Code: 401}, wantUnavailable: false},
		{name: "net_temporary", in: tempNetErr{}, wantUnavailable: true},
		{name: "plain_error", in: errors.New("boom"), wantUnavailable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.in)
			var ue *generate.UnavailableError
			isUnavailable := errors.As(got, &ue)
			if isUnavailable != tt.wantUnavailable {
				t.Fatalf("unavailable=%v want=%v (err=%T %v)", isUnavailable, tt.wantUnavailable, got, got)
			}
		})
	}
}

func TestWrapInstructionsCarriesRenderedPrompt(t *testing.T) {
	rendered := "Write a short intro email to Acme in the Robotics sector."
	full := wrapInstructions(rendered)
	if !strings.Contains(full, rendered) {
		t.Fatalf("wrapped prompt lost the rendered instructions: %q", full)
	}
	if !strings.Contains(full, "only the body") {
		t.Fatalf("wrapped prompt lost the body-only instruction: %q", full)
	}
}
