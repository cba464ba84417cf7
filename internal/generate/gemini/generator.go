// Package gemini generates message bodies with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/outboundkit/mailmerge/internal/generate"
	"google.golang.org/genai"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

type Generator struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Generator{
		client: client,
		model:  strings.TrimSpace(cfg.Model),
	}, nil
}

// Generate asks the model for an email body built from the rendered
// instructions. The response is plain text; an empty or blocked response is
// reported as unavailable so the caller substitutes fallback content.
func (g *Generator) Generate(ctx context.Context, rendered string) (string, error) {
	if strings.TrimSpace(rendered) == "" {
		return "", errors.New("empty prompt")
	}

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(wrapInstructions(rendered)),
		&genai.GenerateContentConfig{
			CandidateCount: 1,
		},
	)
	if err != nil {
		return "", classifyErr(err)
	}

	body := strings.TrimSpace(resp.Text())
	if body == "" {
		return "", &generate.UnavailableError{Err: errors.New("model returned no text content")}
	}
	return body, nil
}

func wrapInstructions(rendered string) string {
	// Keep this prompt public-safe: the rendered instructions already carry
	// the per-contact data, nothing else is embedded.
	return strings.TrimSpace(`
Generate a professional and personalized outreach email following the instructions below.

Instructions:
` + rendered + `

Generate only the body of the email, with no subject line and no surrounding commentary.
`)
}

func classifyErr(err error) error {
	// Wrap quota and server-side failures so the pipeline substitutes
	// fallback content instead of surfacing a hard error per row.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &generate.UnavailableError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && (ne.Timeout() || ne.Temporary()) {
		return &generate.UnavailableError{Err: err}
	}
	return err
}
