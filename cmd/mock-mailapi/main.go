package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/outboundkit/mailmerge/internal/mockmail"
)

func main() {
	addr := defaultString("MOCK_MAILAPI_ADDR", ":8090")
	token := defaultString("MOCK_MAILAPI_TOKEN", "")
	rejects := defaultString("MOCK_MAILAPI_REJECT", "")

	fs := flag.NewFlagSet("mock-mailapi", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&token, "token", token, "Require this bearer token on every request (empty disables auth)")
	fs.StringVar(&rejects, "reject", rejects, "Comma-separated recipient addresses to reject with a validation error")
	_ = fs.Parse(os.Args[1:])

	srv := mockmail.New()
	srv.RequireBearerToken(token)
	for _, rcpt := range splitCSV(rejects) {
		srv.RejectRecipient(rcpt, "recipient address is suppressed")
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-mailapi listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
