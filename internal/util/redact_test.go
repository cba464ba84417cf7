package util

import "testing"

func TestRedactSecrets(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "smtp connect failed: connection refused", "smtp connect failed: connection refused"},
		{"bearer", `401 Unauthorized: Bearer eyJhbGciOiJIUzI1NiJ9.abc.def`, "401 Unauthorized: Bearer <redacted>"},
		{"gemini key", "invalid api_key=AIzaSyFakeKey123", "invalid <redacted_kv>"},
		{"resend key", "auth failed resend_api_key: re_123456", "auth failed <redacted_kv>"},
		{"smtp password", "login error smtp_password=hunter2", "login error <redacted_kv>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RedactSecrets(tc.in); got != tc.want {
				t.Fatalf("RedactSecrets(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
