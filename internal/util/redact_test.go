package util

import (
	"strings"
	"testing"
)

func TestRedactSecrets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		in     string
		secret string
	}{
		{name: "bearer", in: `request failed: Authorization: Bearer abc.def.ghi`, secret: "abc.def.ghi"},
		{name: "api_key kv", in: `bad config api_key=sk-123456`, secret: "sk-123456"},
		{name: "gemini env", in: `GEMINI_API_KEY=AIzaSyXXXX not accepted`, secret: "AIzaSyXXXX"},
		{name: "query param", in: `Post "https://generativelanguage.googleapis.com/v1beta/models/m:generateContent?alt=json&key=AIzaSecret": dial tcp: timeout`, secret: "AIzaSecret"},
		{name: "goog header", in: `header x-goog-api-key: AIzaHeader rejected`, secret: "AIzaHeader"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := RedactSecrets(tc.in)
			if strings.Contains(got, tc.secret) {
				t.Fatalf("secret leaked: %q", got)
			}
			if !strings.Contains(got, "redacted") {
				t.Fatalf("expected redaction marker in %q", got)
			}
		})
	}
}

func TestRedactSecrets_LeavesPlainText(t *testing.T) {
	t.Parallel()

	in := "provider returned 503 Service Unavailable"
	if got := RedactSecrets(in); got != in {
		t.Fatalf("expected %q unchanged, got %q", in, got)
	}
	if got := RedactSecrets(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
