package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestSecureHandler_SanitizesSensitiveKeys tests that sensitive keys are masked.
func TestSecureHandler_SanitizesSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{name: "cookie key is masked", key: "cookie", value: "session=abc123", wantMask: true},
		{name: "Cookie key (uppercase) is masked", key: "Cookie", value: "session=abc123", wantMask: true},
		{name: "authorization key is masked", key: "authorization", value: "Token abc", wantMask: true},
		{name: "password key is masked", key: "password", value: "hunter2", wantMask: true},
		{name: "site_cookie key is masked", key: "site_cookie", value: "consent=yes", wantMask: true},
		{name: "x-csrf-token header is masked", key: "x-csrf-token", value: "c5rf", wantMask: true},
		{name: "session_id key is masked", key: "session_id", value: "sess_12345", wantMask: true},
		{name: "url key is kept", key: "url", value: "https://stats.example.test/permits", wantMask: false},
		{name: "selection key is kept", key: "selection", value: "Year=2020, State=TX", wantMask: false},
		{name: "axis key is kept", key: "axis", value: "Status", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			NewSecureLogger(&buf, true).Info("test message", tt.key, tt.value)
			output := buf.String()

			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("expected value %q to be masked, but found in output: %s", tt.value, output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("expected mask value %q in output, but not found: %s", MaskValue, output)
				}
				return
			}
			if !strings.Contains(output, tt.value) {
				t.Errorf("expected value %q to be present in output, but not found: %s", tt.value, output)
			}
		})
	}
}

// TestSecureHandler_SanitizesSensitivePatterns tests that credential-looking values are masked.
func TestSecureHandler_SanitizesSensitivePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{name: "bearer token", value: "Bearer abc.def.ghi"},
		{name: "basic auth", value: "Basic dXNlcjpwYXNz"},
		{name: "jwt", value: "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			NewSecureLogger(&buf, true).Info("header", "value", tt.value)
			if strings.Contains(buf.String(), tt.value) {
				t.Errorf("expected %q to be masked: %s", tt.value, buf.String())
			}
		})
	}
}

// TestSecureHandler_ShortensLongValues tests that page dumps do not flood the log.
func TestSecureHandler_ShortensLongValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	markup := "<table>" + strings.Repeat("<tr><td>TX</td><td>10</td></tr>", 40) + "</table>"
	NewSecureLogger(&buf, true).Debug("table read", "html", markup)

	output := buf.String()
	if strings.Contains(output, markup) {
		t.Error("expected the markup to be shortened")
	}
	if !strings.Contains(output, "...") {
		t.Errorf("expected a shortening marker: %s", output)
	}
}

// TestShorten tests the Shorten helper.
func TestShorten(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short string is kept", in: "Granted", n: 10, want: "Granted"},
		{name: "long string is cut", in: "abcdefghij", n: 6, want: "abc..."},
		{name: "whitespace is folded", in: "Year\n  2020", n: 20, want: "Year 2020"},
		{name: "runes are not split", in: "ÄÖÜäöüß", n: 5, want: "ÄÖ..."},
		{name: "tiny limit", in: "abcdef", n: 2, want: ".."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Shorten(tt.in, tt.n); got != tt.want {
				t.Errorf("Shorten(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

// TestSecureHandler_LogLevels tests verbose and quiet levels.
func TestSecureHandler_LogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		verbose    bool
		level      slog.Level
		shouldShow bool
	}{
		{name: "debug hidden when quiet", verbose: false, level: slog.LevelDebug, shouldShow: false},
		{name: "info hidden when quiet", verbose: false, level: slog.LevelInfo, shouldShow: false},
		{name: "warn shown when quiet", verbose: false, level: slog.LevelWarn, shouldShow: true},
		{name: "debug shown when verbose", verbose: true, level: slog.LevelDebug, shouldShow: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			NewSecureLogger(&buf, tt.verbose).Log(t.Context(), tt.level, "level probe")
			if got := strings.Contains(buf.String(), "level probe"); got != tt.shouldShow {
				t.Errorf("shown=%v, want %v", got, tt.shouldShow)
			}
		})
	}
}

// TestSecureHandler_WithAttrs tests that WithAttrs sanitizes attributes.
func TestSecureHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSecureLogger(&buf, true).With("cookie", "session=abc").Info("page opened")

	if strings.Contains(buf.String(), "session=abc") {
		t.Errorf("expected cookie to be masked in WithAttrs: %s", buf.String())
	}
}

// TestSecureHandler_WithGroup tests that grouped attributes are sanitized.
func TestSecureHandler_WithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSecureLogger(&buf, true).WithGroup("request").Info("page opened",
		"url", "https://stats.example.test/", "cookie", "session=abc")

	output := buf.String()
	if !strings.Contains(output, "https://stats.example.test/") {
		t.Errorf("expected url to be visible: %s", output)
	}
	if strings.Contains(output, "session=abc") {
		t.Errorf("expected cookie to be masked: %s", output)
	}
}

// TestNewSecureJSONLogger tests JSON logger creation.
func TestNewSecureJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSecureJSONLogger(&buf, true).Info("test message", "password", "hunter2")

	output := buf.String()
	if !strings.HasPrefix(output, "{") {
		t.Errorf("expected JSON format, but got: %s", output)
	}
	if strings.Contains(output, "hunter2") {
		t.Errorf("expected password to be masked: %s", output)
	}
}

// TestNewSecureHandler_NilHandler tests the nil fallback.
func TestNewSecureHandler_NilHandler(t *testing.T) {
	t.Parallel()

	if h := NewSecureHandler(nil); h.handler == nil {
		t.Error("expected a fallback handler")
	}
}
