package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptchaSuspected_StatusCodes(t *testing.T) {
	blocked := []int{401, 403, 429, 451, 503, 520, 521, 522, 523, 524, 525, 526}
	for _, code := range blocked {
		assert.True(t, CaptchaSuspected(code, nil), "status %d should look like a challenge", code)
	}

	clean := []int{200, 201, 301, 302, 400, 404, 410, 500, 502}
	for _, code := range clean {
		assert.False(t, CaptchaSuspected(code, []byte("<html><body>3 bed 2 bath</body></html>")),
			"status %d should not look like a challenge", code)
	}
}

func TestCaptchaSuspected_BodyMarkers(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"recaptcha widget", `<div class="g-recaptcha" data-sitekey="x"></div>`, true},
		{"cloudflare challenge", `<title>Just a moment...</title><script src="/cdn-cgi/challenge-platform/cf-chl.js">`, true},
		{"hcaptcha", `please solve the hCaptcha below`, true},
		{"robot check", `Robot Check: type the characters you see`, true},
		{"access denied", `<h1>Access Denied</h1>`, true},
		{"plain listing", `<h1>123 Main St</h1><p>Charming bungalow with updated kitchen.</p>`, false},
		{"empty body", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CaptchaSuspected(200, []byte(tt.body)))
		})
	}
}
