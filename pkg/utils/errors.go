package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"regexp"
	"strings"
)

// --- Fetch taxonomy ---
//
// Every failure surfaced by the fetch state machine wraps exactly one of the
// five sentinels below, so callers only ever branch on these kinds.
var (
	ErrOfflineRequired  = errors.New("cache miss and networking is disabled by policy")
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrNetwork          = errors.New("network error")         // HTTP/transport failure
	ErrInvalidHTML      = errors.New("invalid HTML")          // DOM parse failure (strict mode only)
	ErrCaptchaBlocked   = errors.New("WAF/CAPTCHA suspected") // bot challenge instead of content
)

// --- Media / infrastructure sentinels ---
var (
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger errors
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrConfigValidation = errors.New("configuration validation error")
)

var fetchSentinels = []error{
	ErrOfflineRequired,
	ErrRobotsDisallowed,
	ErrNetwork,
	ErrInvalidHTML,
	ErrCaptchaBlocked,
}

// CaptchaWAFPattern matches markers found in bodies/messages/headers of WAF
// and CAPTCHA challenge pages.
var CaptchaWAFPattern = regexp.MustCompile(`(?i)(captcha|cf-chl|cloudflare|hcaptcha|recaptcha|akamai|incapsula|imperva|robot\s*check|access\s*denied)`)

var parserSignature = regexp.MustCompile(`(?i)(parse|parser|html|dom|token)`)

// ClassifyFetchError maps an arbitrary error raised inside the fetcher to one
// of the five taxonomy sentinels, wrapping the original so callers can still
// unwrap it. Errors already carrying a sentinel pass through unchanged.
func ClassifyFetchError(err error, strictDOM bool) error {
	if err == nil {
		return nil
	}
	for _, s := range fetchSentinels {
		if errors.Is(err, s) {
			return err
		}
	}

	msg := err.Error()

	// Transport-shaped failures first: a challenge fingerprint inside an
	// error message must not shadow a genuine connection failure.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrapSentinel(ErrNetwork, err)
	}
	lower := strings.ToLower(msg)
	for _, sig := range []string{"connection refused", "no such host", "reset by peer", "broken pipe", "tls handshake", "certificate", "timeout", "deadline exceeded", "unexpected eof"} {
		if strings.Contains(lower, sig) {
			return wrapSentinel(ErrNetwork, err)
		}
	}

	if CaptchaWAFPattern.MatchString(msg) {
		return wrapSentinel(ErrCaptchaBlocked, err)
	}

	if strictDOM && parserSignature.MatchString(msg) {
		return wrapSentinel(ErrInvalidHTML, err)
	}

	return wrapSentinel(ErrNetwork, err)
}

func wrapSentinel(sentinel, err error) error {
	return &classifiedError{sentinel: sentinel, cause: err}
}

// classifiedError carries both the taxonomy sentinel and the original cause.
type classifiedError struct {
	sentinel error
	cause    error
}

func (e *classifiedError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *classifiedError) Is(target error) bool {
	return errors.Is(e.sentinel, target)
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

// CategorizeError maps an error to a predefined category string for logging
// and the asset download index.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrOfflineRequired):
		return "Fetch_OfflineRequired"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Fetch_RobotsDisallowed"
	case errors.Is(err, ErrCaptchaBlocked):
		return "Fetch_CaptchaBlocked"
	case errors.Is(err, ErrInvalidHTML):
		return "Fetch_InvalidHTML"
	case errors.Is(err, ErrNetwork):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 429") {
			return "HTTP_429"
		}
		if strings.Contains(errMsg, "status 5") {
			return "HTTP_5xx"
		}
		return "Network_Other"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if strings.Contains(err.Error(), "semaphore") {
			return "Resource_SemaphoreTimeout"
		}
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}

	return "Unknown"
}
