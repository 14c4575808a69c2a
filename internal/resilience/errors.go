package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
)

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, a vendor API error with a retryable status, or a common
// network-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Explicit TransientError in chain.
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	// OpenAI SDK errors carry the HTTP status.
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		return IsTransientHTTPStatus(oaErr.HTTPStatusCode)
	}

	// Network-level transient errors.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection reset / refused / aborted.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients. The
	// Anthropic and Gemini SDKs surface rate limits and overloads as plain
	// wrapped errors, so status substrings are matched here too.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
		"rate limit",
		"rate_limit_error",
		"overloaded_error",
		"status 429",
		"status 500",
		"status 502",
		"status 503",
		"status 529",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504, // Gateway Timeout
		529: // Anthropic overloaded
		return true
	default:
		return false
	}
}
