// Package reliability classifies upstream failures so callers can tell the
// trainee whether starting another call is worth it.
package reliability

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Google API status names that a retry cannot fix.
var permanentStatuses = []string{
	"PERMISSION_DENIED",
	"UNAUTHENTICATED",
	"INVALID_ARGUMENT",
	"NOT_FOUND",
	"FAILED_PRECONDITION",
}

var apiStatusCode = regexp.MustCompile(`\bError (\d{3})\b`)

// IsRetryableError reports whether the failure behind a dropped call or a
// failed evaluation is transient. Unknown errors count as transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.ClosePolicyViolation, websocket.CloseUnsupportedData, websocket.CloseInvalidFramePayloadData:
			return false
		default:
			return true
		}
	}

	msg := err.Error()
	if m := apiStatusCode.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		if code >= 400 {
			return IsRetryableHTTPStatus(code)
		}
	}
	upper := strings.ToUpper(msg)
	for _, status := range permanentStatuses {
		if strings.Contains(upper, status) {
			return false
		}
	}
	return true
}
