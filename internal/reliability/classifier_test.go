package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRetryableHTTPStatus(tc.code), tc.code)
	}
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("open: %w", context.Canceled), false},
		{"deadline", fmt.Errorf("evaluate: %w", context.DeadlineExceeded), true},
		{"quota", errors.New("Error 429, Message: quota exceeded, Status: RESOURCE_EXHAUSTED"), true},
		{"bad key", errors.New("Error 400, Message: API key not valid, Status: INVALID_ARGUMENT"), false},
		{"forbidden", errors.New("Error 403, Message: denied, Status: PERMISSION_DENIED"), false},
		{"status only", errors.New("rpc failed: UNAUTHENTICATED"), false},
		{"ws internal", &websocket.CloseError{Code: websocket.CloseInternalServerErr}, true},
		{"ws policy", fmt.Errorf("live: %w", &websocket.CloseError{Code: websocket.ClosePolicyViolation}), false},
		{"unknown", errors.New("stream reset"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryableError(tc.err))
		})
	}
}
