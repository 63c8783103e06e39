package assistant

import (
	"errors"
	"testing"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()

	if cfg.MaxRetries <= 0 {
		t.Errorf("MaxRetries should be positive, got %d", cfg.MaxRetries)
	}
	if cfg.InitialInterval <= 0 {
		t.Errorf("InitialInterval should be positive, got %v", cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		t.Error("MaxInterval should be >= InitialInterval")
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "rate limit error",
			err:  errors.New("rate limit exceeded"),
			want: true,
		},
		{
			name: "quota exceeded error",
			err:  errors.New("quota exceeded for project"),
			want: true,
		},
		{
			name: "429 status code",
			err:  errors.New("HTTP 429: Too Many Requests"),
			want: true,
		},
		{
			name: "503 unavailable",
			err:  errors.New("503 Service Unavailable"),
			want: true,
		},
		{
			name: "connection reset",
			err:  errors.New("connection reset by peer"),
			want: true,
		},
		{
			name: "timeout error",
			err:  errors.New("request timeout"),
			want: true,
		},
		{
			name: "case insensitive rate limit",
			err:  errors.New("RATE LIMIT reached"),
			want: true,
		},
		{
			name: "invalid api key is not retryable",
			err:  errors.New("invalid API key"),
			want: false,
		},
		{
			name: "bad request is not retryable",
			err:  errors.New("HTTP 400 Bad Request"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	if !containsAny("Service Unavailable", "unavailable") {
		t.Error("expected case-insensitive match")
	}
	if containsAny("all good", "429", "timeout") {
		t.Error("expected no match")
	}
}
