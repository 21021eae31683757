package llm

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	header := func(v string) http.Header {
		h := http.Header{}
		if v != "" {
			h.Set("Retry-After", v)
		}
		return h
	}

	assert.Equal(t, 20*time.Second, parseRetryAfter(header("20"), now))
	assert.Equal(t, 90*time.Second, parseRetryAfter(header(now.Add(90*time.Second).Format(http.TimeFormat)), now))
	assert.Zero(t, parseRetryAfter(header(now.Add(-time.Minute).Format(http.TimeFormat)), now))
	assert.Zero(t, parseRetryAfter(header("soon"), now))
	assert.Zero(t, parseRetryAfter(header(""), now))
}

func TestMapStatus(t *testing.T) {
	cause := errors.New("boom")

	var rl *ErrRateLimit
	if assert.ErrorAs(t, mapStatus(429, 5*time.Second, cause), &rl) {
		assert.Equal(t, 5*time.Second, rl.RetryAfter)
	}

	var down *ErrProviderUnavailable
	assert.ErrorAs(t, mapStatus(503, 0, cause), &down)

	rejected := mapStatus(400, 0, cause)
	assert.ErrorIs(t, rejected, cause)
	assert.False(t, errors.As(rejected, &down))
}

func TestGeminiRetryDelay(t *testing.T) {
	err := mapGeminiError(genai.APIError{
		Code: 429,
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "17s"},
		},
	})

	var rl *ErrRateLimit
	if assert.ErrorAs(t, err, &rl) {
		assert.Equal(t, 17*time.Second, rl.RetryAfter)
	}
}
