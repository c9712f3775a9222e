package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/reagent/llm"
	"github.com/BaSui01/reagent/types"
)

func TestStreamDecodesChunksAndUsage(t *testing.T) {
	var gotAuth string
	var gotBody wireRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(
			`data: {"choices": [{"delta": {"content": "Hel"}}]}` + "\n\n" +
				`data: {"choices": [{"delta": {"content": "lo"}, "finish_reason": "stop"}]}` + "\n\n" +
				`data: {"choices": [], "usage": {"prompt_tokens": 9, "completion_tokens": 2, "total_tokens": 11}}` + "\n\n" +
				"data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := New("sk-test", WithBaseURL(srv.URL))
	chunks, err := p.Stream(context.Background(), &llm.ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []types.Message{types.NewUserMessage("hi")},
		Stop:     []string{"Observation"},
	})
	require.NoError(t, err)

	var text string
	var usage *types.TokenUsage
	for c := range chunks {
		require.Nil(t, c.Err)
		text += c.Delta
		if c.Usage != nil {
			usage = c.Usage
		}
	}

	assert.Equal(t, "Hello", text)
	require.NotNil(t, usage)
	assert.Equal(t, 11, usage.TotalTokens)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.True(t, gotBody.Stream)
	assert.Equal(t, []string{"Observation"}, gotBody.Stop)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
}

func TestStreamMapsHTTPErrors(t *testing.T) {
	cases := []struct {
		status    int
		code      types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, types.ErrUnauthorized, false},
		{http.StatusForbidden, types.ErrForbidden, false},
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusBadRequest, types.ErrInvalidRequest, false},
		{http.StatusBadGateway, types.ErrUpstreamError, true},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "nope"},
			})
		}))

		p := New("sk-test", WithBaseURL(srv.URL))
		_, err := p.Stream(context.Background(), &llm.ChatRequest{
			Model:    "m",
			Messages: []types.Message{types.NewUserMessage("hi")},
		})
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.code, types.GetErrorCode(err), "status %d", tc.status)
		assert.Equal(t, tc.retryable, types.IsRetryable(err), "status %d", tc.status)

		srv.Close()
	}
}

func TestProviderName(t *testing.T) {
	assert.Equal(t, "openai", New("k").Name())
	assert.Equal(t, "azure", New("k", WithName("azure")).Name())
}
