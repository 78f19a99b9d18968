package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claims-agent/backend/internal/metrics"
)

func newStubServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			w.Write([]byte(`{
				"id": "cmpl-1",
				"object": "chat.completion",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"decision\": \"review\"}"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
			}`))
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			w.Write([]byte(`{
				"object": "list",
				"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}],
				"usage": {"prompt_tokens": 5, "total_tokens": 5}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newStubClient(srv *httptest.Server) *Client {
	return NewClient("test-key", srv.URL+"/v1", "gpt-4-test", "text-embedding-3-small", 0.2, 512, 5)
}

func TestCompleteSurfacesUsageAndCountsTokens(t *testing.T) {
	srv := newStubServer(t)
	defer srv.Close()

	c := newStubClient(srv)

	promptBefore := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("gpt-4-test", "prompt"))
	completionBefore := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("gpt-4-test", "completion"))

	resp, err := c.Complete(context.Background(), CompletionRequest{SystemPrompt: "sys", UserPrompt: "user"})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "review")
	assert.Equal(t, 42, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)

	promptAfter := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("gpt-4-test", "prompt"))
	completionAfter := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("gpt-4-test", "completion"))
	assert.Equal(t, promptBefore+42, promptAfter)
	assert.Equal(t, completionBefore+7, completionAfter)
}

func TestEmbedReturnsVector(t *testing.T) {
	srv := newStubServer(t)
	defer srv.Close()

	c := newStubClient(srv)

	vec, err := c.Embed(context.Background(), "knee surgery")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}
