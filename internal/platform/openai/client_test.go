package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(logger.Nop(), Config{APIKey: "sk-test", BaseURL: srv.URL, MaxRetries: 2, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestEmbedOrdersByIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"cargo", " "}, req.Input)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	})

	out, err := c.Embed(context.Background(), []string{" cargo ", ""})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
}

func TestEmbedMissingVectorFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	})
	_, err := c.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestChatRetriesTransientFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Try the Cutlass Black. "}}]}`))
	})

	reply, err := c.Chat(context.Background(), "be helpful", []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "Try the Cutlass Black.", reply)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestChatDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad"}}`))
	})
	_, err := c.Chat(context.Background(), "", []ChatMessage{{Role: "user", Content: "hi"}})
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(logger.Nop(), Config{})
	assert.Error(t, err)
	_, err = New(nil, Config{APIKey: "x"})
	assert.Error(t, err)
}
