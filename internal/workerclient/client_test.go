package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthProbeFallsBackToQueueEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/system_stats":
			w.WriteHeader(http.StatusNotFound)
		case "/queue":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := New(time.Second)
	ok, detail := c.HealthProbe(context.Background(), srv.URL, Auth{}, time.Second)
	assert.True(t, ok)
	assert.Equal(t, HealthOK, detail)
}

func TestHealthProbeClassifiesRefused(t *testing.T) {
	c := New(time.Second)
	ok, detail := c.HealthProbe(context.Background(), "http://127.0.0.1:1", Auth{}, 500*time.Millisecond)
	assert.False(t, ok)
	assert.Equal(t, HealthRefused, detail)
}

func TestFetchQueueReturnsAbsentOnError(t *testing.T) {
	c := New(time.Second)
	_, ok := c.FetchQueue(context.Background(), "http://127.0.0.1:1", Auth{}, 500*time.Millisecond)
	assert.False(t, ok)
}

func TestParseQueueCountsHandlesScalarAndTupleForms(t *testing.T) {
	snap := QueueSnapshot{
		QueueRunning: []any{"prompt-a"},
		QueuePending: []any{[]any{"prompt-b", map[string]any{}}, "prompt-c"},
	}
	running, pending := ParseQueueCounts(snap)
	assert.Equal(t, 1, running)
	assert.Equal(t, 2, pending)

	assert.True(t, QueueEntryMatchesPromptID("prompt-a", "prompt-a"))
	assert.True(t, QueueEntryMatchesPromptID([]any{"prompt-b", map[string]any{}}, "prompt-b"))
	assert.False(t, QueueEntryMatchesPromptID([]any{"prompt-b"}, "prompt-c"))
}

func TestPostPromptReturns503OnTransportFailure(t *testing.T) {
	c := New(time.Second)
	body, status := c.PostPrompt(context.Background(), "http://127.0.0.1:1", json.RawMessage(`{}`), "client-1", Auth{})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(body), "error")
}

func TestPostPromptCarriesBasicAuthAndBody(t *testing.T) {
	var gotUser, gotPass string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"prompt_id":"p1"}`))
	}))
	defer srv.Close()

	c := New(time.Second)
	body, status := c.PostPrompt(context.Background(), srv.URL, json.RawMessage(`{"a":1}`), "client-1", Auth{Username: "u", Password: "p"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "u", gotUser)
	assert.Equal(t, "p", gotPass)
	assert.Equal(t, "client-1", gotBody["client_id"])

	var resp PromptResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "p1", resp.PromptID)
}

func TestGetHistoryReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history/prompt-1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"prompt-1":{}}`))
	}))
	defer srv.Close()

	c := New(time.Second)
	body, status, err := c.GetHistory(context.Background(), srv.URL, "prompt-1", Auth{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "prompt-1")
}

func TestProxyViewStreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "filename=out.png", r.URL.RawQuery)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("binary-data"))
	}))
	defer srv.Close()

	c := New(time.Second)
	var buf bytes.Buffer
	ct, status, err := c.ProxyView(context.Background(), srv.URL, url.Values{"filename": {"out.png"}}, Auth{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, "binary-data", buf.String())
}
