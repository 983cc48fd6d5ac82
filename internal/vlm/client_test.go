package vlm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wisefido-vision/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.Config{}
	cfg.VLM.BaseURL = baseURL
	cfg.VLM.APIKey = "test-key"
	cfg.VLM.Model = "gpt-4o"
	cfg.VLM.Timeout = 5 * time.Second

	return NewClient(cfg, zap.NewNop())
}

func TestAnalyzeFrame_Success(t *testing.T) {
	var gotRequest chatRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"  person_a is lying on the floor.  "}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	description, err := client.AnalyzeFrame(context.Background(), []byte{0xFF, 0xD8, 0x01}, []string{"person_a", "person_b"})

	require.NoError(t, err)
	assert.Equal(t, "person_a is lying on the floor.", description)
	assert.Equal(t, "Bearer test-key", gotAuth)

	assert.Equal(t, "gpt-4o", gotRequest.Model)
	require.Len(t, gotRequest.Messages, 1)
	require.Len(t, gotRequest.Messages[0].Content, 2)
	assert.Contains(t, gotRequest.Messages[0].Content[0].Text, "person_a, person_b")
	require.NotNil(t, gotRequest.Messages[0].Content[1].ImageURL)
	assert.True(t, strings.HasPrefix(gotRequest.Messages[0].Content[1].ImageURL.URL, "data:image/jpeg;base64,"))
}

func TestAnalyzeFrame_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid API key"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.AnalyzeFrame(context.Background(), []byte{0xFF, 0xD8}, []string{"person_a"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestAnalyzeFrame_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.AnalyzeFrame(context.Background(), []byte{0xFF, 0xD8}, []string{"person_a"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestAnalyzeFrame_EmptyDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.AnalyzeFrame(context.Background(), []byte{0xFF, 0xD8}, []string{"person_a"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty description")
}

func TestAnalyzeFrame_MissingFrame(t *testing.T) {
	client := newTestClient("http://localhost:9")

	_, err := client.AnalyzeFrame(context.Background(), nil, []string{"person_a"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "frame image is required")
}
