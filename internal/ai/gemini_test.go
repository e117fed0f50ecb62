package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recollect-worker/internal/config"
)

func chatServer(t *testing.T, reply func(prompt string) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gemini-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemini-2.0-flash", req.Model)

		prompt := ""
		if len(req.Messages) == 1 && len(req.Messages[0].Content) == 2 {
			prompt = req.Messages[0].Content[0].Text
			assert.True(t, strings.HasPrefix(req.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))
		}

		status, content := reply(prompt)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"quota exceeded","type":"rate_limit"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gemini-2.0-flash",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGemini(srv *httptest.Server) *Gemini {
	return NewGemini(config.AIConfig{APIKey: "gemini-key", BaseURL: srv.URL + "/", Model: "gemini-2.0-flash"})
}

func TestCaption(t *testing.T) {
	srv := chatServer(t, func(prompt string) (int, string) {
		assert.Contains(t, prompt, "Describe this image")
		return http.StatusOK, "  A laptop on a wooden desk.\n"
	})

	caption, err := newTestGemini(srv).Caption(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "A laptop on a wooden desk.", caption)
}

func TestExtractText(t *testing.T) {
	replies := []string{"Hello\nWorld", "NO_TEXT"}
	srv := chatServer(t, func(prompt string) (int, string) {
		assert.Contains(t, prompt, "Extract all readable text")
		r := replies[0]
		replies = replies[1:]
		return http.StatusOK, r
	})
	g := newTestGemini(srv)

	text, status, err := g.ExtractText(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Hello\nWorld", text)
	assert.Equal(t, OCRSuccess, status)

	text, status, err = g.ExtractText(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, OCRNoText, status)
}

func TestVisionErrors(t *testing.T) {
	srv := chatServer(t, func(prompt string) (int, string) {
		return http.StatusTooManyRequests, ""
	})
	g := newTestGemini(srv)

	_, err := g.Caption(context.Background(), []byte("img"), "image/png")
	assert.Error(t, err)

	_, status, err := g.ExtractText(context.Background(), []byte("img"), "image/png")
	assert.Error(t, err)
	assert.Equal(t, OCRFailed, status)
}

func TestVisionCallsAreBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()
	defer close(release)

	g := NewGemini(config.AIConfig{APIKey: "gemini-key", BaseURL: srv.URL, Model: "gemini-2.0-flash", Timeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := g.Caption(context.Background(), []byte("img"), "image/png")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
