package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
)

func newDeepSeekTestService(t *testing.T, handler http.HandlerFunc) *DeepSeekService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service, err := NewDeepSeekService(&common.DeepSeekConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL,
		Model:       "deepseek-chat",
		MaxTokens:   4096,
		Temperature: 1.0,
		TimeoutSec:  5,
	}, arbor.NewLogger())
	require.NoError(t, err)
	return service
}

func TestDeepSeekChat(t *testing.T) {
	service := newDeepSeekTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req deepSeekRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "分析结果"}},
			},
		})
	})

	response, err := service.Generate(context.Background(), "你是分析师", "分析这家公司")
	require.NoError(t, err)
	assert.Equal(t, "分析结果", response)
}

func TestDeepSeekChatEmptyMessages(t *testing.T) {
	service := newDeepSeekTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty messages")
	})

	_, err := service.Chat(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
}

func TestDeepSeekChatServerError(t *testing.T) {
	service := newDeepSeekTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := service.Chat(context.Background(), []interfaces.Message{
		{Role: interfaces.RoleUser, Content: "分析"},
	})
	require.Error(t, err)
	assert.Equal(t, common.KindTransientUpstream, common.KindOf(err))
}

func TestDeepSeekChatBadRequest(t *testing.T) {
	service := newDeepSeekTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	})

	_, err := service.Chat(context.Background(), []interfaces.Message{
		{Role: interfaces.RoleUser, Content: "分析"},
	})
	require.Error(t, err)
	assert.Equal(t, common.KindPermanentUpstream, common.KindOf(err))
}

func TestDeepSeekRequiresAPIKey(t *testing.T) {
	_, err := NewDeepSeekService(&common.DeepSeekConfig{}, arbor.NewLogger())
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
}

func TestFactoryRejectsUnknownMode(t *testing.T) {
	_, err := NewLLMService(&common.LLMConfig{Mode: "oracle"}, arbor.NewLogger())
	require.Error(t, err)
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
}
