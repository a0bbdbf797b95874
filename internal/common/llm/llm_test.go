package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proco-workers/internal/common/config"
	"proco-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletion(content string) string {
	resp := map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []interface{}{
			map[string]interface{}{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			},
		},
		"usage": map[string]interface{}{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

// ==========================
// OpenAI backend
// ==========================

func TestOpenAIClient_Complete(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletion(`{"response":"When did it start?","ready_to_create":false}`)))
	}))
	defer srv.Close()

	client, err := New(config.GenAIConfig{
		Provider: "openai",
		BaseURL:  srv.URL + "/v1/",
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
	}, logger.NewTestLogger(t))
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), Request{
		Purpose: "reply",
		Messages: []Message{
			{Role: RoleSystem, Content: "You are ProCo"},
			{Role: RoleUser, Content: "my heater is broken"},
			{Role: RoleAssistant, Content: "Sorry to hear that"},
		},
		Temperature: 0.7,
		Schema: &ResponseSchema{
			Name:   "agent_reply",
			Schema: map[string]interface{}{"type": "object"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "When did it start?")

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.InDelta(t, 0.7, captured["temperature"], 1e-9)
	msgs := captured["messages"].([]interface{})
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]interface{})["role"])
	format := captured["response_format"].(map[string]interface{})
	assert.Equal(t, "json_schema", format["type"])
}

func TestOpenAIClient_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	client, err := New(config.GenAIConfig{BaseURL: srv.URL + "/", APIKey: "k", MaxRetries: 0}, logger.NewNoOpLogger())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIClient_RequiresAPIKey(t *testing.T) {
	_, err := New(config.GenAIConfig{Provider: "openai"}, logger.NewNoOpLogger())
	assert.Error(t, err)
}

// ==========================
// HTTP gateway backend
// ==========================

func TestGenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Messages, 2)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.InDelta(t, 0.2, body.Temperature, 1e-9)
		_, _ = w.Write([]byte(`{"text":"  Heating issue: heater broken  "}`))
	}))
	defer srv.Close()

	client, err := New(config.GenAIConfig{Provider: "http", BaseURL: srv.URL + "/"}, logger.NewNoOpLogger())
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), Request{
		Purpose:     "summary",
		Temperature: 0.2,
		Messages: []Message{
			{Role: RoleSystem, Content: "summarize"},
			{Role: RoleUser, Content: "heater broken"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Heating issue: heater broken", text)
}

func TestGenAIClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client, err := New(config.GenAIConfig{Provider: "http", BaseURL: srv.URL, Timeout: 30}, logger.NewNoOpLogger())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGenAIClient_EmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":""}`))
	}))
	defer srv.Close()

	client, err := New(config.GenAIConfig{Provider: "http", BaseURL: srv.URL}, logger.NewNoOpLogger())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.GenAIConfig{Provider: "carrier-pigeon"}, logger.NewNoOpLogger())
	assert.Error(t, err)
}

// ==========================
// JSON decoding
// ==========================

func TestDecodeJSON(t *testing.T) {
	type reply struct {
		Response      string `json:"response"`
		ReadyToCreate bool   `json:"ready_to_create"`
	}

	tests := []struct {
		name    string
		raw     string
		want    reply
		wantErr bool
	}{
		{
			name: "plain",
			raw:  `{"response":"ok","ready_to_create":true}`,
			want: reply{Response: "ok", ReadyToCreate: true},
		},
		{
			name: "fenced",
			raw:  "```json\n{\"response\":\"ok\",\"ready_to_create\":false}\n```",
			want: reply{Response: "ok"},
		},
		{
			name: "chatter around object",
			raw:  `Sure! {"response":"ok","ready_to_create":true} Hope that helps.`,
			want: reply{Response: "ok", ReadyToCreate: true},
		},
		{
			name: "trailing comma repaired",
			raw:  `{"response":"ok","ready_to_create":true,}`,
			want: reply{Response: "ok", ReadyToCreate: true},
		},
		{
			name: "single quotes repaired",
			raw:  `{'response': 'ok', 'ready_to_create': false}`,
			want: reply{Response: "ok"},
		},
		{
			name:    "empty",
			raw:     "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got reply
			err := DecodeJSON(tt.raw, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
