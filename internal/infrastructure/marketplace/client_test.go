package marketplace

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbridge/backend/internal/domain/integration"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{BaseURL: server.URL, TimeoutSeconds: 5})
	require.NoError(t, err)
	return client
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{name: "defaults applied", config: Config{}},
		{name: "timeout too large", config: Config{TimeoutSeconds: 500}, wantErr: ErrConfigInvalidTimeout},
		{name: "negative rate", config: Config{RateLimitRPS: -1}, wantErr: ErrConfigInvalidRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultBaseURL, tt.config.BaseURL)
			assert.Equal(t, DefaultBaseURL+"/token", tt.config.TokenURL)
			assert.Equal(t, DefaultTimeoutSeconds, tt.config.TimeoutSeconds)
		})
	}
}

func TestClient_GetSelf(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/self", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id": 42, "name": "Shop"}`))
	})

	account, err := client.GetSelf(t.Context(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "42", account.ID)
}

func TestClient_GetSelf_Failure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.GetSelf(t.Context(), "tok")
	assert.ErrorIs(t, err, integration.ErrIdentityResolution)
	assert.ErrorIs(t, err, integration.ErrPlatformRequestFailed)
}

func TestClient_ListChats(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/42/chats", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"chats": [{
			"id": "c1",
			"users": [{"id": 42, "name": "Shop"}, {"id": 7, "name": "Ann"}],
			"context": {"type": "item", "value": {"id": 1, "title": "Bike"}},
			"last_message": {"id": "m1", "author_id": 7, "content": {"type": "text", "text": "Hi"}, "created": 1700000000},
			"updated": 1700000100
		}]}`))
	})

	chats, err := client.ListChats(t.Context(), "tok", "42", 20)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	chat := chats[0]
	assert.Equal(t, "c1", chat.ID)
	assert.Equal(t, "Bike", chat.ContextTitle)
	assert.Equal(t, int64(1700000100), chat.Updated)
	require.Len(t, chat.Users, 2)
	assert.Equal(t, "7", chat.Users[1].ID)
	require.NotNil(t, chat.LastMessage)
	assert.Equal(t, "Hi", chat.LastMessage.Text)
	assert.Equal(t, "Ann (Bike)", chat.ClientName("42"))
}

func TestClient_ListChats_PreviewWithoutType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chats": [
			{"id": "c1", "users": [{"id": "999", "name": "Alice"}, {"id": "42", "name": "Shop"}], "last_message": {"content": {"text": "hi"}}, "updated": 1700000000},
			{"id": "c2", "users": [], "last_message": {"content": {"type": "image"}}},
			{"id": "c3", "users": [], "last_message": {"content": {}}}
		]}`))
	})

	chats, err := client.ListChats(t.Context(), "tok", "42", 20)
	require.NoError(t, err)
	require.Len(t, chats, 3)

	assert.Equal(t, "hi", chats[0].LastMessageText())
	assert.Equal(t, "Alice", chats[0].ClientName("42"))
	assert.Equal(t, integration.AttachmentPlaceholder, chats[1].LastMessageText())
	assert.Equal(t, integration.AttachmentPlaceholder, chats[2].LastMessageText())
}

func TestClient_ListChats_BareArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "c1", "users": []}, {"id": "c2", "users": []}]`))
	})

	chats, err := client.ListChats(t.Context(), "tok", "42", 20)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}

func TestClient_ListChats_Errors(t *testing.T) {
	t.Run("http failure", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := client.ListChats(t.Context(), "tok", "42", 20)
		assert.ErrorIs(t, err, integration.ErrChatFetch)
	})

	t.Run("unauthorized is an auth failure", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := client.ListChats(t.Context(), "tok", "42", 20)
		assert.ErrorIs(t, err, integration.ErrChatFetch)
		assert.ErrorIs(t, err, integration.ErrAuthFailed)
	})

	t.Run("malformed body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chats": "nope"}`))
		})
		_, err := client.ListChats(t.Context(), "tok", "42", 20)
		assert.ErrorIs(t, err, integration.ErrPlatformInvalidResponse)
	})
}

func TestClient_ListMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/42/chats/c1/messages", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"messages": [
			{"id": "m1", "author_id": 7, "content": {"type": "text", "text": "Hi"}, "created": 1700000000},
			{"id": "m2", "author_id": "42", "content": {"type": "image"}, "created": 1700000050}
		]}`))
	})

	messages, err := client.ListMessages(t.Context(), "tok", "42", "c1", 20)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "c1", messages[0].ChatID)
	assert.Equal(t, "7", messages[0].AuthorID)
	assert.Equal(t, "Hi", messages[0].DisplayText())
	assert.Equal(t, "42", messages[1].AuthorID)
	assert.Equal(t, integration.AttachmentPlaceholder, messages[1].DisplayText())
}

func TestClient_ListMessages_Failure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.ListMessages(t.Context(), "tok", "42", "c1", 20)
	assert.ErrorIs(t, err, integration.ErrMessageFetch)
}

func TestClient_SendTextMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts/42/chats/c1/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "text", body["type"])
		assert.Equal(t, map[string]any{"text": "thanks"}, body["message"])

		w.Write([]byte(`{"id": "m9", "created": 1700000200, "direction": "out"}`))
	})

	sent, err := client.SendTextMessage(t.Context(), "tok", "42", "c1", "thanks")
	require.NoError(t, err)
	assert.Equal(t, "m9", sent.ID)
	assert.Equal(t, int64(1700000200), sent.Created)
	assert.JSONEq(t, `{"id": "m9", "created": 1700000200, "direction": "out"}`, string(sent.Raw))
}

func TestClient_SendTextMessage_Failure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.SendTextMessage(t.Context(), "tok", "42", "c1", "thanks")
	assert.ErrorIs(t, err, integration.ErrSendFailed)
}

func TestClient_RegisterWebhook(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"url": "https://bridge.example.com/hook"}`, string(raw))
		w.Write([]byte(`{"ok": true}`))
	})

	result, err := client.RegisterWebhook(t.Context(), "tok", "https://bridge.example.com/hook")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(result))
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1500 * time.Millisecond)
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, TimeoutSeconds: 1})
	require.NoError(t, err)

	_, err = client.ListChats(t.Context(), "tok", "42", 20)
	assert.ErrorIs(t, err, integration.ErrChatFetch)
	assert.ErrorIs(t, err, integration.ErrPlatformRequestFailed)
}

func TestClient_RateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, RateLimitRPS: 100, RateLimitBurst: 1})
	require.NoError(t, err)
	require.NotNil(t, client.limiter)

	for range 3 {
		_, err := client.GetSelf(t.Context(), "tok")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())
}
