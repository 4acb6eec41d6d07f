package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"askforge-client/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", utils.NewConsoleLogger(io.Discard, false)), srv
}

// authServer mimics the credentials exchange: the session only has a user
// after a POST with the right password and the token handed out by /csrf.
func authServer(t *testing.T, password string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/csrf", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"csrfToken": "tok-123"})
	})
	mux.HandleFunc("/api/auth/callback/credentials", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "tok-123", r.PostForm.Get("csrfToken"))
		assert.Equal(t, "true", r.PostForm.Get("json"))
		if r.PostForm.Get("password") == password {
			http.SetCookie(w, &http.Cookie{Name: "session-token", Value: "ok", Path: "/"})
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session-token"); err == nil && c.Value == "ok" {
			w.Write([]byte(`{"user":{"id":"1","name":"Administrador","email":"admin@admin.com"}}`))
			return
		}
		w.Write([]byte(`{}`))
	})
	return mux
}

func TestLoginSuccess(t *testing.T) {
	client, _ := newTestClient(t, authServer(t, "admin123"))

	user, err := client.Login(context.Background(), "admin@admin.com", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "Administrador", user.Name)
	assert.Equal(t, user, client.User())

	client.Logout()
	assert.Nil(t, client.User())
}

func TestLoginInvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t, authServer(t, "admin123"))

	_, err := client.Login(context.Background(), "admin@admin.com", "wrong")
	require.Error(t, err)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	assert.Equal(t, "Credenciais inválidas", err.Error())
}

func TestLoginTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, utils.NewConsoleLogger(io.Discard, false))
	_, err := client.Login(context.Background(), "a@b.c", "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}

func TestSendErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error field", 400, `{"error":"Módulo é obrigatório para iniciar uma conversa"}`, "Módulo é obrigatório para iniciar uma conversa"},
		{"empty body", 502, ``, "Erro 502: Resposta vazia do servidor"},
		{"json without error", 500, `{"details":"x"}`, "Erro 500"},
		{"html page", 503, `<html>down</html>`, "Erro 503: <html>down</html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := client.Send(context.Background(), SendRequest{ModuleID: 1, Message: "oi"})
			require.Error(t, err)
			assert.Equal(t, tt.message, err.Error())
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestSendEmptySuccessIsFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	_, err := client.Send(context.Background(), SendRequest{ModuleID: 1, Message: "oi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestSendRequestBody(t *testing.T) {
	var got map[string]interface{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/send", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"conversation_id":42,"response":"Veja [ANEXO_1]","all_knowledge_attachments":[{"id":"[ANEXO_1]","url":"/uploads/a.pdf","name":"manual.pdf"}],"used_knowledge_ids":[3,4]}`))
	}))

	resp, err := client.Send(context.Background(), SendRequest{ModuleID: 7, Message: "Como emitir nota?"})
	require.NoError(t, err)

	assert.Nil(t, got["conversation_id"], "a new conversation is sent as null")
	assert.Nil(t, got["system_id"])
	assert.Equal(t, float64(7), got["module_id"])
	_, hasImage := got["image_base64"]
	assert.False(t, hasImage)

	assert.Equal(t, int64(42), resp.ConversationID)
	idx := AttachmentIndex(resp.KnownAttachments())
	require.Contains(t, idx, "ANEXO_1")
	assert.Equal(t, "manual.pdf", idx["ANEXO_1"].Name)
	assert.Len(t, resp.UsedKnowledgeIDs, 2)
}

func TestFeedbackAcceptsCreated(t *testing.T) {
	status := http.StatusCreated
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"message":"ok"}`))
	}))

	id := int64(5)
	fb := Feedback{ConversationID: &id, UserMessage: "q", AssistantResponse: "a", Feedback: FeedbackPositive}
	assert.NoError(t, client.SendFeedback(context.Background(), fb))

	status = http.StatusOK
	assert.NoError(t, client.SendFeedback(context.Background(), fb))

	status = http.StatusNotFound
	assert.Error(t, client.SendFeedback(context.Background(), fb))
}

func TestActiveModelNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Nenhum modelo LLM ativo"}`))
	}))

	model, err := client.ActiveModel(context.Background())
	require.NoError(t, err)
	assert.Nil(t, model)
}

func TestCatalogCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/modules", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"nome":"Faturamento","descricao":"Notas"}]`))
	})
	mux.HandleFunc("/api/systems", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("module_id"))
		w.Write([]byte(`[{"id":9,"nome":"Datasul","module_id":1}]`))
	})
	mux.HandleFunc("/api/llm/active-model", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":2,"provider":"openai","nome":"GPT","modelo":"gpt-4o","visualiza_imagem":true}`))
	})
	mux.HandleFunc("/api/chat/conversations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":3,"titulo":"Chat - Faturamento","module_id":1,"system_id":null,"module_nome":"Faturamento","system_nome":null}]`))
	})
	mux.HandleFunc("/api/chat/conversations/3", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"conversation":{"id":3,"titulo":"x","module_id":1},"messages":[{"id":1,"role":"user","content":"oi"},{"id":2,"role":"assistant","content":"olá"}]}`))
		case http.MethodPut:
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "Novo", body["titulo"])
			w.Write([]byte(`{"message":"ok"}`))
		case http.MethodDelete:
			w.Write([]byte(`{"message":"ok"}`))
		}
	})
	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	modules, err := client.Modules(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Faturamento", modules[0].Name)

	systems, err := client.Systems(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Datasul", systems[0].Name)

	model, err := client.ActiveModel(ctx)
	require.NoError(t, err)
	assert.True(t, model.SupportsImages)

	convs, err := client.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Nil(t, convs[0].SystemID)
	assert.Equal(t, "Faturamento", convs[0].Label())

	detail, err := client.Conversation(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 2)
	assert.Equal(t, RoleAssistant, detail.Messages[1].Role)

	assert.NoError(t, client.RenameConversation(ctx, 3, "Novo"))
	assert.NoError(t, client.DeleteConversation(ctx, 3))
}

func TestFetchImageCachesAndResolves(t *testing.T) {
	var hits int32
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/uploads/img.png", r.URL.Path)
		w.Write([]byte("PNGDATA"))
	}))

	data, err := client.FetchImage(context.Background(), "/uploads/img.png")
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))

	data, err = client.FetchImage(context.Background(), srv.URL+"/uploads/img.png")
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second fetch should come from the cache")
	assert.Equal(t, 1, client.Images().Len())
}

func TestResolveURL(t *testing.T) {
	client := NewClient("http://h:3000/", utils.NewConsoleLogger(io.Discard, false))

	assert.Equal(t, "http://h:3000/a.png", client.ResolveURL("/a.png"))
	assert.Equal(t, "http://h:3000/a.png", client.ResolveURL("a.png"))
	assert.Equal(t, "https://cdn/x.png", client.ResolveURL("https://cdn/x.png"))

	client.SetBaseURL("http://other:8080")
	assert.Equal(t, "http://other:8080/a.png", client.ResolveURL("/a.png"))
}

func TestAttachmentIndex(t *testing.T) {
	idx := AttachmentIndex([]KnowledgeAttachment{
		{ID: "[ANEXO_1]", Name: "a", URL: "/a"},
		{ID: "ANEXO_2", Name: "b", URL: "/b"},
		{ID: "", Name: "ignored"},
	})
	assert.Len(t, idx, 2)
	assert.Equal(t, "ANEXO_1", idx["ANEXO_1"].ID)
	assert.Equal(t, "/b", idx["ANEXO_2"].URL)
}

func TestTestConnection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		w.Write([]byte("<html></html>"))
	}))
	assert.NoError(t, client.TestConnection(context.Background()))
}
