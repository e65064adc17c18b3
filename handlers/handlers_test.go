package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wepress/agentquery/agent"
)

// stubProvider answers every round with a fixed final text.
type stubProvider struct {
	reply   string
	cleared []string
}

func (p *stubProvider) Send(ctx context.Context, opts agent.ProviderOptions) <-chan agent.Message {
	ch := make(chan agent.Message, 4)
	go func() {
		defer close(ch)
		ch <- agent.NewTextDelta("c1", p.reply)
		ch <- agent.NewTextFinal("c1", p.reply, agent.TextDone)
	}()
	return ch
}

func (p *stubProvider) Clear(sessionID string) {
	p.cleared = append(p.cleared, sessionID)
}

func newTestMux(p agent.Provider) (*http.ServeMux, *Deps) {
	deps := &Deps{
		Client:   agent.NewClient(p),
		Tools:    agent.NewToolRegistry(),
		EventBus: NewEventBus(),
	}
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	return mux, deps
}

func TestQueryStream(t *testing.T) {
	mux, _ := newTestMux(&stubProvider{reply: "hello"})

	body := strings.NewReader(`{"prompt":"hi","sessionId":"s1"}`)
	req := httptest.NewRequest(http.MethodPost, "/query/stream", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	out := rec.Body.String()
	if !strings.Contains(out, "event: text") {
		t.Fatalf("missing text events:\n%s", out)
	}
	if !strings.Contains(out, "event: result") {
		t.Fatalf("missing result event:\n%s", out)
	}
	if !strings.Contains(out, `"finalText":"hello"`) {
		t.Fatalf("missing final text in result:\n%s", out)
	}
}

func TestQueryStream_Validation(t *testing.T) {
	mux, _ := newTestMux(&stubProvider{reply: "x"})

	t.Run("empty prompt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/query/stream", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status %d", rec.Code)
		}
	})

	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/query/stream", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status %d", rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/query/stream", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status %d", rec.Code)
		}
	})
}

func TestClearSession(t *testing.T) {
	p := &stubProvider{reply: "x"}
	mux, deps := newTestMux(p)
	deps.Client.Todos().Create("s1", []string{"a"})

	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/clear", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if len(p.cleared) != 1 || p.cleared[0] != "s1" {
		t.Fatalf("provider not cleared: %v", p.cleared)
	}
	if deps.Client.Todos().Get("s1") != nil {
		t.Fatal("TODO list survived clear")
	}
}

func TestGetTodos(t *testing.T) {
	mux, deps := newTestMux(&stubProvider{reply: "x"})

	t.Run("missing session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/sessions/nope/todos", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status %d", rec.Code)
		}
	})

	t.Run("existing session", func(t *testing.T) {
		deps.Client.Todos().Create("s1", []string{"check weather"})

		req := httptest.NewRequest(http.MethodGet, "/sessions/s1/todos", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
		var list agent.TodoList
		if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
			t.Fatal(err)
		}
		if len(list.Items) != 1 || list.Items[0].Content != "check weather" {
			t.Fatalf("unexpected list: %+v", list)
		}
	})
}

func TestListTools(t *testing.T) {
	mux, deps := newTestMux(&stubProvider{reply: "x"})
	deps.Tools.Register(&agent.FuncTool{
		Def: agent.ToolDefinition{Name: "get_weather", Description: "d", Parameters: map[string]any{}},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			return "ok", nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Tools []agent.ToolDefinition `json:"tools"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tools) != 1 || resp.Tools[0].Name != "get_weather" {
		t.Fatalf("unexpected tools: %+v", resp.Tools)
	}
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("s1")
	defer bus.Unsubscribe("s1", ch)

	bus.Broadcast("s1", agent.NewTextDelta("c1", "x"))
	bus.Broadcast("other", agent.NewTextDelta("c1", "y"))

	select {
	case m := <-ch:
		if m.Text.Text != "x" {
			t.Fatalf("unexpected message: %+v", m)
		}
	default:
		t.Fatal("no message delivered")
	}
	select {
	case m := <-ch:
		t.Fatalf("cross-session leak: %+v", m)
	default:
	}
}
