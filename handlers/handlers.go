// Package handlers exposes the agent query runtime over HTTP: a
// streaming query endpoint (SSE), session management, TODO inspection,
// and a WebSocket message feed.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wepress/agentquery/agent"
	"github.com/wepress/agentquery/sse"
)

// Deps holds shared dependencies injected into handlers.
type Deps struct {
	Client *agent.Client

	// Tools dispatches model tool calls to server-registered tools.
	Tools *agent.ToolRegistry

	// EventBus mirrors streamed messages to WebSocket subscribers.
	EventBus *EventBus
}

// RegisterRoutes registers all runtime routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	if deps.EventBus == nil {
		deps.EventBus = NewEventBus()
	}
	if deps.Tools == nil {
		deps.Tools = agent.NewToolRegistry()
	}

	h := &queryHandler{deps: deps}

	mux.HandleFunc("/query/stream", h.stream)
	mux.HandleFunc("/query/ws", h.watch)
	mux.HandleFunc("/tools", h.listTools)

	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/sessions/")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] == "" {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		sessionID, sub := parts[0], parts[1]

		switch sub {
		case "clear":
			h.clearSession(w, r, sessionID)
		case "todos":
			h.getTodos(w, r, sessionID)
		default:
			writeJSONError(w, http.StatusNotFound, "not found")
		}
	})
}

type queryHandler struct {
	deps *Deps
}

// queryRequest is the body of POST /query/stream.
type queryRequest struct {
	Prompt        string `json:"prompt"`
	SessionID     string `json:"sessionId,omitempty"`
	SystemPrompt  string `json:"systemPrompt,omitempty"`
	AgentMode     bool   `json:"agentMode,omitempty"`
	EnableTodo    bool   `json:"enableTodo,omitempty"`
	MaxToolRounds int    `json:"maxToolRounds,omitempty"`
}

// stream runs a query and forwards every streamed message as an SSE
// event, terminated by a "result" event carrying the AgentResult.
func (h *queryHandler) stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt must not be empty")
		return
	}

	opts := agent.QueryOptions{
		Prompt:        req.Prompt,
		SessionID:     req.SessionID,
		SystemPrompt:  req.SystemPrompt,
		AgentMode:     req.AgentMode,
		EnableTodo:    req.EnableTodo,
		MaxToolRounds: req.MaxToolRounds,
		Tools:         h.deps.Tools.Definitions(),
		OnToolCall:    h.deps.Tools.Callback(),
	}

	// Validate before SSE headers are sent (NewWriter commits 200).
	q, err := h.deps.Client.Query(r.Context(), opts)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sseWriter := sse.NewWriter(w)
	if sseWriter == nil {
		q.Interrupt()
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for m := range q.Stream() {
		sseWriter.SendMessage(m)
		h.deps.EventBus.Broadcast(q.SessionID(), m)
	}

	result, err := q.GetResult(r.Context())
	if err != nil {
		return
	}
	sseWriter.SendEvent("result", result)
}

// clearSession drops the session's provider history and TODO list.
func (h *queryHandler) clearSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.deps.Client.ClearSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// getTodos returns the session's current TODO list.
func (h *queryHandler) getTodos(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list := h.deps.Client.Todos().Get(sessionID)
	if list == nil {
		writeJSONError(w, http.StatusNotFound, "no TODO list for session")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// listTools returns the definitions of all server-registered tools.
func (h *queryHandler) listTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.deps.Tools.Definitions()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
