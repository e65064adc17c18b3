package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// TodoStatus is the state of a single TODO item.
type TodoStatus string

const (
	TodoPending   TodoStatus = "pending"
	TodoCompleted TodoStatus = "completed"
	TodoDeleted   TodoStatus = "deleted"
)

// TodoItem is one task in a session's TODO list.
type TodoItem struct {
	Status  TodoStatus `json:"status"`
	Content string     `json:"content"`
	Result  string     `json:"result,omitempty"`
}

// TodoList is an immutable snapshot of a session's tasks. Every mutation
// through the store allocates a new list with a fresh Version, so holders
// of an older pointer keep a stale-but-valid snapshot.
type TodoList struct {
	Items   []TodoItem `json:"items"`
	Version int64      `json:"version"`
}

// Names of the built-in task-tracking tools intercepted by the executor.
const (
	ToolTodoCreate = "todo_create"
	ToolTodoAdd    = "todo_add"
	ToolTodoUpdate = "todo_update"
)

// TodoStore keeps per-session TODO lists in memory.
type TodoStore struct {
	mu    sync.RWMutex
	lists map[string]*TodoList
}

// NewTodoStore creates an empty store.
func NewTodoStore() *TodoStore {
	return &TodoStore{lists: make(map[string]*TodoList)}
}

// Create replaces the session's list with all-pending items built from
// tasks (empty list if tasks is nil) and returns the new list.
func (s *TodoStore) Create(sessionID string, tasks []string) *TodoList {
	items := make([]TodoItem, len(tasks))
	for i, task := range tasks {
		items[i] = TodoItem{Status: TodoPending, Content: task}
	}
	list := &TodoList{Items: items, Version: time.Now().UnixMilli()}

	s.mu.Lock()
	s.lists[sessionID] = list
	s.mu.Unlock()
	return list
}

// Add inserts a pending item at index, or appends when index is negative
// or past the end. If the session has no list yet, a one-item list is
// created.
func (s *TodoStore) Add(sessionID, text string, index int) *TodoList {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := TodoItem{Status: TodoPending, Content: text}

	old := s.lists[sessionID]
	var items []TodoItem
	switch {
	case old == nil:
		items = []TodoItem{item}
	case index >= 0 && index <= len(old.Items):
		items = make([]TodoItem, 0, len(old.Items)+1)
		items = append(items, old.Items[:index]...)
		items = append(items, item)
		items = append(items, old.Items[index:]...)
	default:
		items = make([]TodoItem, 0, len(old.Items)+1)
		items = append(items, old.Items...)
		items = append(items, item)
	}

	list := &TodoList{Items: items, Version: time.Now().UnixMilli()}
	s.lists[sessionID] = list
	return list
}

// Update replaces the item at index with its status (and result, when
// non-nil) changed. Fails if the session has no list or index is out of
// range.
func (s *TodoStore) Update(sessionID string, index int, status TodoStatus, result *string) (*TodoList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.lists[sessionID]
	if old == nil {
		return nil, fmt.Errorf("no TODO list found for session: %s", sessionID)
	}
	if index < 0 || index >= len(old.Items) {
		return nil, fmt.Errorf("invalid TODO index: %d", index)
	}

	items := make([]TodoItem, len(old.Items))
	copy(items, old.Items)
	items[index].Status = status
	if result != nil {
		items[index].Result = *result
	}

	list := &TodoList{Items: items, Version: time.Now().UnixMilli()}
	s.lists[sessionID] = list
	return list, nil
}

// Get returns the session's current list, or nil if absent.
func (s *TodoStore) Get(sessionID string) *TodoList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lists[sessionID]
}

// HasUncompleted reports whether the session has a non-empty list with at
// least one pending item.
func (s *TodoStore) HasUncompleted(sessionID string) bool {
	list := s.Get(sessionID)
	if list == nil || len(list.Items) == 0 {
		return false
	}
	for _, item := range list.Items {
		if item.Status == TodoPending {
			return true
		}
	}
	return false
}

// Clear removes the session's list. Idempotent.
func (s *TodoStore) Clear(sessionID string) {
	s.mu.Lock()
	delete(s.lists, sessionID)
	s.mu.Unlock()
}

// FormatForPrompt renders a numbered, status-annotated summary of the list
// for injection into model prompts.
func FormatForPrompt(list *TodoList) string {
	if list == nil || len(list.Items) == 0 {
		return "No TODO tasks."
	}

	var sb strings.Builder
	sb.WriteString("Current TODO list:")
	for i, item := range list.Items {
		status := "[Pending]"
		if item.Status == TodoCompleted {
			status = "[Completed]"
		}
		sb.WriteString(fmt.Sprintf("\n%d. %s %s", i, status, item.Content))
		if item.Result != "" {
			sb.WriteString(" -> Result: " + item.Result)
		}
	}
	return sb.String()
}

// TodoTools are the built-in task-management tool definitions injected
// ahead of caller-supplied tools in agent mode with TODO tracking.
var TodoTools = []ToolDefinition{
	{
		Name:        ToolTodoCreate,
		Description: "Create task list (in execution order)",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tasks": map[string]any{
					"type":        "array",
					"description": `Task list in execution order. Must be string array, e.g.: ["Task 1", "Task 2"]`,
					"items":       map[string]any{"type": "string", "description": "Single task description"},
				},
			},
			"required": []string{"tasks"},
		},
		Examples: []string{
			`<tool_call>{"name":"todo_create","arguments":{"tasks":["Check weather","Calculate result","Return answer"]}}</tool_call>`,
		},
	},
	{
		Name:        ToolTodoAdd,
		Description: "Add task dynamically",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text":  map[string]any{"type": "string", "description": "Task description"},
				"index": map[string]any{"type": "number", "description": "Insert position index (optional, defaults to end)"},
			},
			"required": []string{"text"},
		},
		Examples: []string{
			`<tool_call>{"name":"todo_add","arguments":{"text":"New task"}}</tool_call>`,
			`<tool_call>{"name":"todo_add","arguments":{"text":"Insert task","index":1}}</tool_call>`,
		},
		Notes: "index is optional, defaults to appending at end",
	},
	{
		Name:        ToolTodoUpdate,
		Description: "Update task status (record result when completed)",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"index": map[string]any{"type": "number", "description": "Task index (0-based)"},
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"pending", "completed"},
					"description": "New status: pending or completed",
				},
				"result": map[string]any{
					"type":        "string",
					"description": `Task execution result (optional). Recommended when marking as completed, e.g., "Beijing weather: Sunny 15°C"`,
				},
			},
			"required": []string{"index", "status"},
		},
		Examples: []string{
			`<tool_call>{"name":"todo_update","arguments":{"index":0,"status":"completed","result":"Beijing 15°C"}}</tool_call>`,
		},
		Notes: "Recommend recording result when status is completed",
	},
}
