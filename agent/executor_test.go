package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestExecuteToolCalls_TodoInterception(t *testing.T) {
	todos := NewTodoStore()
	calls := []ToolCall{
		{ToolCallID: "t1", Name: ToolTodoCreate, Arguments: map[string]any{
			"tasks": []any{"check weather", "report"},
		}},
		{ToolCallID: "t2", Name: ToolTodoUpdate, Arguments: map[string]any{
			"index": float64(0), "status": "completed", "result": "Sunny",
		}},
	}

	handlerCalled := false
	results := ExecuteToolCalls(context.Background(), calls, "s1", todos, func(ctx context.Context, call ToolCall) (*ToolResult, error) {
		handlerCalled = true
		return nil, nil
	})

	if handlerCalled {
		t.Fatal("TODO tools must not reach the user handler")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Visibility != Silent || r.IsError {
			t.Fatalf("result %d: expected silent success, got %+v", i, r)
		}
	}

	list := todos.Get("s1")
	if list == nil || len(list.Items) != 2 {
		t.Fatalf("list not created: %+v", list)
	}
	if list.Items[0].Status != TodoCompleted || list.Items[0].Result != "Sunny" {
		t.Fatalf("update not applied: %+v", list.Items[0])
	}
}

func TestExecuteToolCalls_TodoUpdateError(t *testing.T) {
	todos := NewTodoStore()
	calls := []ToolCall{
		{ToolCallID: "t1", Name: ToolTodoUpdate, Arguments: map[string]any{
			"index": float64(0), "status": "completed",
		}},
	}
	results := ExecuteToolCalls(context.Background(), calls, "s1", todos, nil)
	if len(results) != 1 || !results[0].IsError {
		t.Fatalf("expected error result, got %+v", results)
	}
	if results[0].Visibility == Silent {
		t.Fatal("error results must be visible")
	}
}

func TestExecuteToolCalls_Order(t *testing.T) {
	var order []string
	calls := []ToolCall{
		{ToolCallID: "a", Name: "one", Arguments: map[string]any{}},
		{ToolCallID: "b", Name: "two", Arguments: map[string]any{}},
		{ToolCallID: "c", Name: "three", Arguments: map[string]any{}},
	}
	results := ExecuteToolCalls(context.Background(), calls, "s1", NewTodoStore(), func(ctx context.Context, call ToolCall) (*ToolResult, error) {
		order = append(order, call.Name)
		return &ToolResult{Result: call.Name}, nil
	})

	want := []string{"one", "two", "three"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order %v, want %v", order, want)
		}
		if results[i].ToolCallID != calls[i].ToolCallID {
			t.Fatalf("result %d has id %q, want %q", i, results[i].ToolCallID, calls[i].ToolCallID)
		}
	}
}

func TestExecuteToolCalls_FailureDoesNotAbortBatch(t *testing.T) {
	calls := []ToolCall{
		{ToolCallID: "a", Name: "boom", Arguments: map[string]any{}},
		{ToolCallID: "b", Name: "fine", Arguments: map[string]any{}},
	}
	results := ExecuteToolCalls(context.Background(), calls, "s1", NewTodoStore(), func(ctx context.Context, call ToolCall) (*ToolResult, error) {
		if call.Name == "boom" {
			return nil, errors.New("kaput")
		}
		return &ToolResult{Result: 42}, nil
	})

	if !results[0].IsError || results[0].Error != "kaput" {
		t.Fatalf("expected error result first, got %+v", results[0])
	}
	if results[1].IsError || results[1].Result != 42 {
		t.Fatalf("expected success second, got %+v", results[1])
	}
}

func TestExecuteToolCalls_NoHandler(t *testing.T) {
	calls := []ToolCall{{ToolCallID: "a", Name: "custom", Arguments: map[string]any{}}}
	results := ExecuteToolCalls(context.Background(), calls, "s1", NewTodoStore(), nil)
	if !results[0].IsError {
		t.Fatalf("expected error result, got %+v", results[0])
	}
}

func TestConvertToolResult(t *testing.T) {
	call := ToolCall{ToolCallID: "x"}

	t.Run("error takes precedence", func(t *testing.T) {
		r := ConvertToolResult(call, &ToolResult{Result: "ignored", Error: "bad"})
		if !r.IsError || r.Error != "bad" || r.Result != nil {
			t.Fatalf("unexpected result: %+v", r)
		}
	})

	t.Run("success", func(t *testing.T) {
		r := ConvertToolResult(call, &ToolResult{Result: map[string]any{"k": "v"}})
		if r.IsError || fmt.Sprint(r.Result) != "map[k:v]" {
			t.Fatalf("unexpected result: %+v", r)
		}
	})

	t.Run("nil", func(t *testing.T) {
		r := ConvertToolResult(call, nil)
		if r.IsError || r.Result != nil || r.ToolCallID != "x" {
			t.Fatalf("unexpected result: %+v", r)
		}
	})
}
