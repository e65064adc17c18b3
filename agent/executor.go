package agent

import (
	"context"
	"fmt"
)

// ExecuteToolCalls runs a batch of tool calls strictly in input order —
// calls within a round may depend on earlier ones (todo_create before
// todo_update). The built-in TODO tools mutate the store directly and
// record silent results; everything else goes through onToolCall. A
// failure in one call never aborts the rest of the batch.
func ExecuteToolCalls(ctx context.Context, calls []ToolCall, sessionID string, todos *TodoStore, onToolCall ToolCallFunc) []InternalToolResult {
	results := make([]InternalToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, executeOne(ctx, call, sessionID, todos, onToolCall))
	}
	return results
}

func executeOne(ctx context.Context, call ToolCall, sessionID string, todos *TodoStore, onToolCall ToolCallFunc) InternalToolResult {
	switch call.Name {
	case ToolTodoCreate:
		tasks := stringSliceArg(call.Arguments["tasks"])
		todos.Create(sessionID, tasks)
		return silentResult(call)

	case ToolTodoAdd:
		text, _ := call.Arguments["text"].(string)
		index := -1
		if v, ok := numberArg(call.Arguments["index"]); ok {
			index = v
		}
		todos.Add(sessionID, text, index)
		return silentResult(call)

	case ToolTodoUpdate:
		index, _ := numberArg(call.Arguments["index"])
		status, _ := call.Arguments["status"].(string)
		var result *string
		if v, ok := call.Arguments["result"].(string); ok {
			result = &v
		}
		if _, err := todos.Update(sessionID, index, TodoStatus(status), result); err != nil {
			return errorResult(call, err)
		}
		return silentResult(call)
	}

	if onToolCall == nil {
		return errorResult(call, fmt.Errorf("no tool handler for %q", call.Name))
	}

	userResult, err := onToolCall(ctx, call)
	if err != nil {
		return errorResult(call, err)
	}
	return ConvertToolResult(call, userResult)
}

// ConvertToolResult normalizes a user-facing ToolResult. A non-empty
// Error field takes precedence over Result.
func ConvertToolResult(call ToolCall, userResult *ToolResult) InternalToolResult {
	if userResult == nil {
		return InternalToolResult{ToolCallID: call.ToolCallID}
	}
	if userResult.Error != "" {
		return InternalToolResult{
			ToolCallID: call.ToolCallID,
			IsError:    true,
			Error:      userResult.Error,
		}
	}
	return InternalToolResult{
		ToolCallID: call.ToolCallID,
		Result:     userResult.Result,
	}
}

func silentResult(call ToolCall) InternalToolResult {
	return InternalToolResult{ToolCallID: call.ToolCallID, Visibility: Silent}
}

func errorResult(call ToolCall, err error) InternalToolResult {
	return InternalToolResult{
		ToolCallID: call.ToolCallID,
		IsError:    true,
		Error:      err.Error(),
	}
}

// stringSliceArg coerces a decoded JSON value into []string, dropping
// non-string elements.
func stringSliceArg(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// numberArg reads a JSON number argument as an int.
func numberArg(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
