package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Size budget for a serialized tool result embedded in a prompt. The
// compressor only runs when the full-fidelity serialization exceeds
// maxResultSize; otherwise results pass through untouched.
const (
	maxResultSize   = 20000
	maxArrayItems   = 3
	maxStringLength = 500
)

const toolCallFormatInstruction = `Call format: <tool_call>{"name":"tool_name","arguments":{...}}</tool_call>
Note: Wait for results, don't fabricate; multiple calls allowed, wrap independently`

// AgentModeSystemPrompt guides the model through the TODO-driven
// plan/execute/complete workflow when agent mode with task tracking is on.
const AgentModeSystemPrompt = `You are a task-oriented AI assistant. Follow this workflow:

**1. Task Planning Phase**
- Analyze user request and identify subtasks
- Use todo_create tool to create task list (1-7 tasks)
- Arrange tasks in execution order
- Create at least 1 TODO item even for simple tasks

**2. Task Execution Phase**
- Process tasks one by one from the list
- Execute relevant tools, then call todo_update to mark as completed and record result
- Use todo_add if additional tasks are needed

**3. Task Completion Phase**
- Report final results after all tasks complete
- Results should be clear, complete, based on actual execution data

**Example: Query weather and calculate temperature difference**
User: "Query weather for Beijing and Shanghai, calculate temperature difference"

1. <tool_call>{"name": "todo_create", "arguments": {"tasks": ["Query Beijing weather", "Query Shanghai weather", "Calculate temperature difference"]}}</tool_call>
2. <tool_call>{"name": "get_weather", "arguments": {"city": "Beijing"}}</tool_call> → 15°C
3. <tool_call>{"name": "todo_update", "arguments": {"index": 0, "status": "completed", "result": "15°C"}}</tool_call>
4. <tool_call>{"name": "get_weather", "arguments": {"city": "Shanghai"}}</tool_call> → 20°C
5. <tool_call>{"name": "todo_update", "arguments": {"index": 1, "status": "completed", "result": "20°C"}}</tool_call>
6. <tool_call>{"name": "calculate", "arguments": {"expression": "20 - 15"}}</tool_call> → 5
7. <tool_call>{"name": "todo_update", "arguments": {"index": 2, "status": "completed", "result": "5°C difference"}}</tool_call>
8. Reply: "Beijing 15°C, Shanghai 20°C, temperature difference 5°C"

**Important Notes:**
- Task list helps you stay focused and avoid missing steps
- Process tasks one by one, don't skip or process multiple simultaneously
- Answer based on actual tool return data, don't fabricate results
- **Always record results when completing tasks**: Use standard format to call todo_update with result summary
- Results are saved in TODO list for reference in subsequent rounds, even if tool return values are not visible
- **Check current TODO list status to avoid duplicate marking**: Verify if task is already completed`

// BuildToolsDescription renders tool definitions into model-readable text.
// Tools with Examples use example mode (name, description, literal example
// calls, optional notes) to save tokens; the rest render their full
// parameter schema.
func BuildToolsDescription(tools []ToolDefinition) string {
	if len(tools) == 0 {
		return ""
	}

	docs := make([]string, 0, len(tools))
	for _, tool := range tools {
		if len(tool.Examples) > 0 {
			var sb strings.Builder
			fmt.Fprintf(&sb, "- %s | %s", tool.Name, tool.Description)
			for _, ex := range tool.Examples {
				sb.WriteString("\n  " + ex)
			}
			if tool.Notes != "" {
				sb.WriteString("\n  " + tool.Notes)
			}
			docs = append(docs, sb.String())
			continue
		}

		params, err := json.MarshalIndent(tool.Parameters, "", "  ")
		if err != nil {
			params = []byte("{}")
		}
		docs = append(docs, fmt.Sprintf("- **%s**: %s\n  Parameters: %s", tool.Name, tool.Description, params))
	}

	return fmt.Sprintf("You can use the following tools to help answer questions:\n\n%s\n\n%s",
		strings.Join(docs, "\n\n"), toolCallFormatInstruction)
}

// BuildSystemPrompt combines a caller-supplied system prompt with the tool
// description block: custom prompt first, tool block second.
func BuildSystemPrompt(tools []ToolDefinition, systemPrompt string) string {
	var parts []string
	if systemPrompt != "" {
		parts = append(parts, systemPrompt)
	}
	if len(tools) > 0 {
		parts = append(parts, BuildToolsDescription(tools))
	}
	return strings.Join(parts, "\n\n")
}

// ToolResultPromptOptions configures BuildToolResultPrompt. When Todos and
// SessionID are set with EnableTodo, the current TODO summary and a
// continue/celebrate instruction are appended.
type ToolResultPromptOptions struct {
	SessionID  string
	EnableTodo bool
	Todos      *TodoStore
}

// BuildToolResultPrompt renders a batch of tool results into the prompt
// for the next model round. Silent results are excluded entirely.
func BuildToolResultPrompt(results []InternalToolResult, opts ToolResultPromptOptions) string {
	var docs []string
	for _, r := range results {
		if r.Visibility == Silent {
			continue
		}
		if r.IsError {
			errJSON, _ := json.Marshal(r.Error)
			docs = append(docs, fmt.Sprintf("<tool_result>\n{\n  \"toolCallId\": %q,\n  \"error\": %s\n}\n</tool_result>", r.ToolCallID, errJSON))
			continue
		}
		docs = append(docs, fmt.Sprintf("<tool_result>\n{\n  \"toolCallId\": %q,\n  \"result\": %s\n}\n</tool_result>", r.ToolCallID, serializeToolResult(r.Result)))
	}

	var parts []string
	if len(docs) > 0 {
		parts = append(parts,
			"Tool execution results - read carefully and extract key information:",
			"",
			strings.Join(docs, "\n\n"),
			"",
			"Continue processing based on the actual tool results above. Do not fabricate or assume.",
		)
	}

	if opts.EnableTodo && opts.Todos != nil {
		if list := opts.Todos.Get(opts.SessionID); list != nil && len(list.Items) > 0 {
			parts = append(parts, "", "---", "", FormatForPrompt(list), "")

			allCompleted := true
			for _, item := range list.Items {
				if item.Status != TodoCompleted {
					allCompleted = false
					break
				}
			}
			if allCompleted {
				parts = append(parts, "✅ All tasks completed! Summarize the results and provide a clear, complete answer.")
			} else {
				parts = append(parts, "Process tasks one by one. Call todo_update to mark as completed and record results.")
			}
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// serializeToolResult renders a result as indented JSON, falling back to
// the lossy compressor only when the full serialization busts the budget.
func serializeToolResult(result any) string {
	serialized, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(result))
	}
	if len(serialized) <= maxResultSize {
		return string(serialized)
	}

	// Round-trip so the compressor sees plain JSON shapes regardless of
	// the original Go type.
	var decoded any
	if err := json.Unmarshal(serialized, &decoded); err != nil {
		return string(serialized)
	}
	compressed, err := json.MarshalIndent(compressValue(decoded), "", "  ")
	if err != nil {
		return string(serialized)
	}
	return string(compressed)
}

// compressValue shrinks a decoded JSON value: long strings are truncated
// with a length annotation, long arrays keep their first items plus a
// count annotation, objects are compressed field by field. Numbers,
// booleans and nulls pass through.
func compressValue(value any) any {
	switch v := value.(type) {
	case string:
		if len(v) > maxStringLength {
			return fmt.Sprintf("%s... [Truncated, total length: %d]", v[:maxStringLength], len(v))
		}
		return v
	case []any:
		if len(v) <= maxArrayItems {
			out := make([]any, len(v))
			for i, item := range v {
				out[i] = compressValue(item)
			}
			return out
		}
		out := make([]any, 0, maxArrayItems+1)
		for _, item := range v[:maxArrayItems] {
			out = append(out, compressValue(item))
		}
		return append(out, fmt.Sprintf("... [Omitted %d items, total %d items]", len(v)-maxArrayItems, len(v)))
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = compressValue(val)
		}
		return out
	default:
		return value
	}
}
