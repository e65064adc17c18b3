package agent

import "context"

// ToolCall is a model's request to invoke a tool.
type ToolCall struct {
	ToolCallID string         `json:"toolCallId"`
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments"`
}

// ToolResult is the user-facing outcome of a tool execution: either Result
// is set, or Error is a non-empty message. Callbacks may also return a Go
// error instead.
type ToolResult struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ResultVisibility controls whether a tool result is surfaced in the next
// model prompt. Silent results (built-in TODO tools) act only through their
// side effects.
type ResultVisibility int

const (
	Visible ResultVisibility = iota
	Silent
)

// InternalToolResult is the normalized form of a tool execution outcome.
type InternalToolResult struct {
	ToolCallID string           `json:"toolCallId"`
	Result     any              `json:"result,omitempty"`
	IsError    bool             `json:"isError,omitempty"`
	Error      string           `json:"error,omitempty"`
	Visibility ResultVisibility `json:"-"`
}

// ToolCallFunc executes a user-defined tool call. It may return a
// ToolResult carrying an error, or fail with a Go error; both are
// normalized into an error result.
type ToolCallFunc func(ctx context.Context, call ToolCall) (*ToolResult, error)

// ToolDefinition describes a tool to the model (OpenAI function-calling
// parameter shape). When Examples is non-empty the prompt builder renders
// the literal example calls instead of the parameter schema.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Examples    []string       `json:"examples,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// Attachment is an input artifact passed along with a prompt.
type Attachment struct {
	Type     string `json:"type"` // "image", "file", "url"
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"` // base64
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// PromptMeta tags a prompt for provider-side handling. Prompts tagged
// "tool_result" become candidates for history compression once they age
// out of the recent window.
type PromptMeta struct {
	Type string `json:"type,omitempty"`
}

// ProviderOptions is the input to one provider round.
type ProviderOptions struct {
	Prompt       string
	SessionID    string
	Attachments  []Attachment
	Meta         *PromptMeta
	Tools        []ToolDefinition
	SystemPrompt string
}

// Provider streams model output for a prompt. One call to Send is exactly
// one model round; the returned channel is closed when the round completes.
// Cancellation is signalled through ctx.
type Provider interface {
	Send(ctx context.Context, opts ProviderOptions) <-chan Message
	Clear(sessionID string)
}

// AgentResult is the terminal summary of a query.
type AgentResult struct {
	SessionID    string        `json:"sessionId"`
	MessageID    string        `json:"messageId"`
	Meta         *MetaContent  `json:"meta,omitempty"`
	MessageCount int           `json:"messageCount"`
	FinalText    string        `json:"finalText"`
	HasError     bool          `json:"hasError"`
	Usage        *UsageContent `json:"usage,omitempty"`
	Duration     int64         `json:"duration,omitempty"` // milliseconds
}
