package agent

import (
	"time"

	"github.com/google/uuid"
)

// MessageType discriminates the Message union.
type MessageType string

const (
	MessageText       MessageType = "text"
	MessageToolCall   MessageType = "tool_call"
	MessageToolResult MessageType = "tool_result"
	MessageMeta       MessageType = "meta"
	MessageError      MessageType = "error"
	MessageUsage      MessageType = "usage"
	MessageTodoList   MessageType = "todolist"
	MessageAbort      MessageType = "abort"
)

// TextStatus marks the state of a text payload.
type TextStatus string

const (
	TextDoing TextStatus = "DOING"
	TextDone  TextStatus = "DONE"
	TextError TextStatus = "ERROR"
)

// Message is one streamed event of a conversation. Type selects which
// payload pointer is set; exactly one payload is non-nil per message.
//
// For text messages, Delta=true marks an incremental fragment; the
// concatenation of all delta fragments for a ConversationID equals the
// content of the single non-delta (final) text message for that id.
type Message struct {
	Type           MessageType `json:"type"`
	MessageID      string      `json:"messageId"`
	ConversationID string      `json:"conversationId"`
	Timestamp      time.Time   `json:"timestamp"`

	Delta bool `json:"delta,omitempty"` // text messages only

	Text       *TextContent        `json:"text,omitempty"`
	ToolCall   *ToolCall           `json:"toolCall,omitempty"`
	ToolResult *InternalToolResult `json:"toolResult,omitempty"`
	Meta       *MetaContent        `json:"meta,omitempty"`
	Error      *ErrorContent       `json:"error,omitempty"`
	Usage      *UsageContent       `json:"usage,omitempty"`
	TodoList   *TodoListContent    `json:"todoList,omitempty"`
	Abort      *AbortContent       `json:"abort,omitempty"`
}

// TextContent is the payload of a text message.
type TextContent struct {
	Text   string     `json:"text"`
	Status TextStatus `json:"status"`
}

// MetaContent identifies the model/session that produced a round.
type MetaContent struct {
	Key   string         `json:"key"`
	Name  string         `json:"name"`
	LLM   string         `json:"llm,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// ErrorContent is the payload of an error message.
type ErrorContent struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error codes for provider transport failures.
const (
	CodeFetchError  = "FETCH_ERROR"
	CodeHTTPError   = "HTTP_ERROR"
	CodeNoBody      = "NO_BODY"
	CodeStreamError = "STREAM_ERROR"
)

// UsageContent reports token consumption for one model round.
type UsageContent struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// TodoListContent carries a TODO list snapshot.
type TodoListContent struct {
	TodoList *TodoList `json:"todoList"`
	Raw      string    `json:"raw"`
}

// AbortContent is the payload of an abort message.
type AbortContent struct {
	Reason string `json:"reason,omitempty"`
}

// --- Constructors ---

func newMessage(typ MessageType, conversationID string) Message {
	return Message{
		Type:           typ,
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		Timestamp:      time.Now(),
	}
}

// NewTextDelta creates an incremental text fragment message.
func NewTextDelta(conversationID, text string) Message {
	m := newMessage(MessageText, conversationID)
	m.Delta = true
	m.Text = &TextContent{Text: text, Status: TextDoing}
	return m
}

// NewTextFinal creates the authoritative final text message for a conversation.
func NewTextFinal(conversationID, text string, status TextStatus) Message {
	m := newMessage(MessageText, conversationID)
	m.Text = &TextContent{Text: text, Status: status}
	return m
}

// NewToolCallMessage creates a tool_call message from a parsed call.
func NewToolCallMessage(conversationID string, call ToolCall) Message {
	m := newMessage(MessageToolCall, conversationID)
	m.ToolCall = &call
	return m
}

// NewToolResultMessage creates a tool_result message.
func NewToolResultMessage(conversationID string, result InternalToolResult) Message {
	m := newMessage(MessageToolResult, conversationID)
	m.ToolResult = &result
	return m
}

// NewMetaMessage creates a meta message.
func NewMetaMessage(conversationID string, content MetaContent) Message {
	m := newMessage(MessageMeta, conversationID)
	m.Meta = &content
	return m
}

// NewErrorMessage creates an error message with a failure-class code.
func NewErrorMessage(conversationID, errText, code string) Message {
	m := newMessage(MessageError, conversationID)
	m.Error = &ErrorContent{Error: errText, Code: code}
	return m
}

// NewUsageMessage creates a usage message.
func NewUsageMessage(conversationID string, usage UsageContent) Message {
	m := newMessage(MessageUsage, conversationID)
	m.Usage = &usage
	return m
}

// NewTodoListMessage creates a todolist snapshot message.
func NewTodoListMessage(conversationID string, list *TodoList) Message {
	m := newMessage(MessageTodoList, conversationID)
	m.TodoList = &TodoListContent{TodoList: list, Raw: FormatForPrompt(list)}
	return m
}

// NewAbortMessage creates an abort message.
func NewAbortMessage(conversationID, reason string) Message {
	m := newMessage(MessageAbort, conversationID)
	m.Abort = &AbortContent{Reason: reason}
	return m
}
