package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// QueryOptions configures a single query.
type QueryOptions struct {
	// Prompt is the user's input for the first model round.
	Prompt string

	// SessionID groups queries into one conversation. Auto-generated when
	// empty. Concurrent queries against the same session id are not a
	// supported configuration.
	SessionID string

	Attachments  []Attachment
	Tools        []ToolDefinition
	SystemPrompt string

	// OnToolCall executes user-defined tools. Required for agent mode;
	// optional in basic mode, where matched tool calls are answered
	// one-shot without a follow-up model round.
	OnToolCall ToolCallFunc

	// AgentMode drives multi-round execution with automatic tool calling.
	AgentMode bool

	// MaxToolRounds bounds consecutive no-progress tool rounds before the
	// loop detector aborts (default 7).
	MaxToolRounds int

	// EnableTodo turns on TODO task tracking in agent mode.
	EnableTodo bool

	// Meta tags the prompt for provider-side history compression.
	Meta *PromptMeta
}

const defaultMaxToolRounds = 7

// Client runs queries against a Provider. The TODO store is owned by the
// client and shared across queries that reuse a session id.
type Client struct {
	provider Provider
	todos    *TodoStore
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTodoStore substitutes the TODO store (useful for tests that need
// isolated state).
func WithTodoStore(store *TodoStore) ClientOption {
	return func(c *Client) { c.todos = store }
}

// NewClient creates a Client for the given provider.
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{provider: provider, todos: NewTodoStore()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Todos exposes the client's TODO store.
func (c *Client) Todos() *TodoStore { return c.todos }

// ClearSession drops the session's provider history and TODO list.
func (c *Client) ClearSession(sessionID string) {
	c.provider.Clear(sessionID)
	c.todos.Clear(sessionID)
}

// Query starts a query and returns a handle to its message stream. Agent
// mode without an OnToolCall callback is a configuration error and fails
// here, before any provider round is issued.
func (c *Client) Query(ctx context.Context, opts QueryOptions) (*AgentQuery, error) {
	if opts.AgentMode && opts.OnToolCall == nil {
		return nil, errors.New("agent: OnToolCall is required for agent mode")
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	opts.SessionID = sessionID

	qctx, cancel := context.WithCancel(ctx)
	q := &AgentQuery{
		sessionID: sessionID,
		cancel:    cancel,
		out:       make(chan Message, 64),
		done:      make(chan struct{}),
		start:     time.Now(),
	}

	run := q.runBasic
	if opts.AgentMode {
		if opts.EnableTodo {
			opts.Tools = append(append([]ToolDefinition{}, TodoTools...), opts.Tools...)
		}
		opts.SystemPrompt = agentSystemPrompt(opts)
		run = q.runAgent
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				q.record(NewErrorMessage(sessionID, fmt.Sprint(r), ""))
				res := q.buildResult(nil, nil)
				res.HasError = true
				q.finish(res)
			}
		}()
		run(qctx, c, opts)
	}()

	return q, nil
}

// agentSystemPrompt layers the TODO workflow template ahead of any custom
// system prompt.
func agentSystemPrompt(opts QueryOptions) string {
	var parts []string
	if opts.EnableTodo {
		parts = append(parts, AgentModeSystemPrompt)
	}
	if opts.SystemPrompt != "" {
		parts = append(parts, opts.SystemPrompt)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// AgentQuery is a handle to a running query. The message stream can be
// meaningfully drained once; the query buffers every observed message
// internally for GetAllMessages and result extraction.
type AgentQuery struct {
	sessionID string
	cancel    context.CancelFunc
	out       chan Message
	done      chan struct{}
	start     time.Time

	mu       sync.Mutex
	messages []Message
	result   *AgentResult
}

// SessionID returns the query's session id.
func (q *AgentQuery) SessionID() string { return q.sessionID }

// Stream returns the live message channel. It is closed once the query
// reaches a terminal state; every query terminates with an error, abort,
// or final non-delta text message.
func (q *AgentQuery) Stream() <-chan Message { return q.out }

// Interrupt cancels the query. Idempotent; safe after completion.
func (q *AgentQuery) Interrupt() { q.cancel() }

// GetResult drains the stream if needed and returns the terminal result.
// The result is memoized; repeated calls are cheap.
func (q *AgentQuery) GetResult(ctx context.Context) (*AgentResult, error) {
	for {
		select {
		case _, ok := <-q.out:
			if !ok {
				<-q.done
				q.mu.Lock()
				defer q.mu.Unlock()
				res := *q.result
				return &res, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// GetAllMessages drains the stream if needed and returns a copy of every
// buffered message.
func (q *AgentQuery) GetAllMessages(ctx context.Context) ([]Message, error) {
	if _, err := q.GetResult(ctx); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.messages))
	copy(out, q.messages)
	return out, nil
}

// record buffers a message without forwarding it to the consumer.
func (q *AgentQuery) record(m Message) {
	q.mu.Lock()
	q.messages = append(q.messages, m)
	q.mu.Unlock()
}

// send forwards a previously recorded message to the consumer.
func (q *AgentQuery) send(m Message) {
	q.out <- m
}

func (q *AgentQuery) emit(m Message) {
	q.record(m)
	q.send(m)
}

// finish publishes the terminal result and closes the stream. Called
// exactly once per query.
func (q *AgentQuery) finish(result *AgentResult) {
	q.mu.Lock()
	q.result = result
	q.mu.Unlock()
	close(q.out)
	close(q.done)
}

// runBasic executes one provider round, intercepting tool calls one-shot
// when a callback is configured: each call is answered with a synthesized
// tool_result message, but no follow-up round is issued.
func (q *AgentQuery) runBasic(ctx context.Context, c *Client, opts QueryOptions) {
	var meta *MetaContent
	var usage *UsageContent

	ch := c.provider.Send(ctx, ProviderOptions{
		Prompt:       opts.Prompt,
		SessionID:    q.sessionID,
		Attachments:  opts.Attachments,
		Meta:         opts.Meta,
		Tools:        opts.Tools,
		SystemPrompt: opts.SystemPrompt,
	})

	for m := range ch {
		q.emit(m)

		switch m.Type {
		case MessageMeta:
			meta = m.Meta
		case MessageUsage:
			usage = m.Usage
		case MessageToolCall:
			if opts.OnToolCall != nil {
				result := callToolHandler(ctx, *m.ToolCall, opts.OnToolCall)
				q.emit(NewToolResultMessage(m.ConversationID, result))
			}
		}
	}

	q.finish(q.buildResult(meta, usage))
}

// callToolHandler invokes the user callback and normalizes its outcome.
func callToolHandler(ctx context.Context, call ToolCall, onToolCall ToolCallFunc) InternalToolResult {
	userResult, err := onToolCall(ctx, call)
	if err != nil {
		return errorResult(call, err)
	}
	return ConvertToolResult(call, userResult)
}

// buildResult scans the buffered messages for the terminal summary. The
// final text is the last non-delta text message; when no final message
// arrived, the deltas of the last streaming conversation are concatenated
// as a fallback.
func (q *AgentQuery) buildResult(meta *MetaContent, usage *UsageContent) *AgentResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	var finalText, lastMessageID string
	hasError := false
	deltas := make(map[string]*strings.Builder)
	lastDeltaConv := ""

	for _, m := range q.messages {
		lastMessageID = m.MessageID

		switch m.Type {
		case MessageText:
			if m.Delta {
				b, ok := deltas[m.ConversationID]
				if !ok {
					b = &strings.Builder{}
					deltas[m.ConversationID] = b
				}
				b.WriteString(m.Text.Text)
				lastDeltaConv = m.ConversationID
			} else {
				finalText = m.Text.Text
			}
			if m.Text.Status == TextError {
				hasError = true
			}
		case MessageError:
			hasError = true
		}
	}

	if finalText == "" && lastDeltaConv != "" {
		finalText = deltas[lastDeltaConv].String()
	}

	return &AgentResult{
		SessionID:    q.sessionID,
		MessageID:    lastMessageID,
		Meta:         meta,
		MessageCount: len(q.messages),
		FinalText:    finalText,
		HasError:     hasError,
		Usage:        usage,
		Duration:     time.Since(q.start).Milliseconds(),
	}
}
