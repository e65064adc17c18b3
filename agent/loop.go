package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const abortedByUserReason = "Request aborted by user"

const todoReminderPrompt = `Note: The following tasks are incomplete:

%s

Please continue processing, or call todo_update to mark as completed if already done.`

// runAgent drives the multi-round tool loop. Each round streams one
// provider call; tool calls found in the round are executed and their
// results become the next round's prompt. Non-delta text is buffered
// until the round is known to be the last one, so the consumer never
// sees a "final" answer that a forced continuation round supersedes.
func (q *AgentQuery) runAgent(ctx context.Context, c *Client, opts QueryOptions) {
	maxRounds := opts.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}

	sid := q.sessionID
	currentPrompt := opts.Prompt
	round := 0

	var meta *MetaContent
	var total UsageContent

	// Loop detection: abort when the TODO status fingerprint survives
	// maxRounds consecutive tool rounds unchanged.
	unchanged := 0
	prevState := todoFingerprint(c.todos, sid)

	for {
		if ctx.Err() != nil {
			q.emit(NewAbortMessage(sid, abortedByUserReason))
			break
		}

		// First round carries no compression hint; later rounds are
		// tagged tool_result so the provider's history compressor can
		// eventually fold them.
		var promptMeta *PromptMeta
		if round > 0 {
			promptMeta = &PromptMeta{Type: "tool_result"}
		}

		ch := c.provider.Send(ctx, ProviderOptions{
			Prompt:       currentPrompt,
			SessionID:    sid,
			Attachments:  opts.Attachments,
			Meta:         promptMeta,
			Tools:        opts.Tools,
			SystemPrompt: opts.SystemPrompt,
		})

		var buffered []Message
		var toolCalls []ToolCall
		aborted := false

		for m := range ch {
			switch m.Type {
			case MessageAbort:
				aborted = true
				q.emit(m)
			case MessageMeta:
				meta = m.Meta
				q.emit(m)
			case MessageUsage:
				total.PromptTokens += m.Usage.PromptTokens
				total.CompletionTokens += m.Usage.CompletionTokens
				total.TotalTokens += m.Usage.TotalTokens
				q.emit(m)
			case MessageToolCall:
				toolCalls = append(toolCalls, *m.ToolCall)
				q.record(m)
				// Internal TODO calls stay off the visible stream; the
				// consumer sees the resulting todolist snapshot instead.
				if !strings.HasPrefix(m.ToolCall.Name, "todo_") {
					q.send(m)
				}
			case MessageText:
				if m.Delta {
					q.emit(m)
				} else {
					q.record(m)
					buffered = append(buffered, m)
				}
			default:
				q.emit(m)
			}
		}

		if aborted {
			// Buffered text stays unflushed on abort.
			break
		}

		if len(toolCalls) == 0 {
			if opts.EnableTodo && c.todos.HasUncompleted(sid) {
				flush(q, buffered)
				if list := c.todos.Get(sid); list != nil {
					currentPrompt = fmt.Sprintf(todoReminderPrompt, FormatForPrompt(list))
					round++
					continue
				}
			}
			flush(q, buffered)
			break
		}

		results := ExecuteToolCalls(ctx, toolCalls, sid, c.todos, opts.OnToolCall)

		for _, r := range results {
			q.emit(NewToolResultMessage(sid, r))
		}

		if hasTodoCall(toolCalls) {
			if list := c.todos.Get(sid); list != nil {
				q.emit(NewTodoListMessage(sid, list))
			}
		}

		state := todoFingerprint(c.todos, sid)
		if state == prevState {
			unchanged++
			if unchanged >= maxRounds {
				q.emit(NewAbortMessage(sid, fmt.Sprintf(
					"TODO state unchanged for %d rounds, loop detected, auto-terminated", unchanged)))
				break
			}
		} else {
			unchanged = 0
			prevState = state
		}

		currentPrompt = BuildToolResultPrompt(results, ToolResultPromptOptions{
			SessionID:  sid,
			EnableTodo: opts.EnableTodo,
			Todos:      c.todos,
		})
		round++
	}

	var usage *UsageContent
	if total.TotalTokens > 0 {
		u := total
		usage = &u
	}
	q.finish(q.buildResult(meta, usage))
}

// flush forwards round-buffered final text messages to the consumer.
func flush(q *AgentQuery, buffered []Message) {
	for _, m := range buffered {
		q.send(m)
	}
}

func hasTodoCall(calls []ToolCall) bool {
	for _, call := range calls {
		switch call.Name {
		case ToolTodoCreate, ToolTodoAdd, ToolTodoUpdate:
			return true
		}
	}
	return false
}

// todoFingerprint serializes the item statuses of a session's TODO list.
// Result text changes do not alter the fingerprint.
func todoFingerprint(todos *TodoStore, sessionID string) string {
	list := todos.Get(sessionID)
	if list == nil {
		return ""
	}
	statuses := make([]TodoStatus, len(list.Items))
	for i, item := range list.Items {
		statuses[i] = item.Status
	}
	data, _ := json.Marshal(statuses)
	return string(data)
}
