package agent

import (
	"encoding/json"
	"log"
	"regexp"

	"github.com/google/uuid"
)

// Matches <tool_call>{...}</tool_call> tags embedded in model text. The
// closing tag is optional at end of text so calls survive truncated
// streams. (?s) lets the JSON object span lines.
var toolCallRegex = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*(?:</tool_call>|$)`)

// ParseToolCalls extracts tool_call messages from raw model text. Matches
// that fail to parse as JSON, or lack a "name" field, are logged and
// skipped; valid calls are returned in left-to-right order with freshly
// generated call ids.
func ParseToolCalls(text, conversationID string) []Message {
	var messages []Message

	for _, match := range toolCallRegex.FindAllStringSubmatch(text, -1) {
		var parsed struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(match[1]), &parsed); err != nil {
			log.Printf("failed to parse tool call %q: %v", match[1], err)
			continue
		}
		if parsed.Name == "" {
			log.Printf("invalid tool call, missing name: %q", match[1])
			continue
		}

		args := parsed.Arguments
		if args == nil {
			args = map[string]any{}
		}
		messages = append(messages, NewToolCallMessage(conversationID, ToolCall{
			ToolCallID: uuid.NewString(),
			Name:       parsed.Name,
			Arguments:  args,
		}))
	}

	return messages
}
