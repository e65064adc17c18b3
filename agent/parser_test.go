package agent

import "testing"

func TestParseToolCalls(t *testing.T) {
	t.Run("single call", func(t *testing.T) {
		text := `I'll check the weather.
<tool_call>{"name":"get_weather","arguments":{"city":"Beijing"}}</tool_call>`
		msgs := ParseToolCalls(text, "c1")
		if len(msgs) != 1 {
			t.Fatalf("expected 1 call, got %d", len(msgs))
		}
		call := msgs[0].ToolCall
		if call.Name != "get_weather" {
			t.Fatalf("expected get_weather, got %q", call.Name)
		}
		if call.Arguments["city"] != "Beijing" {
			t.Fatalf("unexpected arguments: %v", call.Arguments)
		}
		if call.ToolCallID == "" {
			t.Fatal("expected generated tool call id")
		}
		if msgs[0].Type != MessageToolCall || msgs[0].ConversationID != "c1" {
			t.Fatalf("unexpected message: %+v", msgs[0])
		}
	})

	t.Run("multiple calls preserve order", func(t *testing.T) {
		text := `<tool_call>{"name":"a","arguments":{}}</tool_call> then
<tool_call>{"name":"b","arguments":{}}</tool_call>`
		msgs := ParseToolCalls(text, "c1")
		if len(msgs) != 2 || msgs[0].ToolCall.Name != "a" || msgs[1].ToolCall.Name != "b" {
			t.Fatalf("unexpected calls: %+v", msgs)
		}
		if msgs[0].ToolCall.ToolCallID == msgs[1].ToolCall.ToolCallID {
			t.Fatal("expected distinct call ids")
		}
	})

	t.Run("unclosed tag at end of text", func(t *testing.T) {
		text := `<tool_call>{"name":"first","arguments":{"x":1}}</tool_call>
<tool_call>{"name":"second"}`
		msgs := ParseToolCalls(text, "c1")
		if len(msgs) != 2 {
			t.Fatalf("expected 2 calls, got %d", len(msgs))
		}
		second := msgs[1].ToolCall
		if second.Name != "second" {
			t.Fatalf("expected second, got %q", second.Name)
		}
		if second.Arguments == nil || len(second.Arguments) != 0 {
			t.Fatalf("expected empty non-nil arguments, got %v", second.Arguments)
		}
	})

	t.Run("json spanning lines", func(t *testing.T) {
		text := "<tool_call>\n{\n  \"name\": \"multi\",\n  \"arguments\": {\"k\": \"v\"}\n}\n</tool_call>"
		msgs := ParseToolCalls(text, "c1")
		if len(msgs) != 1 || msgs[0].ToolCall.Name != "multi" {
			t.Fatalf("unexpected result: %+v", msgs)
		}
	})

	t.Run("malformed json skipped", func(t *testing.T) {
		text := `<tool_call>{"name": broken}</tool_call>
<tool_call>{"name":"ok","arguments":{}}</tool_call>`
		msgs := ParseToolCalls(text, "c1")
		if len(msgs) != 1 || msgs[0].ToolCall.Name != "ok" {
			t.Fatalf("expected only the valid call, got %+v", msgs)
		}
	})

	t.Run("missing name skipped", func(t *testing.T) {
		text := `<tool_call>{"arguments":{"x":1}}</tool_call>`
		if msgs := ParseToolCalls(text, "c1"); len(msgs) != 0 {
			t.Fatalf("expected no calls, got %+v", msgs)
		}
	})

	t.Run("no calls", func(t *testing.T) {
		if msgs := ParseToolCalls("just plain text", "c1"); msgs != nil {
			t.Fatalf("expected nil, got %+v", msgs)
		}
	})
}
