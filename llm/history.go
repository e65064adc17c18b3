package llm

import (
	"sync"

	"github.com/wepress/agentquery/agent"
)

// Replaces aged-out tool-result history entries when compression applies.
const compressedPlaceholder = "[Historical tool result compressed]"

// Compression policy: keep the newest recentToolResults tool-result
// entries verbatim; older tool-result entries may accumulate up to
// maxOlderLength chars before everything at or before the overflow point
// is collapsed to the placeholder.
const (
	recentToolResults = 3
	maxOlderLength    = 5000
)

// historyMessage is one role-tagged entry of a session's conversation
// history. Meta marks entries eligible for compression.
type historyMessage struct {
	Role    string
	Content string
	Meta    *agent.PromptMeta
}

// historyStore is the in-memory per-session conversation history cache.
// Histories are created lazily on first commit and live until explicitly
// cleared.
type historyStore struct {
	mu       sync.RWMutex
	sessions map[string][]historyMessage
}

func newHistoryStore() *historyStore {
	return &historyStore{sessions: make(map[string][]historyMessage)}
}

// get returns a copy of the session's history (nil if absent).
func (s *historyStore) get(sessionID string) []historyMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.sessions[sessionID]
	if stored == nil {
		return nil
	}
	out := make([]historyMessage, len(stored))
	copy(out, stored)
	return out
}

// set replaces the session's history.
func (s *historyStore) set(sessionID string, msgs []historyMessage) {
	s.mu.Lock()
	s.sessions[sessionID] = msgs
	s.mu.Unlock()
}

// clear drops the session's history. Idempotent.
func (s *historyStore) clear(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// keepFromIndex scans history from the newest entry backward and returns
// the first index whose entries are all kept verbatim. The newest
// recentCount tool-result entries are always kept; older tool-result
// entries accumulate their content length until the budget overflows, at
// which point everything at or before that entry is compressed.
// Entries that are not tool results never trigger the cutoff.
func keepFromIndex(history []historyMessage, recentCount, maxLength int) int {
	toolResults := 0
	accumulated := 0

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Meta == nil || history[i].Meta.Type != "tool_result" {
			continue
		}
		if toolResults < recentCount {
			toolResults++
			continue
		}
		contentLength := len(history[i].Content)
		if accumulated+contentLength > maxLength {
			return i + 1
		}
		accumulated += contentLength
	}

	return 0
}

// compressHistory renders history into wire messages, replacing
// tool-result entries before keepFrom with the fixed placeholder. Plain
// entries are always kept verbatim regardless of position.
func compressHistory(history []historyMessage, keepFrom int) []chatMessage {
	out := make([]chatMessage, len(history))
	for i, msg := range history {
		content := msg.Content
		if i < keepFrom && msg.Meta != nil && msg.Meta.Type == "tool_result" {
			content = compressedPlaceholder
		}
		out[i] = chatMessage{Role: msg.Role, Content: content}
	}
	return out
}
