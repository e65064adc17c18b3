// Package llm implements the provider side of the agent query runtime:
// streaming chat-completion calls against an OpenAI-compatible proxy
// endpoint, with a per-session history cache and history compression.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wepress/agentquery/agent"
)

// Config configures a ProxyProvider.
type Config struct {
	// Model is the model identifier sent with every request.
	Model string

	// BaseURL is the full chat-completions endpoint URL.
	BaseURL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	Temperature float64 // defaults to 0.3
	MaxTokens   int     // defaults to 2000

	// HTTPClient overrides the default client (5 minute timeout).
	HTTPClient *http.Client
}

// ProxyProvider implements agent.Provider against an OpenAI-compatible
// streaming chat endpoint. One call to Send is one model round.
type ProxyProvider struct {
	cfg     Config
	client  *http.Client
	history *historyStore
}

// NewProxyProvider creates a provider with the given configuration.
func NewProxyProvider(cfg Config) *ProxyProvider {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &ProxyProvider{
		cfg:     cfg,
		client:  client,
		history: newHistoryStore(),
	}
}

// chatMessage is the wire shape of one conversation message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for the chat completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// streamChunk is one decoded "data:" record of the response stream.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Send issues one streaming model round. The returned channel carries the
// round's messages in production order and is closed when the round
// completes; the consumer always receives a terminating message (final
// text, error, or abort).
func (p *ProxyProvider) Send(ctx context.Context, opts agent.ProviderOptions) <-chan agent.Message {
	ch := make(chan agent.Message, 64)
	go func() {
		defer close(ch)
		p.send(ctx, opts, ch)
	}()
	return ch
}

// Clear drops the session's history. Idempotent; the TODO store is not
// affected.
func (p *ProxyProvider) Clear(sessionID string) {
	p.history.clear(sessionID)
}

func (p *ProxyProvider) send(ctx context.Context, opts agent.ProviderOptions, ch chan<- agent.Message) {
	conversationID := uuid.NewString()
	history := p.history.get(opts.SessionID)

	var msgs []chatMessage
	if len(opts.Tools) > 0 || opts.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{
			Role:    "system",
			Content: agent.BuildSystemPrompt(opts.Tools, opts.SystemPrompt),
		})
	}

	keepFrom := keepFromIndex(history, recentToolResults, maxOlderLength)
	msgs = append(msgs, compressHistory(history, keepFrom)...)
	msgs = append(msgs, chatMessage{Role: "user", Content: opts.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       p.cfg.Model,
		Messages:    msgs,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		ch <- agent.NewErrorMessage(conversationID, err.Error(), agent.CodeFetchError)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		ch <- agent.NewErrorMessage(conversationID, err.Error(), agent.CodeFetchError)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// A user-initiated abort takes precedence over classifying the
		// failed request as a transport error.
		if ctx.Err() != nil {
			ch <- agent.NewAbortMessage(conversationID, abortedReason)
			return
		}
		ch <- agent.NewErrorMessage(conversationID, err.Error(), agent.CodeFetchError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errText, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			errText = []byte("Unknown error")
		}
		ch <- agent.NewErrorMessage(conversationID,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, errText), agent.CodeHTTPError)
		return
	}

	if resp.Body == nil {
		ch <- agent.NewErrorMessage(conversationID, "No response body", agent.CodeNoBody)
		return
	}

	ch <- agent.NewMetaMessage(conversationID, agent.MetaContent{
		Key:  p.cfg.Model,
		Name: p.cfg.Model,
		LLM:  p.cfg.Model,
	})

	fullText, finished, streamErr := p.scanStream(resp.Body, conversationID, ch)
	if streamErr != nil {
		if ctx.Err() != nil {
			ch <- agent.NewAbortMessage(conversationID, abortedReason)
		} else {
			ch <- agent.NewErrorMessage(conversationID, streamErr.Error(), agent.CodeStreamError)
		}
		return
	}

	// No explicit finish indicator but content was produced: still close
	// out the conversation and commit history.
	if !finished && fullText != "" {
		ch <- agent.NewTextFinal(conversationID, fullText, agent.TextDone)
		finished = true
	}
	if finished {
		p.commit(opts, fullText)
	}

	if len(opts.Tools) > 0 && fullText != "" {
		for _, m := range agent.ParseToolCalls(fullText, conversationID) {
			ch <- m
		}
	}
}

const abortedReason = "Request aborted by user"

// scanStream reads the newline-delimited event stream, emitting usage and
// text delta messages as records arrive. Malformed records are logged and
// skipped; one bad record never loses the rest of the stream. Returns the
// accumulated text and whether an explicit finish indicator was seen.
func (p *ProxyProvider) scanStream(body io.Reader, conversationID string, ch chan<- agent.Message) (string, bool, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var fullText string
	finished := false

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line == "data: [DONE]" {
			continue
		}
		if len(line) < 6 || line[:6] != "data: " {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(line[6:]), &chunk); err != nil {
			log.Printf("failed to parse stream record: %v", err)
			continue
		}

		if chunk.Usage != nil {
			ch <- agent.NewUsageMessage(conversationID, agent.UsageContent{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			})
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			fullText += choice.Delta.Content
			ch <- agent.NewTextDelta(conversationID, choice.Delta.Content)
		}

		if !finished && (choice.FinishReason == "stop" || choice.FinishReason == "length") {
			finished = true
			ch <- agent.NewTextFinal(conversationID, fullText, agent.TextDone)
		}
	}

	return fullText, finished, scanner.Err()
}

// commit appends the completed exchange (user turn + assistant reply) to
// the session history.
func (p *ProxyProvider) commit(opts agent.ProviderOptions, fullText string) {
	history := p.history.get(opts.SessionID)
	history = append(history,
		historyMessage{Role: "user", Content: opts.Prompt, Meta: opts.Meta},
		historyMessage{Role: "assistant", Content: fullText},
	)
	p.history.set(opts.SessionID, history)
}
