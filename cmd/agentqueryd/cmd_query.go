package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/wepress/agentquery"
	"github.com/wepress/agentquery/agent"
	"github.com/wepress/agentquery/llm"
)

var (
	queryAgentMode  bool
	queryEnableTodo bool
	querySession    string
	querySystem     string
)

var (
	toolCallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	toolResultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Padding(0, 2)

	todoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Padding(0, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	abortStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			MarginTop(1)
)

var queryCmd = &cobra.Command{
	Use:   "query <prompt>",
	Short: "Run a one-shot query from the terminal",
	Long: `Send a single prompt to the configured model endpoint and stream
the response. With --agent, tool calls are executed automatically
across multiple rounds.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := agentquery.LoadConfig(configPath)
		if err != nil {
			return err
		}

		provider := llm.NewProxyProvider(llm.Config{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		client := agent.NewClient(provider)

		opts := agent.QueryOptions{
			Prompt:        args[0],
			SessionID:     querySession,
			SystemPrompt:  querySystem,
			AgentMode:     queryAgentMode,
			EnableTodo:    queryEnableTodo,
			MaxToolRounds: cfg.MaxToolRounds,
		}
		if queryAgentMode {
			// No server-side tools in one-shot mode; the model still
			// gets the TODO tools when --todo is set.
			opts.OnToolCall = func(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
				return &agent.ToolResult{Error: fmt.Sprintf("unknown tool: %s", call.Name)}, nil
			}
		}

		q, err := client.Query(cmd.Context(), opts)
		if err != nil {
			return err
		}

		// Ctrl-C interrupts the query, not the process.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			<-sigCh
			q.Interrupt()
		}()

		for m := range q.Stream() {
			renderMessage(m)
		}

		result, err := q.GetResult(context.Background())
		if err != nil {
			return err
		}

		summary := fmt.Sprintf("session %s | %d messages | %dms", result.SessionID, result.MessageCount, result.Duration)
		if result.Usage != nil {
			summary += fmt.Sprintf(" | %d tokens", result.Usage.TotalTokens)
		}
		fmt.Println(summaryStyle.Render(summary))

		if result.HasError {
			os.Exit(1)
		}
		return nil
	},
}

// renderMessage prints one streamed message. Delta text goes straight to
// stdout so the response appears as it is generated.
func renderMessage(m agent.Message) {
	switch m.Type {
	case agent.MessageText:
		if m.Delta {
			fmt.Print(m.Text.Text)
		} else {
			// Final text repeats the deltas; just end the line.
			fmt.Println()
		}
	case agent.MessageToolCall:
		fmt.Println(toolCallStyle.Render(fmt.Sprintf("⚙ %s", m.ToolCall.Name)))
	case agent.MessageToolResult:
		r := m.ToolResult
		if r.IsError {
			fmt.Println(toolResultStyle.Render("✗ " + r.Error))
		} else {
			fmt.Println(toolResultStyle.Render("✓ " + truncate(fmt.Sprint(r.Result), 200)))
		}
	case agent.MessageTodoList:
		fmt.Println(todoStyle.Render(m.TodoList.Raw))
	case agent.MessageError:
		fmt.Println(errorStyle.Render("error: " + m.Error.Error))
	case agent.MessageAbort:
		fmt.Println(abortStyle.Render("aborted: " + m.Abort.Reason))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	queryCmd.Flags().BoolVar(&queryAgentMode, "agent", false, "Enable multi-round agent mode")
	queryCmd.Flags().BoolVar(&queryEnableTodo, "todo", false, "Enable TODO task tracking (agent mode)")
	queryCmd.Flags().StringVar(&querySession, "session", "", "Session ID to continue a conversation")
	queryCmd.Flags().StringVar(&querySystem, "system", "", "Custom system prompt")
}
